package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-contrib/expvar"
	"github.com/gin-gonic/gin"
	"github.com/klrk/metadata-edit-service/internal/config"
	"github.com/klrk/metadata-edit-service/internal/docinfo"
	sloggin "github.com/samber/slog-gin"
)

var logger *slog.Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}))

func main() {
	args := os.Args
	// one shot mode: don't start a server, just print the info dictionary of a single file
	if len(args) > 1 {
		PrintInfoDictToStdout(args[1])
		return
	}
	mesConfig, err := config.NewMesConfigFromEnv()
	if err != nil {
		logger.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	opts := &slog.HandlerOptions{Level: mesConfig.LogLevel}
	if mesConfig.Debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))

	engine := docinfo.NewPdfcpuEngine(logger)
	svc := NewEditorService(mesConfig, engine, logger)
	router := newRouter(svc)
	router.MaxMultipartMemory = int64(mesConfig.MaxFileSizeBytes)

	srv := http.Server{Addr: mesConfig.SrvAddr, Handler: router}
	logger.Info("Service started", "address", srv.Addr)
	defer logger.Info("HTTP Server stopped.")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		// Error starting or closing listener:
		logger.Error("Webserver failed", "err", err)
	}
}

func newRouter(svc *EditorService) *gin.Engine {
	router := gin.New()
	router.Use(sloggin.New(svc.log), gin.Recovery())
	router.POST("/edit", svc.Edit)
	router.POST("/clear", svc.Clear)
	router.POST("/inspect", svc.Inspect)
	router.GET("/debug/vars", expvar.Handler())
	return router
}
