package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/klrk/metadata-edit-service/internal/docinfo"
)

// PrintInfoDictToStdout prints a file's document information as JSON.
// The file can be local or remote (http/https). When url is "-", the file
// will be read from Stdin.
func PrintInfoDictToStdout(url string) {
	var stream io.ReadCloser
	if strings.HasPrefix(url, "http") {
		resp, err := http.Get(url)
		if err != nil {
			logger.Error("HTTP error", "url", url, "err", err)
			os.Exit(1)
		}
		if resp.StatusCode >= 400 {
			logger.Error("HTTP error", "url", url, "status", resp.Status)
			os.Exit(1)
		}
		stream = resp.Body
	} else {
		if url == "-" {
			stream = os.Stdin
		} else {
			f, err := os.Open(url)
			if err != nil {
				logger.Error("Could not open file", "err", err)
				os.Exit(1)
			}
			defer f.Close()
			stream = f
		}
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		logger.Error("Could not read input", "url", url, "err", err)
		os.Exit(1)
	}
	h, err := docinfo.NewPdfcpuEngine(logger).Open(data)
	if err != nil {
		logger.Error("Could not process document", "url", url, "err", err)
		os.Exit(2)
	}
	meta, _ := json.Marshal(h.InfoFields())
	os.Stdout.Write(meta)
	fmt.Println()
}
