package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/klrk/metadata-edit-service/internal/batch"
	"github.com/klrk/metadata-edit-service/internal/bundle"
	"github.com/klrk/metadata-edit-service/internal/config"
	"github.com/klrk/metadata-edit-service/internal/docinfo"
	"github.com/klrk/metadata-edit-service/pkg/pdfdate"
)

// wall-clock layout of user-entered dates, anchored via tzOffsetMinutes
const dateLayout = "2006-01-02T15:04:05"

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// EditorService holds the handlers of the metadata edit endpoints.
type EditorService struct {
	cfg    *config.MesConfig
	engine docinfo.Engine
	proc   *batch.Processor
	log    *slog.Logger
}

func NewEditorService(cfg *config.MesConfig, engine docinfo.Engine, logger *slog.Logger) *EditorService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &EditorService{
		cfg:    cfg,
		engine: engine,
		proc:   batch.New(engine, logger),
		log:    logger,
	}
}

// EditParams are the form fields accompanying the uploaded files on /edit.
type EditParams struct {
	Title    string `form:"title"`
	Author   string `form:"author"`
	Subject  string `form:"subject"`
	Keywords string `form:"keywords"`
	Creator  string `form:"creator"`
	Producer string `form:"producer"`
	// Wall-clock date-times, expressed in the offset given by TzOffsetMinutes
	CreationDate string `form:"creationDate" validate:"omitempty,datetime=2006-01-02T15:04:05"`
	ModDate      string `form:"modDate" validate:"omitempty,datetime=2006-01-02T15:04:05"`
	// Fixed UTC offset in minutes the dates above are expressed in
	TzOffsetMinutes int `form:"tzOffsetMinutes" validate:"min=-720,max=840"`
	// Keep each file's own original dates instead of writing shared ones
	PreserveDates bool `form:"preserveDates"`
}

// Edit applies the submitted metadata to every uploaded file and returns
// the rewritten documents.
func (s *EditorService) Edit(c *gin.Context) {
	var params EditParams
	if err := c.ShouldBind(&params); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(params); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := batch.Request{
		Mode: batch.ModeApply,
		Fields: batch.FieldSet{
			Title:    params.Title,
			Author:   params.Author,
			Subject:  params.Subject,
			Keywords: params.Keywords,
			Creator:  params.Creator,
			Producer: params.Producer,
		},
	}
	if params.PreserveDates {
		req.Dates = batch.DatesPreserved
	} else {
		loc := pdfdate.Zone(params.TzOffsetMinutes)
		if params.CreationDate != "" {
			t, err := time.ParseInLocation(dateLayout, params.CreationDate, loc)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s is not a valid creation date", params.CreationDate)})
				return
			}
			req.Fields.Creation = &t
		}
		if params.ModDate != "" {
			t, err := time.ParseInLocation(dateLayout, params.ModDate, loc)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s is not a valid modification date", params.ModDate)})
				return
			}
			req.Fields.Modification = &t
		}
	}

	s.runBatch(c, req, "edited")
}

// Clear strips the entire info dictionary from every uploaded file,
// including the dates the rewrite engine would otherwise re-add.
func (s *EditorService) Clear(c *gin.Context) {
	s.runBatch(c, batch.Request{Mode: batch.ModeClear}, "cleared")
}

func (s *EditorService) runBatch(c *gin.Context, req batch.Request, label string) {
	items, ok := s.collectItems(c)
	if !ok {
		return
	}
	batchID := uuid.NewString()
	outcomes := s.proc.Run(items, req)

	var entries []bundle.Entry
	var errs []string
	for _, out := range outcomes {
		if out.Failed() {
			errs = append(errs, out.Description())
			continue
		}
		entries = append(entries, bundle.Entry{Name: out.Name, Data: out.Data})
	}
	s.log.Info("Batch finished", "id", batchID, "label", label, "items", len(items), "ok", len(entries), "failed", len(errs))

	c.Header("X-Batch-Id", batchID)
	c.Header("X-Processed-Count", strconv.Itoa(len(entries)))
	c.Header("X-Failed-Count", strconv.Itoa(len(errs)))
	if len(errs) > 0 {
		if encoded, err := json.Marshal(errs); err == nil {
			c.Header("X-Batch-Errors", sanitizeHeader(string(encoded)))
		}
	}

	if len(entries) == 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"errors": errs})
		return
	}
	if len(entries) == 1 {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entries[0].Name))
		c.Data(http.StatusOK, "application/pdf", entries[0].Data)
		return
	}
	archive, err := bundle.Zip(entries)
	if err != nil {
		s.log.Error("Could not build archive", "id", batchID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bundle.Name(label, time.Now())))
	c.Data(http.StatusOK, "application/zip", archive)
}

// collectItems reads the uploaded multipart files into batch items. On a
// request-level problem it aborts with a JSON error and reports false.
func (s *EditorService) collectItems(c *gin.Context) ([]batch.Item, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	files := form.File["file"]
	if len(files) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return nil, false
	}
	if len(files) > s.cfg.MaxBatchItems {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
			gin.H{"error": fmt.Sprintf("%d files uploaded, at most %d allowed", len(files), s.cfg.MaxBatchItems)})
		return nil, false
	}
	items := make([]batch.Item, 0, len(files))
	for _, fh := range files {
		if fh.Size > int64(s.cfg.MaxFileSizeBytes) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				gin.H{"error": fmt.Sprintf("%s exceeds the size limit of %s", fh.Filename, humanize.Bytes(s.cfg.MaxFileSizeBytes))})
			return nil, false
		}
		f, err := fh.Open()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", fh.Filename, err)})
			return nil, false
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", fh.Filename, err)})
			return nil, false
		}
		items = append(items, batch.Item{Name: fh.Filename, Data: data})
	}
	return items, true
}

// InspectResponse is the info dictionary of one document, dates normalized
// to RFC3339.
type InspectResponse struct {
	Title        string `json:"title"`
	Author       string `json:"author"`
	Subject      string `json:"subject"`
	Keywords     string `json:"keywords"`
	Creator      string `json:"creator"`
	Producer     string `json:"producer"`
	CreationDate string `json:"creationDate,omitempty"`
	ModDate      string `json:"modDate,omitempty"`
}

// Inspect returns the request body's document information. Absent Creator
// and Producer values are substituted with the configured defaults so the
// response can prefill an edit form.
func (s *EditorService) Inspect(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, int64(s.cfg.MaxFileSizeBytes))
	data, err := io.ReadAll(body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	h, err := s.engine.Open(data)
	if err != nil {
		s.log.Error("Error parsing request body", "err", err)
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	fields := h.InfoFields()
	resp := InspectResponse{
		Title:    fields[docinfo.KeyTitle],
		Author:   fields[docinfo.KeyAuthor],
		Subject:  fields[docinfo.KeySubject],
		Keywords: fields[docinfo.KeyKeywords],
		Creator:  fields[docinfo.KeyCreator],
		Producer: fields[docinfo.KeyProducer],
	}
	if resp.Creator == "" {
		resp.Creator = s.cfg.DefaultCreator
	}
	if resp.Producer == "" {
		resp.Producer = s.cfg.DefaultProducer
	}
	if t, ok := pdfdate.Parse(fields[docinfo.KeyCreationDate]); ok {
		resp.CreationDate = t.Format(time.RFC3339)
	}
	if t, ok := pdfdate.Parse(fields[docinfo.KeyModDate]); ok {
		resp.ModDate = t.Format(time.RFC3339)
	}
	encoded, err := json.Marshal(resp)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", encoded)
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
