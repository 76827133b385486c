// Package docinfo wraps pdfcpu behind the small document capability the
// metadata processor needs: open raw bytes, read and rewrite the info
// dictionary, serialize back to bytes.
package docinfo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"unicode/utf16"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Keys of the info dictionary entries this service edits.
const (
	KeyTitle        = "Title"
	KeyAuthor       = "Author"
	KeySubject      = "Subject"
	KeyKeywords     = "Keywords"
	KeyCreator      = "Creator"
	KeyProducer     = "Producer"
	KeyCreationDate = "CreationDate"
	KeyModDate      = "ModDate"
)

// Engine opens raw document bytes for metadata rewriting.
type Engine interface {
	Open(data []byte) (Handle, error)
}

// Handle is one open document. SetInfoFields replaces the entire info
// dictionary with the given mapping. Keys dropped via RemoveField stay
// absent from the serialized output even if the underlying writer would
// populate them on its own.
type Handle interface {
	InfoFields() map[string]string
	SetInfoFields(fields map[string]string)
	ClearInfoFields()
	RemoveField(key string)
	Serialize() ([]byte, error)
}

// PdfcpuEngine implements Engine on pdfcpu with relaxed validation.
type PdfcpuEngine struct {
	conf *model.Configuration
	log  *slog.Logger
}

func NewPdfcpuEngine(logger *slog.Logger) *PdfcpuEngine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	// Serialize appends a classic cross reference section to restore the
	// info dictionary, so the writer must emit a classic table as well.
	conf.WriteXRefStream = false
	return &PdfcpuEngine{conf: conf, log: logger}
}

func (e *PdfcpuEngine) Open(data []byte) (Handle, error) {
	mtype := mimetype.Detect(data)
	if !mtype.Is("application/pdf") {
		return nil, fmt.Errorf("not a PDF (detected %s)", mtype.String())
	}
	ctx, err := api.ReadContext(bytes.NewReader(data), e.conf)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("validating document: %w", err)
	}
	e.log.Debug("Document opened", "bytes", len(data), "pages", ctx.PageCount)
	return &pdfHandle{ctx: ctx, conf: e.conf, removed: make(map[string]bool)}, nil
}

type pdfHandle struct {
	ctx     *model.Context
	conf    *model.Configuration
	removed map[string]bool
	err     error // first dictionary manipulation failure, surfaced by Serialize
}

// infoDict returns the document's info dictionary, allocating one in the
// cross reference table when create is set and none exists yet.
func (h *pdfHandle) infoDict(create bool) types.Dict {
	if h.ctx.Info != nil {
		d, err := h.ctx.DereferenceDict(*h.ctx.Info)
		if err == nil && d != nil {
			return d
		}
	}
	if !create {
		return nil
	}
	d := types.Dict{}
	ir, err := h.ctx.IndRefForNewObject(d)
	if err != nil {
		if h.err == nil {
			h.err = fmt.Errorf("allocating info dictionary: %w", err)
		}
		return nil
	}
	h.ctx.Info = ir
	return d
}

// infoFields decodes the string entries of a context's info dictionary.
func infoFields(ctx *model.Context) map[string]string {
	fields := make(map[string]string)
	if ctx.Info == nil {
		return fields
	}
	d, err := ctx.DereferenceDict(*ctx.Info)
	if err != nil || d == nil {
		return fields
	}
	for k, v := range d {
		obj, err := ctx.Dereference(v)
		if err != nil {
			continue
		}
		switch s := obj.(type) {
		case types.StringLiteral:
			if str, err := types.StringLiteralToString(s); err == nil {
				fields[k] = str
			}
		case types.HexLiteral:
			if str, err := types.HexLiteralToString(s); err == nil {
				fields[k] = str
			}
		case types.Name:
			fields[k] = s.Value()
		}
	}
	return fields
}

func (h *pdfHandle) InfoFields() map[string]string {
	return infoFields(h.ctx)
}

func (h *pdfHandle) SetInfoFields(fields map[string]string) {
	d := h.infoDict(true)
	if d == nil {
		return
	}
	for k := range d {
		delete(d, k)
	}
	for k, v := range fields {
		d.InsertString(k, v)
		delete(h.removed, k)
	}
}

func (h *pdfHandle) ClearInfoFields() {
	d := h.infoDict(false)
	for k := range d {
		delete(d, k)
	}
}

func (h *pdfHandle) RemoveField(key string) {
	if d := h.infoDict(false); d != nil {
		delete(d, key)
	}
	h.removed[key] = true
}

// Serialize writes the document and guarantees that the info dictionary of
// the result carries exactly the established fields. The pdfcpu writer
// refreshes Producer, CreationDate and ModDate while writing, after any
// pre-write manipulation; when the written copy differs, an incremental
// update section is appended whose info object is authoritative.
func (h *pdfHandle) Serialize() ([]byte, error) {
	if h.err != nil {
		return nil, h.err
	}
	if len(h.removed) > 0 {
		if d := h.infoDict(false); d != nil {
			for k := range h.removed {
				delete(d, k)
			}
		}
	}
	intended := h.InfoFields()
	if err := api.OptimizeContext(h.ctx); err != nil {
		return nil, fmt.Errorf("optimizing document: %w", err)
	}
	var buf bytes.Buffer
	if err := api.WriteContext(h.ctx, &buf); err != nil {
		return nil, fmt.Errorf("writing document: %w", err)
	}
	out := buf.Bytes()

	written, err := api.ReadContext(bytes.NewReader(out), h.conf)
	if err != nil {
		return nil, fmt.Errorf("rereading written document: %w", err)
	}
	if maps.Equal(infoFields(written), intended) {
		return out, nil
	}
	return appendInfoUpdate(out, intended)
}

// appendInfoUpdate appends an incremental update to a written document: a
// fresh info dictionary object, a cross reference section for it and a
// trailer pointing back at the previous one. Nothing before the appended
// section is touched, so all offsets stay valid.
func appendInfoUpdate(out []byte, fields map[string]string) ([]byte, error) {
	size, rootNr, rootGen, prev, err := trailerRefs(out)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.Write(out)
	if out[len(out)-1] != '\n' {
		b.WriteByte('\n')
	}
	objNr := size
	objOff := b.Len()
	fmt.Fprintf(&b, "%d 0 obj\n<<", objNr)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " /%s %s", k, pdfTextString(fields[k]))
	}
	b.WriteString(" >>\nendobj\n")
	xrefOff := b.Len()
	fmt.Fprintf(&b, "xref\n0 1\n0000000000 65535 f \n%d 1\n%010d 00000 n \n", objNr, objOff)
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root %d %d R /Info %d 0 R /Prev %d >>\n", objNr+1, rootNr, rootGen, objNr, prev)
	fmt.Fprintf(&b, "startxref\n%d\n%%%%EOF\n", xrefOff)
	return b.Bytes(), nil
}

// trailerRefs extracts /Size, the /Root reference and the startxref offset
// from the last classic trailer of a written document.
func trailerRefs(out []byte) (size, rootNr, rootGen, prev int, err error) {
	ti := bytes.LastIndex(out, []byte("trailer"))
	si := bytes.LastIndex(out, []byte("startxref"))
	if ti < 0 || si < ti {
		err = errors.New("no cross reference table trailer found")
		return
	}
	seg := string(out[ti:si])
	if size, err = intAfter(seg, "/Size"); err != nil {
		return
	}
	i := strings.Index(seg, "/Root")
	if i < 0 {
		err = errors.New("trailer carries no /Root")
		return
	}
	if _, err = fmt.Sscanf(seg[i+len("/Root"):], "%d %d R", &rootNr, &rootGen); err != nil {
		err = fmt.Errorf("parsing /Root reference: %w", err)
		return
	}
	if _, err = fmt.Sscanf(string(out[si+len("startxref"):]), "%d", &prev); err != nil {
		err = fmt.Errorf("parsing startxref offset: %w", err)
	}
	return
}

func intAfter(seg, key string) (int, error) {
	i := strings.Index(seg, key)
	if i < 0 {
		return 0, fmt.Errorf("trailer carries no %s", key)
	}
	var n int
	if _, err := fmt.Sscanf(seg[i+len(key):], "%d", &n); err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

// pdfTextString renders a text string in PDF syntax: printable ASCII as an
// escaped literal, everything else as a UTF-16BE hex string with BOM.
func pdfTextString(s string) string {
	ascii := true
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			ascii = false
			break
		}
	}
	if ascii {
		r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
		return "(" + r.Replace(s) + ")"
	}
	var b strings.Builder
	b.WriteString("<FEFF")
	for _, u := range utf16.Encode([]rune(s)) {
		fmt.Fprintf(&b, "%04X", u)
	}
	b.WriteString(">")
	return b.String()
}
