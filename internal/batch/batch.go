// Package batch applies one metadata transform independently to every
// document of an uploaded set. A failing item never aborts the run; it is
// reported as a per-item outcome instead.
package batch

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/klrk/metadata-edit-service/internal/docinfo"
	"github.com/klrk/metadata-edit-service/pkg/pdfdate"
)

// Item is one uploaded document. Never mutated.
type Item struct {
	Name string
	Data []byte
}

// Outcome is the per-item result, produced exactly once per Item and in
// input order. Either Name/Data are set or Err is.
type Outcome struct {
	Source string
	Name   string
	Data   []byte
	Err    error
}

func (o Outcome) Failed() bool { return o.Err != nil }

// Description renders a failed outcome for the caller's error listing.
func (o Outcome) Description() string {
	return fmt.Sprintf("%s: %v", o.Source, o.Err)
}

type Mode int

const (
	ModeApply Mode = iota
	ModeClear
)

// DateStrategy selects where Apply takes the two date fields from.
type DateStrategy int

const (
	// DatesShared writes the template's instants into every document.
	DatesShared DateStrategy = iota
	// DatesPreserved re-encodes each document's own pre-existing dates.
	DatesPreserved
)

// FieldSet is the Apply-mode template. Scalar fields are trimmed before
// writing; fields that are blank after trimming are omitted entirely. Nil
// instants are omitted as well, never written as blank.
type FieldSet struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string

	Creation     *time.Time
	Modification *time.Time
}

type Request struct {
	Mode   Mode
	Fields FieldSet
	Dates  DateStrategy
}

// Processor rewrites document metadata through an injected engine.
type Processor struct {
	engine docinfo.Engine
	log    *slog.Logger
}

func New(engine docinfo.Engine, logger *slog.Logger) *Processor {
	p := &Processor{engine: engine, log: logger}
	if logger == nil {
		p.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// Run processes the items sequentially and returns one outcome per item, in
// input order. Nothing but the returned slice survives the call.
func (p *Processor) Run(items []Item, req Request) []Outcome {
	outcomes := make([]Outcome, 0, len(items))
	for i, item := range items {
		out := p.processOne(item, req)
		if out.Failed() {
			p.log.Warn("Item failed", "index", i, "name", item.Name, "err", out.Err)
		} else {
			p.log.Debug("Item processed", "index", i, "name", item.Name, "output", out.Name)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (p *Processor) processOne(item Item, req Request) (out Outcome) {
	out = Outcome{Source: item.Name}
	// pdfcpu is known to panic on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Source: item.Name, Err: fmt.Errorf("processing panicked: %v", r)}
		}
	}()

	h, err := p.engine.Open(item.Data)
	if err != nil {
		out.Err = err
		return out
	}

	prefix := "[EDITED]"
	switch req.Mode {
	case ModeClear:
		prefix = "[CLEARED]"
		h.ClearInfoFields()
		// The rewrite engine populates fresh dates on write unless they are
		// removed explicitly after the blanket clear.
		h.RemoveField(docinfo.KeyCreationDate)
		h.RemoveField(docinfo.KeyModDate)
	case ModeApply:
		h.SetInfoFields(applyFields(h, req))
	}

	data, err := h.Serialize()
	if err != nil {
		out.Err = err
		return out
	}
	out.Name = outputName(prefix, item.Name)
	out.Data = data
	return out
}

// applyFields builds the replacement info dictionary for one document from
// the request template and, for DatesPreserved, the document's own dates.
func applyFields(h docinfo.Handle, req Request) map[string]string {
	fields := make(map[string]string)
	scalars := map[string]string{
		docinfo.KeyTitle:    req.Fields.Title,
		docinfo.KeyAuthor:   req.Fields.Author,
		docinfo.KeySubject:  req.Fields.Subject,
		docinfo.KeyKeywords: req.Fields.Keywords,
		docinfo.KeyCreator:  req.Fields.Creator,
		docinfo.KeyProducer: req.Fields.Producer,
	}
	for key, value := range scalars {
		if v := strings.TrimSpace(value); v != "" {
			fields[key] = v
		}
	}

	switch req.Dates {
	case DatesShared:
		if req.Fields.Creation != nil {
			fields[docinfo.KeyCreationDate] = pdfdate.Format(*req.Fields.Creation)
		}
		if req.Fields.Modification != nil {
			fields[docinfo.KeyModDate] = pdfdate.Format(*req.Fields.Modification)
		}
	case DatesPreserved:
		original := h.InfoFields()
		if t, ok := pdfdate.Parse(original[docinfo.KeyCreationDate]); ok {
			fields[docinfo.KeyCreationDate] = pdfdate.Format(t)
		}
		if t, ok := pdfdate.Parse(original[docinfo.KeyModDate]); ok {
			fields[docinfo.KeyModDate] = pdfdate.Format(t)
		}
	}
	return fields
}

func outputName(prefix, source string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s %s.pdf", prefix, stem)
}
