// Package docinfotest provides an in-memory document engine for tests.
// Documents are JSON encoded info dictionaries. Like some real PDF writers
// the engine populates CreationDate and ModDate on serialize unless they
// were removed explicitly, so callers can test their defenses against an
// auto-populating writer without touching real PDFs.
package docinfotest

import (
	"encoding/json"
	"errors"

	"github.com/klrk/metadata-edit-service/internal/docinfo"
)

// AutoDate is the date the engine stamps on serialize.
const AutoDate = "D:20250101000000Z"

type Engine struct{}

func (Engine) Open(data []byte) (docinfo.Handle, error) {
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.New("could not read object")
	}
	if fields == nil {
		fields = make(map[string]string)
	}
	return &handle{fields: fields, removed: make(map[string]bool)}, nil
}

type handle struct {
	fields  map[string]string
	removed map[string]bool
}

func (h *handle) InfoFields() map[string]string {
	out := make(map[string]string, len(h.fields))
	for k, v := range h.fields {
		out[k] = v
	}
	return out
}

func (h *handle) SetInfoFields(fields map[string]string) {
	h.fields = make(map[string]string)
	for k, v := range fields {
		h.fields[k] = v
		delete(h.removed, k)
	}
}

func (h *handle) ClearInfoFields() { h.fields = make(map[string]string) }

func (h *handle) RemoveField(key string) {
	delete(h.fields, key)
	h.removed[key] = true
}

func (h *handle) Serialize() ([]byte, error) {
	out := h.InfoFields()
	for _, key := range []string{docinfo.KeyCreationDate, docinfo.KeyModDate} {
		if _, present := out[key]; !present && !h.removed[key] {
			out[key] = AutoDate
		}
	}
	return json.Marshal(out)
}

// Doc encodes an info dictionary as engine input.
func Doc(fields map[string]string) ([]byte, error) {
	return json.Marshal(fields)
}

// Fields decodes engine output back into an info dictionary.
func Fields(data []byte) (map[string]string, error) {
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
