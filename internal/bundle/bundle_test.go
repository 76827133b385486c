package bundle

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"
)

func TestZip(t *testing.T) {
	entries := []Entry{
		{Name: "[EDITED] a.pdf", Data: []byte("first")},
		{Name: "[EDITED] b.pdf", Data: []byte("second")},
	}
	data, err := Zip(entries)
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("output is not a readable archive: %v", err)
	}
	if len(zr.File) != len(entries) {
		t.Fatalf("archive holds %d files, want %d", len(zr.File), len(entries))
	}
	for i, f := range zr.File {
		if f.Name != entries[i].Name {
			t.Errorf("entry %d named %q, want %q", i, f.Name, entries[i].Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(content, entries[i].Data) {
			t.Errorf("entry %q content = %q, want %q", f.Name, content, entries[i].Data)
		}
	}
}

func TestZipEmpty(t *testing.T) {
	data, err := Zip(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zip.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
		t.Errorf("empty archive not readable: %v", err)
	}
}

func TestName(t *testing.T) {
	now := time.Date(2026, 2, 13, 0, 30, 10, 0, time.UTC)
	if got := Name("edited", now); got != "pdfs_edited_20260213_003010.zip" {
		t.Errorf("Name() = %q", got)
	}
}
