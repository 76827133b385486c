// Package bundle packages named byte blobs into a single zip archive for
// download.
package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// Entry is one named blob to be archived.
type Entry struct {
	Name string
	Data []byte
}

// Zip writes the entries into a deflate-compressed archive, in order.
func Zip(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range entries {
		w, err := zw.Create(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("adding %s to archive: %w", entry.Name, err)
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("writing %s to archive: %w", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Name returns the download file name for a batch archive, e.g.
// pdfs_edited_20260213_003010.zip.
func Name(label string, now time.Time) string {
	return fmt.Sprintf("pdfs_%s_%s.zip", label, now.Format("20060102_150405"))
}
