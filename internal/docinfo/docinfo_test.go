package docinfo

import (
	"bytes"
	"fmt"
	"maps"
	"testing"
)

// minimalPdf assembles a one-page PDF with the given info dictionary body,
// tracking object offsets so the cross reference table stays valid.
func minimalPdf(t *testing.T, info string) []byte {
	t.Helper()
	var b bytes.Buffer
	var offsets []int
	add := func(body string) {
		offsets = append(offsets, b.Len())
		b.WriteString(body)
	}
	b.WriteString("%PDF-1.7\n")
	add("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	add("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	add("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << >> >>\nendobj\n")
	trailer := "<< /Size %d /Root 1 0 R >>"
	if info != "" {
		add("4 0 obj\n" + info + "\nendobj\n")
		trailer = "<< /Size %d /Root 1 0 R /Info 4 0 R >>"
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(offsets)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n"+trailer+"\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return b.Bytes()
}

func TestOpenRejectsNonPdf(t *testing.T) {
	e := NewPdfcpuEngine(nil)
	if _, err := e.Open([]byte("just some text, no document at all")); err == nil {
		t.Error("expected an error for non-PDF input")
	}
}

func TestInfoFields(t *testing.T) {
	e := NewPdfcpuEngine(nil)
	data := minimalPdf(t, "<< /Title (Quarterly Report) /Author (R. Kl) /CreationDate (D:20240419110302+02'00') >>")
	h, err := e.Open(data)
	if err != nil {
		t.Fatal(err)
	}
	fields := h.InfoFields()
	if fields[KeyTitle] != "Quarterly Report" {
		t.Errorf("Title = %q, want %q", fields[KeyTitle], "Quarterly Report")
	}
	if fields[KeyAuthor] != "R. Kl" {
		t.Errorf("Author = %q, want %q", fields[KeyAuthor], "R. Kl")
	}
	if fields[KeyCreationDate] != "D:20240419110302+02'00'" {
		t.Errorf("CreationDate = %q", fields[KeyCreationDate])
	}
}

func TestInfoFieldsWithoutInfoDict(t *testing.T) {
	e := NewPdfcpuEngine(nil)
	h, err := e.Open(minimalPdf(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if fields := h.InfoFields(); len(fields) != 0 {
		t.Errorf("expected no fields, got %v", fields)
	}
}

func TestSetInfoFieldsSurvivesSerialize(t *testing.T) {
	e := NewPdfcpuEngine(nil)
	h, err := e.Open(minimalPdf(t, "<< /Title (Old) /Subject (Stale) >>"))
	if err != nil {
		t.Fatal(err)
	}
	h.SetInfoFields(map[string]string{
		KeyTitle:  "New Title",
		KeyAuthor: "New Author",
	})
	out, err := h.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	reopened, err := e.Open(out)
	if err != nil {
		t.Fatalf("serialized document does not reopen: %v", err)
	}
	fields := reopened.InfoFields()
	if fields[KeyTitle] != "New Title" {
		t.Errorf("Title = %q, want %q", fields[KeyTitle], "New Title")
	}
	if fields[KeyAuthor] != "New Author" {
		t.Errorf("Author = %q, want %q", fields[KeyAuthor], "New Author")
	}
	if fields[KeySubject] != "" {
		t.Errorf("Subject should have been replaced away, got %q", fields[KeySubject])
	}
}

// The pdfcpu writer stamps Producer, CreationDate and ModDate while writing.
// A cleared document must come back without any of them.
func TestClearSurvivesWriterStamping(t *testing.T) {
	e := NewPdfcpuEngine(nil)
	h, err := e.Open(minimalPdf(t, "<< /Title (Secret) /Producer (OldWriter 1.0) /CreationDate (D:20240101120000Z) /ModDate (D:20240102130000Z) >>"))
	if err != nil {
		t.Fatal(err)
	}
	h.ClearInfoFields()
	h.RemoveField(KeyCreationDate)
	h.RemoveField(KeyModDate)
	out, err := h.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	reopened, err := e.Open(out)
	if err != nil {
		t.Fatalf("serialized document does not reopen: %v", err)
	}
	if fields := reopened.InfoFields(); len(fields) != 0 {
		t.Errorf("cleared document still carries fields: %v", fields)
	}
}

// Explicitly set dates and Producer must survive serialization byte for
// byte, not get replaced with the writer's own values.
func TestDatesAndProducerSurviveSerialize(t *testing.T) {
	want := map[string]string{
		KeyTitle:        "Annual Report",
		KeyProducer:     "OpenPDF 1.3.30",
		KeyCreationDate: "D:20260213003010+05'30'",
		KeyModDate:      "D:20260213003010Z",
	}
	e := NewPdfcpuEngine(nil)
	h, err := e.Open(minimalPdf(t, "<< /Title (Old) >>"))
	if err != nil {
		t.Fatal(err)
	}
	h.SetInfoFields(want)
	out, err := h.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	reopened, err := e.Open(out)
	if err != nil {
		t.Fatalf("serialized document does not reopen: %v", err)
	}
	if got := reopened.InfoFields(); !maps.Equal(got, want) {
		t.Errorf("info dictionary after serialize = %v, want %v", got, want)
	}
}

// Non-ASCII values take the hex string route and must round-trip too.
func TestNonAsciiFieldsSurviveSerialize(t *testing.T) {
	want := map[string]string{
		KeyTitle:  "Résumé — Überblick",
		KeyAuthor: "José Müller",
	}
	e := NewPdfcpuEngine(nil)
	h, err := e.Open(minimalPdf(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	h.SetInfoFields(want)
	out, err := h.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	reopened, err := e.Open(out)
	if err != nil {
		t.Fatalf("serialized document does not reopen: %v", err)
	}
	if got := reopened.InfoFields(); !maps.Equal(got, want) {
		t.Errorf("info dictionary after serialize = %v, want %v", got, want)
	}
}

func TestSetInfoFieldsCreatesInfoDict(t *testing.T) {
	e := NewPdfcpuEngine(nil)
	h, err := e.Open(minimalPdf(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	h.SetInfoFields(map[string]string{KeyTitle: "Fresh"})
	out, err := h.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	reopened, err := e.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.InfoFields()[KeyTitle]; got != "Fresh" {
		t.Errorf("Title = %q, want %q", got, "Fresh")
	}
}
