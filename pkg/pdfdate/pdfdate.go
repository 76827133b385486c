// Package pdfdate converts between the textual date encoding used in PDF
// info dictionaries (e.g. D:20260213003010+05'30') and time.Time values
// carrying a fixed UTC offset.
package pdfdate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const layout = "20060102150405"

// Calendar fields absent from a truncated date string default to the
// corresponding slice of this template: month and day to 01, the
// time-of-day fields to 00.
const fieldDefaults = "00000101000000"

// Parse interprets a PDF date string as a point in time with a fixed UTC
// offset. It reports ok=false for input lacking the D: prefix, for input
// without any date digits and for digit segments that do not form a valid
// calendar date once padded. A malformed timezone suffix never fails the
// parse; the offset degrades to UTC instead.
func Parse(raw string) (time.Time, bool) {
	if !strings.HasPrefix(raw, "D:") {
		return time.Time{}, false
	}
	rest := raw[2:]

	n := 0
	for n < len(rest) && n < len(layout) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	if n == 0 {
		// prefix without any date digits
		return time.Time{}, false
	}
	base := rest[:n] + fieldDefaults[n:]

	t, err := time.Parse(layout, base)
	if err != nil {
		// padded digits do not form a valid calendar date
		return time.Time{}, false
	}
	offset := parseOffset(rest[n:])
	if offset == 0 {
		return t, true
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, Zone(offset)), true
}

// parseOffset derives the UTC offset in minutes from the timezone suffix of
// a PDF date string. Unrecognized or partially unparsable suffixes degrade
// the affected component to zero.
func parseOffset(suffix string) int {
	if suffix == "" || suffix == "Z" {
		return 0
	}
	sign := 1
	switch suffix[0] {
	case '+':
	case '-':
		sign = -1
	default:
		// neither Z nor a signed offset
		return 0
	}
	hours, err := strconv.Atoi(digitsIn(suffix, 1, 3))
	if err != nil {
		// hour fragment unparsable
		hours = 0
	}
	// the minute field sits beyond the quote separator
	minutes, err := strconv.Atoi(digitsIn(suffix, 4, 6))
	if err != nil {
		// minute fragment absent or unparsable
		minutes = 0
	}
	return sign * (hours*60 + minutes)
}

// digitsIn collects the digit characters of s within [from, to).
func digitsIn(s string, from, to int) string {
	var b strings.Builder
	for i := from; i < to && i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Format renders t in the PDF date encoding. The calendar digits are the
// wall-clock fields as expressed in t's own offset, never renormalized to
// UTC, so that Parse(Format(t)) reproduces both the wall clock and the
// offset. A zero offset is always rendered as the Z suffix.
func Format(t time.Time) string {
	_, seconds := t.Zone()
	minutes := seconds / 60
	if minutes == 0 {
		return "D:" + t.Format(layout) + "Z"
	}
	sign := byte('+')
	if minutes < 0 {
		sign = '-'
		minutes = -minutes
	}
	return fmt.Sprintf("D:%s%c%02d'%02d'", t.Format(layout), sign, minutes/60, minutes%60)
}

// Zone returns a fixed-offset location for the given offset in minutes.
func Zone(offsetMinutes int) *time.Location {
	if offsetMinutes == 0 {
		return time.UTC
	}
	m := offsetMinutes
	sign := "+"
	if m < 0 {
		sign = "-"
		m = -m
	}
	return time.FixedZone(fmt.Sprintf("UTC%s%02d:%02d", sign, m/60, m%60), offsetMinutes*60)
}
