// Package snapshot loads dated registry extracts into comparable in-memory
// form: the Swissmedic packages export (XLSX or CSV) and the FOPH SL FHIR
// bundle export (NDJSON). Loaded snapshots are immutable; the differs only
// read them.
package snapshot

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the display form used in snapshot labels and report
// filenames, matching the upstream export naming convention.
const DateLayout = "02.01.2006"

// DateFromFilename extracts a date from an export filename. It understands
// the two conventions the registries use: "Packungen-YYYY.MM.DD" and a
// "dd.mm.yyyy" segment separated by underscores (e.g. "sl_06.01.2026.ndjson").
func DateFromFilename(path string) (time.Time, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if _, rest, ok := strings.Cut(stem, "Packungen-"); ok {
		if t, ok := parseDateSegments(rest, "."); ok {
			return t, true
		}
	}

	for _, part := range strings.Split(stem, "_") {
		if t, ok := parseDMYSegments(part); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

// parseDateSegments parses "YYYY.MM.DD".
func parseDateSegments(s, sep string) (time.Time, bool) {
	seg := strings.Split(s, sep)
	if len(seg) != 3 || len(seg[0]) != 4 {
		return time.Time{}, false
	}
	y, err1 := strconv.Atoi(seg[0])
	m, err2 := strconv.Atoi(seg[1])
	d, err3 := strconv.Atoi(seg[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	return dateOf(y, m, d)
}

// parseDMYSegments parses "dd.mm.yyyy".
func parseDMYSegments(s string) (time.Time, bool) {
	seg := strings.Split(s, ".")
	if len(seg) != 3 || len(seg[0]) > 2 || len(seg[1]) > 2 || len(seg[2]) != 4 {
		return time.Time{}, false
	}
	d, err1 := strconv.Atoi(seg[0])
	m, err2 := strconv.Atoi(seg[1])
	y, err3 := strconv.Atoi(seg[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	return dateOf(y, m, d)
}

func dateOf(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), true
}

// fallbackDate resolves a snapshot date when the content carries none: the
// filename convention first, the file modification time otherwise.
func fallbackDate(path string) time.Time {
	if t, ok := DateFromFilename(path); ok {
		return t
	}
	if info, err := os.Stat(path); err == nil {
		mt := info.ModTime().UTC()
		return time.Date(mt.Year(), mt.Month(), mt.Day(), 0, 0, 0, 0, time.UTC)
	}
	return time.Now().UTC().Truncate(24 * time.Hour)
}
