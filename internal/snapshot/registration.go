package snapshot

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/helvemed/meddiff/internal/fetcher"
	"github.com/helvemed/meddiff/internal/gtin"
	"github.com/helvemed/meddiff/internal/model"
)

// Column positions in the Swissmedic packages export. The export has no
// stable header row, so positions are fixed by convention.
const (
	colRegNr       = 0
	colName        = 2
	colOwner       = 3
	colExpiryDate  = 9
	colPackCode    = 10
	colSequence    = 12
	colCategory    = 13
	colActiveAgent = 16
	colComposition = 17
	colIndication  = 19
)

// minRegistrationColumns is the shortest row that can still carry a pack
// code; shorter rows are headers or continuation junk and get skipped.
const minRegistrationColumns = 11

// LoadRegistrations reads a Swissmedic packages export from disk. Both the
// raw XLSX and the converted CSV form are accepted, chosen by extension.
func LoadRegistrations(path string) (*model.RegistrationSnapshot, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	default:
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrapf(openErr, "snapshot: open %s", path)
		}
		defer f.Close()
		rows, err = fetcher.ReadCSV(f, fetcher.CSVOptions{})
	}
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: read %s", path)
	}

	snap, err := RegistrationsFromRows(rows, labelFor(path))
	if err != nil {
		return nil, err
	}

	zap.L().Info("registration snapshot loaded",
		zap.String("path", path),
		zap.String("label", snap.Label),
		zap.Int("records", len(snap.Records)),
		zap.Int("rows", len(rows)),
	)
	return snap, nil
}

// RegistrationsFromRows builds a snapshot from already-parsed tabular rows.
// Rows too short to carry a pack code and rows whose registration number or
// pack code cannot form a valid identifier are skipped; these are header and
// filler rows in every export seen so far. Field values are trimmed and have
// their line endings normalized so the differ can compare them verbatim.
func RegistrationsFromRows(rows [][]string, label string) (*model.RegistrationSnapshot, error) {
	snap := &model.RegistrationSnapshot{Label: label}
	skipped := 0

	for _, row := range rows {
		if len(row) < minRegistrationColumns {
			skipped++
			continue
		}

		id, err := gtin.Build(row[colRegNr], row[colPackCode])
		if err != nil {
			skipped++
			continue
		}

		composition := cellValue(row, colComposition)
		if agent := cellValue(row, colActiveAgent); agent != "" {
			if composition == "" {
				composition = agent
			} else if agent != composition {
				composition = agent + "\n" + composition
			}
		}

		snap.Records = append(snap.Records, model.RegistrationRecord{
			GTIN:        id,
			RegNr:       strings.TrimSpace(row[colRegNr]),
			PackCode:    strings.TrimSpace(row[colPackCode]),
			Name:        cellValue(row, colName),
			Owner:       cellValue(row, colOwner),
			Category:    cellValue(row, colCategory),
			Composition: composition,
			Indication:  cellValue(row, colIndication),
			Sequence:    cellValue(row, colSequence),
			ExpiryDate:  cellValue(row, colExpiryDate),
		})
	}

	if len(snap.Records) == 0 {
		return nil, eris.Errorf("snapshot: no registration records in input (%d rows skipped)", skipped)
	}

	if skipped > 0 {
		zap.L().Debug("registration rows skipped", zap.Int("skipped", skipped))
	}
	return snap, nil
}

func cellValue(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	v := strings.ReplaceAll(row[i], "\r\n", "\n")
	v = strings.ReplaceAll(v, "\r", "\n")
	return strings.TrimSpace(v)
}

func labelFor(path string) string {
	if t, ok := DateFromFilename(path); ok {
		return t.Format(DateLayout)
	}
	return fallbackDate(path).Format(DateLayout)
}
