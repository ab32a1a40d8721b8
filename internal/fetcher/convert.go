package fetcher

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Excel serial day numbers covering 1901 through 2099; values outside this
// window in a date column are plain numbers, not dates.
const (
	excelSerialMin = 365
	excelSerialMax = 73050
)

// excelEpoch is the Excel 1900 date system epoch, with its leap-year bug
// folded in.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ConvertOptions configures XLSXToCSV.
type ConvertOptions struct {
	XLSX XLSXOptions
	// DateColumns lists zero-based columns whose integer cells hold Excel
	// serial dates and should be rewritten as YYYY/MM/DD.
	DateColumns []int
}

// XLSXToCSV converts an in-memory XLSX workbook to CSV rows on w, preserving
// the sheet's cell values verbatim except for serial dates in the configured
// date columns.
func XLSXToCSV(data []byte, w io.Writer, opts ConvertOptions) error {
	rows, err := ReadXLSXBytes(data, opts.XLSX)
	if err != nil {
		return err
	}

	dateCols := make(map[int]bool, len(opts.DateColumns))
	for _, c := range opts.DateColumns {
		dateCols[c] = true
	}

	writer := csv.NewWriter(w)
	for _, row := range rows {
		out := make([]string, len(row))
		for i, cell := range row {
			if dateCols[i] {
				cell = serialToDate(cell)
			}
			out[i] = cell
		}
		if err := writer.Write(out); err != nil {
			return eris.Wrap(err, "convert: write csv row")
		}
	}

	writer.Flush()
	return eris.Wrap(writer.Error(), "convert: flush csv")
}

// serialToDate rewrites an integer Excel serial date as YYYY/MM/DD. Anything
// that is not a plausible serial comes back unchanged.
func serialToDate(cell string) string {
	s := strings.TrimSpace(cell)
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return cell
	}
	days := int64(serial)
	if float64(days) != serial || days <= excelSerialMin || days >= excelSerialMax {
		return cell
	}
	return excelEpoch.AddDate(0, 0, int(days)).Format("2006/01/02")
}
