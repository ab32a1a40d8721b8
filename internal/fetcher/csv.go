package fetcher

import (
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

// CSVOptions configures the CSV parser.
type CSVOptions struct {
	Delimiter rune // default ','
	SkipRows  int  // number of header rows to skip
}

// ReadCSV reads all rows from r. Historic Swissmedic exports ship in
// ISO-8859-1; content that is not valid UTF-8 is decoded from Latin-1 before
// parsing.
func ReadCSV(r io.Reader, opts CSVOptions) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "csv: read input")
	}

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		src = charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(data))
	}

	reader := csv.NewReader(src)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // exports have ragged rows

	var rows [][]string
	for i := 0; ; i++ {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: read row %d", i+1)
		}
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, record)
	}
}
