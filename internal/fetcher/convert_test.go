package fetcher

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialToDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"45658", "2025/01/01"}, // serial for 1 Jan 2025
		{"366", "1900/12/31"},
		{"123", "123"},          // below serial window
		{"80000", "80000"},      // above serial window
		{"45658.5", "45658.5"},  // fractional, not a bare date
		{"Tabletten", "Tabletten"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, serialToDate(tt.in), "input %q", tt.in)
	}
}

func TestXLSXToCSV(t *testing.T) {
	data := buildWorkbook(t, "Packungen", [][]string{
		{"12345", "x", "45658"},
		{"67890", "y", "not a date"},
	})

	var buf bytes.Buffer
	err := XLSXToCSV(data, &buf, ConvertOptions{DateColumns: []int{2}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "12345,x,2025/01/01", lines[0])
	assert.Equal(t, "67890,y,not a date", lines[1])
}

func TestXLSXToCSVInvalidInput(t *testing.T) {
	var buf bytes.Buffer
	err := XLSXToCSV([]byte("nope"), &buf, ConvertOptions{})
	assert.Error(t, err)
}
