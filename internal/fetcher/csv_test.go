package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	input := "a,b,c\n1,2,3\n"

	rows, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"1", "2", "3"}}, rows)
}

func TestReadCSVSkipRows(t *testing.T) {
	input := "header\na,b\n1,2\n"

	rows, err := ReadCSV(strings.NewReader(input), CSVOptions{SkipRows: 1})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, rows)
}

func TestReadCSVLatin1Fallback(t *testing.T) {
	// "Zürich" with a Latin-1 encoded ü (0xFC), not valid UTF-8.
	input := []byte{'Z', 0xFC, 'r', 'i', 'c', 'h', ',', '1', '\n'}

	rows, err := ReadCSV(strings.NewReader(string(input)), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Zürich", "1"}, rows[0])
}

func TestReadCSVRaggedRows(t *testing.T) {
	input := "a,b,c\n1,2\n"

	rows, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Len(t, rows[0], 3)
	assert.Len(t, rows[1], 2)
}

func TestReadCSVSemicolonDelimiter(t *testing.T) {
	input := "a;b\n1;2\n"

	rows, err := ReadCSV(strings.NewReader(input), CSVOptions{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, rows)
}
