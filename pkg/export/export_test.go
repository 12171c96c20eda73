package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var sample = Table{
	Sheet:   "Registrations",
	Headers: []string{"Name", "Email", "Amount"},
	Rows: [][]string{
		{"Nguyễn Văn A", "a@example.com", "500000"},
		{"B, with comma", "b@example.com", "0"},
	},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample))

	out := strings.TrimPrefix(buf.String(), "\xEF\xBB\xBF")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Name,Email,Amount", lines[0])
	assert.Equal(t, `"B, with comma",b@example.com,0`, lines[2])
}

func TestWriteXLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sample))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Registrations")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, sample.Headers, rows[0])
	assert.Equal(t, "Nguyễn Văn A", rows[1][0])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
