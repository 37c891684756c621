package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title: "Enrollments",
		Columns: []Column{
			{Key: "id", Label: "ID", Weight: 0.5},
			{Key: "student", Label: "Student", Weight: 2},
			{Key: "subject", Label: "Subject", Weight: 2},
		},
		Rows: []map[string]string{
			{"id": "1001", "student": "Ana Pérez", "subject": "Álgebra"},
			{"id": "1002", "student": "Luis, Jr", "subject": "Física"},
		},
	}
}

func TestCSVRendererWritesLabelsAndRows(t *testing.T) {
	out, err := NewCSVRenderer().Render(sampleTable())
	require.NoError(t, err)
	assert.Equal(t, "ID,Student,Subject\n1001,Ana Pérez,Álgebra\n1002,\"Luis, Jr\",Física\n", string(out))
}

func TestPDFRendererProducesDocument(t *testing.T) {
	out, err := NewPDFRenderer().Render(sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderersRequireColumns(t *testing.T) {
	_, err := NewCSVRenderer().Render(Table{})
	assert.Error(t, err)
	_, err = NewPDFRenderer().Render(Table{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(sampleTable().Columns)
	sum := 0.0
	for _, w := range widths {
		sum += w
	}
	assert.InDelta(t, pageContentWidth, sum, 0.001)
	assert.InDelta(t, widths[1], widths[0]*4, 0.001)
}
