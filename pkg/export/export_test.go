package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	return Report{
		Title:   "Algebra I progress",
		Summary: [][2]string{{"total_lectures", "10"}, {"class_average", "10.00"}},
		Columns: []string{"student_id", "present", "progress_percentage"},
		Rows:    [][]string{{"s-1", "1", "10.00"}, {"s-2", "0", "0.00"}},
	}
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

func TestCSVRenderer(t *testing.T) {
	out, err := CSVRenderer{}.Render(sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "total_lectures,10\nclass_average,10.00\n\nstudent_id,present,progress_percentage\ns-1,1,10.00\ns-2,0,0.00\n", string(out))
}

func TestPDFRenderer(t *testing.T) {
	out, err := RendererFor(FormatPDF).Render(sampleReport())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRejectsRaggedRows(t *testing.T) {
	r := sampleReport()
	r.Rows = append(r.Rows, []string{"s-3"})
	_, err := CSVRenderer{}.Render(r)
	assert.Error(t, err)
}
