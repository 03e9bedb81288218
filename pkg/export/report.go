// Package export renders tabular reports as CSV or PDF documents.
package export

import (
	"fmt"
	"strings"
)

// Format names an output encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts "csv" or "pdf" in any case. Empty defaults to CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

// Report is a titled table with an optional summary block.
type Report struct {
	Title   string
	Summary [][2]string
	Columns []string
	Rows    [][]string
}

// Renderer encodes a report.
type Renderer interface {
	Render(Report) ([]byte, error)
}

// RendererFor returns the renderer for f.
func RendererFor(f Format) Renderer {
	if f == FormatPDF {
		return PDFRenderer{}
	}
	return CSVRenderer{}
}

func (r Report) validate() error {
	if len(r.Columns) == 0 {
		return fmt.Errorf("report %q has no columns", r.Title)
	}
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("report row %d has %d cells, want %d", i, len(row), len(r.Columns))
		}
	}
	return nil
}
