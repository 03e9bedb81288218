package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVRenderer writes the summary as key,value lines, a blank line, then the table.
type CSVRenderer struct{}

func (CSVRenderer) Render(r Report) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	for _, kv := range r.Summary {
		if err := w.Write(kv[:]); err != nil {
			return nil, fmt.Errorf("write csv summary: %w", err)
		}
	}
	if len(r.Summary) > 0 {
		if err := w.Write([]string{}); err != nil {
			return nil, fmt.Errorf("write csv separator: %w", err)
		}
	}
	if err := w.Write(r.Columns); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	if err := w.WriteAll(r.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}
