package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// KeyColumn names the header-less first column R writes for row names.
const KeyColumn = "sequence"

// Row maps a lowercased header to a cell. Cells are nil ("" and "NA"),
// float64 (anything that parses as a finite number) or string.
type Row map[string]any

type Table struct {
	Header []string
	Rows   []Row
}

func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ParseTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func ParseTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = KeyColumn
		}
		header[i] = strings.ToLower(h)
	}

	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		row := make(Row, len(header))
		for i, name := range header {
			if i >= len(rec) {
				row[name] = nil
				continue
			}
			row[name] = Coerce(rec[i])
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Coerce applies the cell rules: "" and "NA" are null, finite numbers become float64.
func Coerce(raw string) any {
	v := strings.TrimSpace(raw)
	if v == "" || v == "NA" {
		return nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return v
}

// Str returns the cell as text, or nil when null.
func (r Row) Str(key string) *string {
	switch v := r[key].(type) {
	case nil:
		return nil
	case string:
		return &v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	default:
		s := fmt.Sprint(v)
		return &s
	}
}

// Num returns the cell as a number when it holds one.
func (r Row) Num(key string) (float64, bool) {
	f, ok := r[key].(float64)
	return f, ok
}
