package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMissingColumn is returned when a CSV lacks a column the destination
// table requires.
var ErrMissingColumn = errors.New("missing required column")

// ErrMissingField is returned when a row has no value for a required column.
var ErrMissingField = errors.New("missing required field")

// SourceColumn is the in-memory tag added to every row.
const SourceColumn = "source_file"

// Columns are the destination table's columns, in insert order.
var Columns = []string{"transaction_id", "customer_name", "amount", "currency", "transaction_date"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is one parsed CSV object.
type Table struct {
	Source string
	Header []string
	Rows   [][]string
	Lines  []int // line number of each row in the source
	fields []int // cells present in each row before padding
}

// Parse reads a CSV document whose first row is the header. Rows are padded
// or truncated to the header width, then every row gets a trailing
// source_file value of source.
func Parse(source string, data []byte) (Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1

	t := Table{Source: source}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("parsing %s: %w", source, err)
		}

		if t.Header == nil {
			t.Header = make([]string, 0, len(rec)+1)
			for _, h := range rec {
				t.Header = append(t.Header, strings.TrimSpace(h))
			}
			t.Header = append(t.Header, SourceColumn)
			continue
		}
		if len(rec) == 1 && rec[0] == "" {
			continue
		}

		line, _ := r.FieldPos(0)
		width := len(t.Header) - 1
		row := make([]string, width+1)
		copy(row[:width], rec)
		row[width] = source
		t.Rows = append(t.Rows, row)
		t.Lines = append(t.Lines, line)
		t.fields = append(t.fields, min(len(rec), width))
	}
	if t.Header == nil {
		t.Header = []string{SourceColumn}
	}
	return t, nil
}

// index maps each required column to its position in the header.
func (t Table) index(columns []string) ([]int, error) {
	pos := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		p, ok := pos[c]
		if !ok {
			return nil, fmt.Errorf("%w %q in %s", ErrMissingColumn, c, t.Source)
		}
		idx[i] = p
	}
	return idx, nil
}

// values returns row i's cells at idx. Every cell must be present and
// non-empty.
func (t Table) values(idx []int, i int) ([]any, error) {
	out := make([]any, len(idx))
	for j, p := range idx {
		v := t.Rows[i][p]
		if p >= t.fields[i] || strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w %q in %s line %d", ErrMissingField, t.Header[p], t.Source, t.Lines[i])
		}
		out[j] = v
	}
	return out, nil
}
