package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
)

// ErrRowOutOfRange is returned by ValuesFor for an index outside the
// source.
var ErrRowOutOfRange = errors.New("row index out of range")

// RowSource provides the data rows of a merge.
type RowSource interface {
	RowCount() int
	ValuesFor(index int) (map[string]string, error)
}

// MemorySource is a RowSource over rows held in memory.
type MemorySource struct {
	fields []string
	rows   []map[string]string
}

// NewMemorySource creates a source over rows. fields is the column order;
// when nil it is the sorted union of the rows' keys.
func NewMemorySource(fields []string, rows []map[string]string) *MemorySource {
	if fields == nil {
		seen := map[string]struct{}{}
		for _, r := range rows {
			for k := range r {
				seen[k] = struct{}{}
			}
		}
		fields = slices.Sorted(maps.Keys(seen))
	}
	return &MemorySource{fields: fields, rows: rows}
}

// Fields returns the column names.
func (s *MemorySource) Fields() []string {
	return slices.Clone(s.fields)
}

// RowCount implements RowSource.
func (s *MemorySource) RowCount() int {
	return len(s.rows)
}

// ValuesFor implements RowSource. The returned map is a copy.
func (s *MemorySource) ValuesFor(index int) (map[string]string, error) {
	if index < 0 || index >= len(s.rows) {
		return nil, fmt.Errorf("%w: %d (rows=%d)", ErrRowOutOfRange, index, len(s.rows))
	}
	return maps.Clone(s.rows[index]), nil
}

// ReadCSV loads a source from CSV. The first record holds the field names.
func ReadCSV(r io.Reader) (*MemorySource, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return NewMemorySource([]string{}, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(rows)+1, err)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return NewMemorySource(header, rows), nil
}

// LoadCSV reads a CSV file with ReadCSV.
func LoadCSV(path string) (*MemorySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data source: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}
