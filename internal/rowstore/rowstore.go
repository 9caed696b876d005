// Package rowstore defines the sheet-like table store the case core persists to.
// Tables are addressed by name; each has a header row and data rows addressed
// by 0-based data index and 0-based column offset. Cells are strings.
package rowstore

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoTable    = errors.New("rowstore: table not found")
	ErrRowMissing = errors.New("rowstore: row out of range")
)

type Row []string

// Cell returns the value at col, or "" when the row is shorter.
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

type Store interface {
	EnsureTable(ctx context.Context, table string, header []string) error
	Header(ctx context.Context, table string) (Row, error)
	// Rows returns a snapshot of every data row; later writes do not affect it.
	Rows(ctx context.Context, table string) ([]Row, error)
	ReadRow(ctx context.Context, table string, idx int) (Row, error)
	WriteCells(ctx context.Context, table string, idx int, cells map[int]string) error
	AppendRow(ctx context.Context, table string, row Row) error
}

// FindRow scans table for the first row whose col equals key and returns its
// data index, or -1 when no row matches.
func FindRow(ctx context.Context, s Store, table string, col int, key string) (int, Row, error) {
	rows, err := s.Rows(ctx, table)
	if err != nil {
		return -1, nil, err
	}
	idx, row := Find(rows, col, key)
	return idx, row, nil
}

func Find(rows []Row, col int, key string) (int, Row) {
	for i, r := range rows {
		if r.Cell(col) == key {
			return i, r
		}
	}
	return -1, nil
}

// FindFold is Find with case-insensitive, whitespace-trimmed comparison.
func FindFold(rows []Row, col int, key string) (int, Row) {
	key = strings.TrimSpace(key)
	for i, r := range rows {
		if strings.EqualFold(strings.TrimSpace(r.Cell(col)), key) {
			return i, r
		}
	}
	return -1, nil
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

func setCells(r Row, cells map[int]string) Row {
	for col, v := range cells {
		for len(r) <= col {
			r = append(r, "")
		}
		r[col] = v
	}
	return r
}
