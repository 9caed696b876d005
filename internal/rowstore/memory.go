package rowstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store used by tests and the dev driver.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*memTable
}

type memTable struct {
	header Row
	rows   []Row
}

func NewMemory() *Memory {
	return &Memory{tables: map[string]*memTable{}}
}

func (m *Memory) EnsureTable(_ context.Context, table string, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		m.tables[table] = &memTable{header: cloneRow(header)}
		return nil
	}
	for i := len(t.header); i < len(header); i++ {
		t.header = append(t.header, header[i])
	}
	return nil
}

func (m *Memory) Header(_ context.Context, table string) (Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, table)
	}
	return cloneRow(t.header), nil
}

func (m *Memory) Rows(_ context.Context, table string) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, table)
	}
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = cloneRow(r)
	}
	return out, nil
}

func (m *Memory) ReadRow(_ context.Context, table string, idx int) (Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, table)
	}
	if idx < 0 || idx >= len(t.rows) {
		return nil, fmt.Errorf("%w: %s[%d]", ErrRowMissing, table, idx)
	}
	return cloneRow(t.rows[idx]), nil
}

func (m *Memory) WriteCells(_ context.Context, table string, idx int, cells map[int]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTable, table)
	}
	if idx < 0 || idx >= len(t.rows) {
		return fmt.Errorf("%w: %s[%d]", ErrRowMissing, table, idx)
	}
	t.rows[idx] = setCells(t.rows[idx], cells)
	return nil
}

func (m *Memory) AppendRow(_ context.Context, table string, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTable, table)
	}
	t.rows = append(t.rows, cloneRow(row))
	return nil
}
