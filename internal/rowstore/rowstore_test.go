package rowstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.EnsureTable(ctx, "records", []string{"id", "status"}); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	if err := s.EnsureTable(ctx, "records", []string{"id", "status", "count"}); err != nil {
		t.Fatalf("extend table: %v", err)
	}
	header, err := s.Header(ctx, "records")
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if len(header) != 3 || header[2] != "count" {
		t.Fatalf("expected header to be extended, got %v", header)
	}

	if err := s.AppendRow(ctx, "records", Row{"c1", "inProgress", "1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendRow(ctx, "records", Row{"c2", "completed"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	idx, row, err := FindRow(ctx, s, "records", 0, "c2")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if idx != 1 || row.Cell(1) != "completed" || row.Cell(2) != "" {
		t.Fatalf("unexpected find result %d %v", idx, row)
	}

	if err := s.WriteCells(ctx, "records", idx, map[int]string{2: "2", 4: "x"}); err != nil {
		t.Fatalf("write cells: %v", err)
	}
	row, err = s.ReadRow(ctx, "records", idx)
	if err != nil {
		t.Fatalf("read row: %v", err)
	}
	if row.Cell(2) != "2" || row.Cell(4) != "x" || row.Cell(3) != "" {
		t.Fatalf("unexpected row after write: %v", row)
	}

	missing, _, err := FindRow(ctx, s, "records", 0, "nope")
	if err != nil || missing != -1 {
		t.Fatalf("expected -1 for missing key, got %d (%v)", missing, err)
	}
	if _, err := s.ReadRow(ctx, "records", 9); !errors.Is(err, ErrRowMissing) {
		t.Fatalf("expected ErrRowMissing, got %v", err)
	}
	if _, err := s.Rows(ctx, "unknown"); !errors.Is(err, ErrNoTable) {
		t.Fatalf("expected ErrNoTable, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryRowsAreSnapshots(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureTable(ctx, "t", []string{"k"})
	_ = m.AppendRow(ctx, "t", Row{"a"})
	rows, _ := m.Rows(ctx, "t")
	rows[0][0] = "mutated"
	again, _ := m.Rows(ctx, "t")
	if again[0][0] != "a" {
		t.Fatalf("expected stored row to be isolated from callers")
	}
}

func TestWorkbookStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	wb, err := OpenWorkbook(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exerciseStore(t, wb)
	if err := wb.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenWorkbook(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	rows, err := reopened.Rows(context.Background(), "records")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 || rows[1].Cell(4) != "x" {
		t.Fatalf("expected persisted rows, got %v", rows)
	}
}

func TestFindFold(t *testing.T) {
	rows := []Row{{"1", "Alice", "alice@example.com"}, {"2", "Bob", " BOB@example.com "}}
	idx, row := FindFold(rows, 2, "bob@EXAMPLE.com")
	if idx != 1 || row.Cell(1) != "Bob" {
		t.Fatalf("expected case-insensitive match, got %d", idx)
	}
}
