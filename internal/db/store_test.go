package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/tadasupo/backend/internal/rowstore"
)

func TestStoreIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := New(ctx, url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer store.Close()

	table := fmt.Sprintf("it_%d", time.Now().UnixNano())
	if err := store.EnsureTable(ctx, table, []string{"id", "status"}); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	if err := store.AppendRow(ctx, table, rowstore.Row{"c1", "inProgress"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendRow(ctx, table, rowstore.Row{"c2", "completed"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	idx, _, err := rowstore.FindRow(ctx, store, table, 0, "c2")
	if err != nil || idx != 1 {
		t.Fatalf("expected c2 at index 1, got %d (%v)", idx, err)
	}
	if err := store.WriteCells(ctx, table, idx, map[int]string{3: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	row, err := store.ReadRow(ctx, table, idx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if row.Cell(1) != "completed" || row.Cell(3) != "x" {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestDecodeCellsDegradesOnGarbage(t *testing.T) {
	if got := decodeCells([]byte("{not json")); len(got) != 0 {
		t.Fatalf("expected empty row, got %v", got)
	}
	if got := decodeCells([]byte(`["a","b"]`)); got.Cell(1) != "b" {
		t.Fatalf("unexpected decode %v", got)
	}
}
