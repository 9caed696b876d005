package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/repository"
	"github.com/tadasupo/backend/internal/rowstore"
	"github.com/tadasupo/backend/internal/schema"
)

type failingStore struct {
	rowstore.Store
}

func (failingStore) AppendRow(context.Context, string, rowstore.Row) error {
	return errors.New("store down")
}

func TestAppendWritesSnapshots(t *testing.T) {
	ctx := context.Background()
	mem := rowstore.NewMemory()
	if err := schema.Ensure(ctx, mem); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	log := New(repository.New(mem, time.UTC), zerolog.Nop())
	actor := models.Actor{Name: "Aoki", Email: "aoki@example.org"}
	log.Append(ctx, actor, "reopen", TargetCase, "c1", map[string]any{"supportCount": 1}, map[string]any{"supportCount": 2})
	log.Append(ctx, actor, "assign", TargetCase, "c2", nil, map[string]string{"status": "inProgress"})

	got, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Action != "assign" || got[0].Before != "" {
		t.Fatalf("unexpected newest entry %+v", got[0])
	}
	if got[1].Before != `{"supportCount":1}` || got[1].After != `{"supportCount":2}` {
		t.Fatalf("unexpected snapshots %+v", got[1])
	}
}

func TestAppendSwallowsStoreFailure(t *testing.T) {
	log := New(repository.New(failingStore{rowstore.NewMemory()}, time.UTC), zerolog.Nop())
	log.Append(context.Background(), models.Actor{Email: "a@example.org"}, "assign", TargetCase, "c1", nil, nil)
}
