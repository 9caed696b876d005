package repository

import (
	"context"
	"testing"
	"time"

	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/rowstore"
	"github.com/tadasupo/backend/internal/schema"
)

func newRepo(t *testing.T) *Repo {
	t.Helper()
	mem := rowstore.NewMemory()
	if err := schema.Ensure(context.Background(), mem); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return New(mem, time.UTC)
}

func TestRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	when := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	limit := 4
	rec := models.SupportRecord{
		CaseID:            "2024-05-01T09:00:00Z",
		Status:            models.StatusInProgress,
		StaffEmail:        "a@example.org",
		ScheduledDateTime: &when,
		SupportCount:      2,
		History:           []models.Round{{Round: 1, Method: models.MethodPhone}},
		EmailThreadIDs:    []string{"t1", "t2"},
		CaseLimitOverride: &limit,
		Attachments:       []models.Attachment{{FileID: "f1", Name: "a.pdf"}},
	}
	if err := repo.AppendRecord(ctx, rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	idx, got, err := repo.FindRecord(ctx, rec.CaseID)
	if err != nil || idx != 0 {
		t.Fatalf("find: %d %v", idx, err)
	}
	if got.SupportCount != 2 || got.CaseLimitOverride == nil || *got.CaseLimitOverride != 4 {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.AnnualLimitOverride != nil {
		t.Fatalf("expected nil annual override")
	}
	if !got.ScheduledDateTime.Equal(when) {
		t.Fatalf("unexpected schedule %v", got.ScheduledDateTime)
	}
	if len(got.History) != 1 || got.History[0].Attachments == nil {
		t.Fatalf("expected history with non-nil attachments, got %+v", got.History)
	}
	if len(got.EmailThreadIDs) != 2 || len(got.Attachments) != 1 {
		t.Fatalf("unexpected threads/attachments %+v", got)
	}
}

func TestDecodeRecordDegradesMalformedJSON(t *testing.T) {
	row := make(rowstore.Row, schema.RecordColumnCount)
	row[schema.RecCaseID] = "c1"
	row[schema.RecHistory] = "{broken"
	row[schema.RecAttachments] = "not json"
	row[schema.RecCount] = ""
	rec := DecodeRecord(row, time.UTC)
	if len(rec.History) != 0 || rec.History == nil {
		t.Fatalf("expected empty history, got %#v", rec.History)
	}
	if len(rec.Attachments) != 0 || rec.Attachments == nil {
		t.Fatalf("expected empty attachments, got %#v", rec.Attachments)
	}
	if rec.SupportCount != 1 || rec.Status != models.StatusUnhandled {
		t.Fatalf("unexpected defaults %+v", rec)
	}
}

func TestFindStaffIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	_ = repo.AppendStaff(ctx, models.Staff{Name: "Aoki", Email: "Aoki@Example.org", Role: models.RoleStaff, IsActive: true})
	idx, s, err := repo.FindStaff(ctx, "aoki@example.ORG")
	if err != nil || idx != 0 || s.Name != "Aoki" {
		t.Fatalf("expected match, got %d %+v %v", idx, s, err)
	}
}

func TestDecodeStaffBlankActiveMeansActive(t *testing.T) {
	s := DecodeStaff(rowstore.Row{"1", "Legacy", "legacy@example.org"})
	if !s.IsActive || s.Role != "" {
		t.Fatalf("unexpected legacy staff %+v", s)
	}
}

func TestRecentAuditNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	for _, action := range []string{"a", "b", "c"} {
		_ = repo.AppendAudit(ctx, models.AuditLogEntry{Timestamp: time.Now(), Action: action, ActorEmail: "x@example.org"})
	}
	got, err := repo.RecentAudit(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Action != "c" || got[1].Action != "b" {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestParseTimeLayouts(t *testing.T) {
	loc := time.FixedZone("JST", 9*3600)
	for _, in := range []string{"2024-04-01T00:00:00+09:00", "2024/04/01 00:00:00", "2024-04-01"} {
		got, ok := ParseTime(in, loc)
		if !ok {
			t.Fatalf("failed to parse %q", in)
		}
		if got.In(loc).Month() != time.April {
			t.Fatalf("unexpected month for %q: %v", in, got)
		}
	}
	if _, ok := ParseTime("not a date", loc); ok {
		t.Fatalf("expected parse failure")
	}
}
