package identity

import (
	"context"
	"testing"
	"time"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/repository"
	"github.com/tadasupo/backend/internal/rowstore"
	"github.com/tadasupo/backend/internal/schema"
	"github.com/tadasupo/backend/internal/settings"
)

func setup(t *testing.T) (*Resolver, *repository.Repo) {
	t.Helper()
	ctx := context.Background()
	mem := rowstore.NewMemory()
	if err := schema.Ensure(ctx, mem); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	repo := repository.New(mem, time.UTC)
	st := settings.New(mem)
	if err := st.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := st.Patch(ctx, map[string]string{settings.KeyAdminEmails: "legacy@example.org"}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	for _, s := range []models.Staff{
		{Name: "Admin", Email: "admin@example.org", Role: models.RoleAdmin, IsActive: true},
		{Name: "Staff", Email: "staff@example.org", Role: models.RoleStaff, IsActive: true},
		{Name: "Legacy", Email: "legacy@example.org", IsActive: true},
		{Name: "Gone", Email: "gone@example.org", Role: models.RoleStaff, IsActive: false},
	} {
		if err := repo.AppendStaff(ctx, s); err != nil {
			t.Fatalf("append staff: %v", err)
		}
	}
	return New(repo, st), repo
}

func TestResolveActor(t *testing.T) {
	r, _ := setup(t)
	ctx := context.Background()

	a, err := r.ResolveActor(ctx, "ADMIN@example.org")
	if err != nil || !a.IsAdmin() {
		t.Fatalf("expected admin, got %+v %v", a, err)
	}
	a, err = r.ResolveActor(ctx, "legacy@example.org")
	if err != nil || a.Role != models.RoleAdmin {
		t.Fatalf("expected legacy admin fallback, got %+v %v", a, err)
	}
	a, err = r.ResolveActor(ctx, "staff@example.org")
	if err != nil || a.Role != models.RoleStaff {
		t.Fatalf("expected staff, got %+v %v", a, err)
	}
	if _, err := r.ResolveActor(ctx, "gone@example.org"); !apperr.Is(err, apperr.Unauthorized) {
		t.Fatalf("expected Unauthorized for inactive, got %v", err)
	}
	if _, err := r.ResolveActor(ctx, "nobody@example.org"); !apperr.Is(err, apperr.Unauthorized) {
		t.Fatalf("expected Unauthorized for unknown, got %v", err)
	}
}

func TestCanEdit(t *testing.T) {
	staff := models.Actor{Email: "staff@example.org", Role: models.RoleStaff}
	admin := models.Actor{Email: "admin@example.org", Role: models.RoleAdmin}

	if err := CanEdit(admin, "other@example.org", false); err != nil {
		t.Fatalf("admin should edit anything: %v", err)
	}
	if err := CanEdit(staff, "STAFF@example.org", false); err != nil {
		t.Fatalf("owner should edit: %v", err)
	}
	if err := CanEdit(staff, "", true); err != nil {
		t.Fatalf("unassigned allowed: %v", err)
	}
	if err := CanEdit(staff, "", false); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("expected Forbidden for unassigned, got %v", err)
	}
	if err := CanEdit(staff, "other@example.org", true); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("expected Forbidden for other owner, got %v", err)
	}
}

func TestEnsureEditableUsesRecord(t *testing.T) {
	r, repo := setup(t)
	ctx := context.Background()
	_ = repo.AppendRecord(ctx, models.SupportRecord{CaseID: "c1", Status: models.StatusInProgress, StaffEmail: "other@example.org", SupportCount: 1})
	staff := models.Actor{Email: "staff@example.org", Role: models.RoleStaff}
	if err := r.EnsureEditable(ctx, "c1", staff, true); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
	if err := r.EnsureEditable(ctx, "missing", staff, true); err != nil {
		t.Fatalf("missing record is unassigned: %v", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	if err := RequireAdmin(models.Actor{Role: models.RoleStaff}); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}
