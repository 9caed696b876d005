// Package identity resolves the calling user to a staff actor and applies the
// owner-or-admin authorization rule.
package identity

import (
	"context"
	"strings"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/repository"
	"github.com/tadasupo/backend/internal/settings"
)

type Resolver struct {
	Repo     *repository.Repo
	Settings *settings.Store
}

func New(repo *repository.Repo, s *settings.Store) *Resolver {
	return &Resolver{Repo: repo, Settings: s}
}

// ResolveActor maps an authenticated email to an active staff member.
func (r *Resolver) ResolveActor(ctx context.Context, email string) (models.Actor, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.Actor{}, apperr.New(apperr.Unauthorized, "no identity presented")
	}
	idx, staff, err := r.Repo.FindStaff(ctx, email)
	if err != nil {
		return models.Actor{}, apperr.Wrap(apperr.Internal, err, "staff lookup failed")
	}
	if idx == -1 {
		return models.Actor{}, apperr.New(apperr.Unauthorized, "%s is not registered as staff", email)
	}
	if !staff.IsActive {
		return models.Actor{}, apperr.New(apperr.Unauthorized, "%s is deactivated", email)
	}
	return models.Actor{
		Name:     staff.Name,
		Email:    staff.Email,
		Role:     r.RoleOf(staff),
		IsActive: true,
	}, nil
}

// RoleOf reads the role column first and falls back to the ADMIN_EMAILS list.
func (r *Resolver) RoleOf(s models.Staff) string {
	switch s.Role {
	case models.RoleAdmin, models.RoleStaff:
		return s.Role
	}
	if r.Settings != nil {
		for _, e := range r.Settings.List(settings.KeyAdminEmails) {
			if strings.EqualFold(e, s.Email) {
				return models.RoleAdmin
			}
		}
	}
	return models.RoleStaff
}

func RequireAdmin(actor models.Actor) error {
	if !actor.IsAdmin() {
		return apperr.New(apperr.Forbidden, "administrator permission required")
	}
	return nil
}

// CanEdit applies the owner-or-admin rule to an already loaded assignee.
func CanEdit(actor models.Actor, assignee string, allowUnassigned bool) error {
	if actor.IsAdmin() {
		return nil
	}
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		if allowUnassigned {
			return nil
		}
		return apperr.New(apperr.Forbidden, "case is not assigned to you")
	}
	if strings.EqualFold(assignee, actor.Email) {
		return nil
	}
	return apperr.New(apperr.Forbidden, "case is assigned to another staff member")
}

// EnsureEditable loads the record's assignee and checks CanEdit. A missing
// record counts as unassigned.
func (r *Resolver) EnsureEditable(ctx context.Context, caseID string, actor models.Actor, allowUnassigned bool) error {
	_, rec, err := r.Repo.FindRecord(ctx, caseID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "support record lookup failed")
	}
	return CanEdit(actor, rec.StaffEmail, allowUnassigned)
}
