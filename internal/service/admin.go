package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/audit"
	"github.com/tadasupo/backend/internal/identity"
	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/repository"
	"github.com/tadasupo/backend/internal/schema"
)

const adminAuditLimit = 100

type AdminPanel struct {
	Staff    []models.Staff         `json:"staff"`
	Settings map[string]string      `json:"settings"`
	AuditLog []models.AuditLogEntry `json:"audit_log"`
}

type StaffInput struct {
	Email    string
	Name     string
	Role     string
	IsActive *bool
}

// CaseDataPatch corrects case and record fields. Nil fields are left as is.
// The Clear flags remove an override and win over a value given with them.
type CaseDataPatch struct {
	ContactEmail        *string
	OfficeName          *string
	RequesterName       *string
	Details             *string
	ServiceType         *string
	Prefecture          *string
	SupportCount        *int
	BusinessType        *string
	Content             *string
	Remarks             *string
	Method              *string
	ScheduledDateTime   *time.Time
	CaseLimitOverride   *int
	AnnualLimitOverride *int
	ClearCaseLimit      bool
	ClearAnnualLimit    bool
}

func (p CaseDataPatch) caseCells() map[int]string {
	cells := map[int]string{}
	set := func(col int, v *string) {
		if v != nil {
			cells[col] = strings.TrimSpace(*v)
		}
	}
	set(schema.CaseEmail, p.ContactEmail)
	set(schema.CaseOffice, p.OfficeName)
	set(schema.CaseName, p.RequesterName)
	set(schema.CaseDetails, p.Details)
	set(schema.CaseServiceType, p.ServiceType)
	set(schema.CasePrefecture, p.Prefecture)
	return cells
}

func (p CaseDataPatch) recordCells() map[int]string {
	cells := map[int]string{}
	set := func(col int, v *string) {
		if v != nil {
			cells[col] = *v
		}
	}
	set(schema.RecBusiness, p.BusinessType)
	set(schema.RecContent, p.Content)
	set(schema.RecRemarks, p.Remarks)
	set(schema.RecMethod, p.Method)
	if p.SupportCount != nil {
		cells[schema.RecCount] = strconv.Itoa(*p.SupportCount)
	}
	if p.ScheduledDateTime != nil {
		cells[schema.RecDate] = repository.FormatTime(p.ScheduledDateTime)
	}
	switch {
	case p.ClearCaseLimit:
		cells[schema.RecCaseLimit] = ""
	case p.CaseLimitOverride != nil:
		cells[schema.RecCaseLimit] = strconv.Itoa(*p.CaseLimitOverride)
	}
	switch {
	case p.ClearAnnualLimit:
		cells[schema.RecAnnualLimit] = ""
	case p.AnnualLimitOverride != nil:
		cells[schema.RecAnnualLimit] = strconv.Itoa(*p.AnnualLimitOverride)
	}
	return cells
}

func (p CaseDataPatch) validate() error {
	if p.SupportCount != nil && *p.SupportCount < 1 {
		return apperr.New(apperr.InvalidArgument, "support count must be at least 1")
	}
	if !p.ClearCaseLimit && p.CaseLimitOverride != nil && *p.CaseLimitOverride < 1 {
		return apperr.New(apperr.InvalidArgument, "case limit override must be positive")
	}
	if !p.ClearAnnualLimit && p.AnnualLimitOverride != nil && *p.AnnualLimitOverride < 1 {
		return apperr.New(apperr.InvalidArgument, "annual limit override must be positive")
	}
	if p.ContactEmail != nil && !strings.Contains(*p.ContactEmail, "@") {
		return apperr.New(apperr.InvalidArgument, "contact email is invalid")
	}
	return nil
}

// caseLimitAfter returns the support count and case limit the record would
// carry once the patch is applied.
func (p CaseDataPatch) caseLimitAfter(rec models.SupportRecord, exists bool, def int) (count, limit int) {
	count = rec.SupportCount
	if !exists {
		count = 1
	}
	if p.SupportCount != nil {
		count = *p.SupportCount
	}
	override := rec.CaseLimitOverride
	switch {
	case p.ClearCaseLimit:
		override = nil
	case p.CaseLimitOverride != nil:
		override = p.CaseLimitOverride
	}
	return count, effectiveLimit(override, def)
}

func (s *CaseService) AdminPanel(ctx context.Context, actor models.Actor) (AdminPanel, error) {
	if err := identity.RequireAdmin(actor); err != nil {
		return AdminPanel{}, err
	}
	staff, err := s.Repo.ListStaff(ctx)
	if err != nil {
		return AdminPanel{}, storeErr(err, "failed to read staff")
	}
	entries, err := s.Audit.Recent(ctx, adminAuditLimit)
	if err != nil {
		return AdminPanel{}, storeErr(err, "failed to read audit log")
	}
	return AdminPanel{Staff: staff, Settings: s.Settings.Visible(), AuditLog: entries}, nil
}

// UpsertStaff creates the member or updates the given fields.
func (s *CaseService) UpsertStaff(ctx context.Context, actor models.Actor, in StaffInput) (list []models.Staff, err error) {
	defer func() { s.observe("staff_upsert", err) }()
	if err := identity.RequireAdmin(actor); err != nil {
		return nil, err
	}
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if !strings.Contains(in.Email, "@") {
		return nil, apperr.New(apperr.InvalidArgument, "a valid email is required")
	}
	if in.Role != "" && in.Role != models.RoleAdmin && in.Role != models.RoleStaff {
		return nil, apperr.New(apperr.InvalidArgument, "role must be admin or staff")
	}

	err = s.locked(ctx, func(ctx context.Context) error {
		idx, cur, err := s.Repo.FindStaff(ctx, in.Email)
		if err != nil {
			return storeErr(err, "failed to read staff")
		}
		if idx == -1 {
			if in.Name == "" {
				return apperr.New(apperr.InvalidArgument, "name is required for new staff")
			}
			st := models.Staff{Name: in.Name, Email: in.Email, Role: in.Role, IsActive: true}
			if st.Role == "" {
				st.Role = models.RoleStaff
			}
			if in.IsActive != nil {
				st.IsActive = *in.IsActive
			}
			if err := s.Repo.AppendStaff(ctx, st); err != nil {
				return storeErr(err, "failed to add staff")
			}
			s.Audit.Append(ctx, actor, ActionStaffCreate, audit.TargetStaff, st.Email, nil, st)
			return nil
		}
		if in.IsActive != nil && !*in.IsActive && strings.EqualFold(cur.Email, actor.Email) {
			return apperr.New(apperr.InvalidArgument, "you cannot deactivate yourself")
		}
		next := cur
		cells := map[int]string{}
		if in.Name != "" {
			next.Name = in.Name
			cells[schema.StaffName] = in.Name
		}
		if in.Role != "" {
			next.Role = in.Role
			cells[schema.StaffRole] = in.Role
		}
		if in.IsActive != nil {
			next.IsActive = *in.IsActive
			cells[schema.StaffActive] = strconv.FormatBool(*in.IsActive)
		}
		if len(cells) == 0 {
			return nil
		}
		if err := s.Repo.WriteStaff(ctx, idx, cells); err != nil {
			return storeErr(err, "failed to update staff")
		}
		s.Audit.Append(ctx, actor, ActionStaffUpdate, audit.TargetStaff, cur.Email, cur, next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.staffList(ctx)
}

func (s *CaseService) DeactivateStaff(ctx context.Context, actor models.Actor, email string) (list []models.Staff, err error) {
	defer func() { s.observe(ActionStaffDisable, err) }()
	if err := identity.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.EqualFold(strings.TrimSpace(email), actor.Email) {
		return nil, apperr.New(apperr.InvalidArgument, "you cannot deactivate yourself")
	}
	err = s.locked(ctx, func(ctx context.Context) error {
		idx, cur, err := s.Repo.FindStaff(ctx, email)
		if err != nil {
			return storeErr(err, "failed to read staff")
		}
		if idx == -1 {
			return apperr.New(apperr.NotFound, "staff not found: %s", email)
		}
		if err := s.Repo.WriteStaff(ctx, idx, map[int]string{schema.StaffActive: "false"}); err != nil {
			return storeErr(err, "failed to update staff")
		}
		next := cur
		next.IsActive = false
		s.Audit.Append(ctx, actor, ActionStaffDisable, audit.TargetStaff, cur.Email, cur, next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.staffList(ctx)
}

func (s *CaseService) staffList(ctx context.Context) ([]models.Staff, error) {
	list, err := s.Repo.ListStaff(ctx)
	if err != nil {
		return nil, storeErr(err, "failed to read staff")
	}
	return list, nil
}

// UpdateSettings patches allowlisted settings and returns the visible set.
func (s *CaseService) UpdateSettings(ctx context.Context, actor models.Actor, patch map[string]string) (out map[string]string, err error) {
	defer func() { s.observe(ActionSettingsPatch, err) }()
	if err := identity.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "no settings given")
	}
	err = s.locked(ctx, func(ctx context.Context) error {
		before := map[string]string{}
		for k := range patch {
			before[k] = s.Settings.Get(k, "")
		}
		if err := s.Settings.Patch(ctx, patch); err != nil {
			return storeErr(err, "failed to update settings")
		}
		s.Audit.Append(ctx, actor, ActionSettingsPatch, audit.TargetSettings, "settings", before, patch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Settings.Visible(), nil
}

// AdminSetStatus forces a status. A missing record is created unassigned.
func (s *CaseService) AdminSetStatus(ctx context.Context, actor models.Actor, caseID, status string) (err error) {
	defer func() { s.observe(ActionSetStatus, err) }()
	if err := identity.RequireAdmin(actor); err != nil {
		return err
	}
	if !models.ValidStatus(status) {
		return apperr.New(apperr.InvalidArgument, "invalid status %q", status)
	}
	if _, err := s.requireCase(ctx, caseID); err != nil {
		return err
	}
	return s.locked(ctx, func(ctx context.Context) error {
		idx, rec, err := s.Repo.FindRecord(ctx, caseID)
		if err != nil {
			return storeErr(err, "failed to read support record")
		}
		if idx == -1 {
			err = s.Repo.AppendRecord(ctx, models.SupportRecord{CaseID: caseID, Status: status, SupportCount: 1})
			if err != nil {
				return storeErr(err, "failed to create support record")
			}
			s.Audit.Append(ctx, actor, ActionSetStatus, audit.TargetCase, caseID, nil, map[string]string{"status": status})
			return nil
		}
		if err := s.Repo.WriteRecord(ctx, idx, map[int]string{schema.RecStatus: status}); err != nil {
			return storeErr(err, "failed to update status")
		}
		s.Audit.Append(ctx, actor, ActionSetStatus, audit.TargetCase, caseID,
			map[string]string{"status": rec.Status}, map[string]string{"status": status})
		return nil
	})
}

// AdminUpdateCaseData corrects case fields and record fields in one locked
// pass. Record fields on a case without a record create one.
func (s *CaseService) AdminUpdateCaseData(ctx context.Context, actor models.Actor, caseID string, patch CaseDataPatch) (err error) {
	defer func() { s.observe(ActionUpdateCase, err) }()
	if err := identity.RequireAdmin(actor); err != nil {
		return err
	}
	if err := patch.validate(); err != nil {
		return err
	}
	caseCells, recCells := patch.caseCells(), patch.recordCells()
	if len(caseCells) == 0 && len(recCells) == 0 {
		return apperr.New(apperr.InvalidArgument, "nothing to update")
	}
	return s.locked(ctx, func(ctx context.Context) error {
		cidx, before, err := s.Repo.FindCase(ctx, caseID)
		if err != nil {
			return storeErr(err, "failed to read cases")
		}
		if cidx == -1 {
			return apperr.New(apperr.NotFound, "case not found: %s", caseID)
		}
		ridx, rec, err := s.Repo.FindRecord(ctx, caseID)
		if err != nil {
			return storeErr(err, "failed to read support record")
		}
		if patch.SupportCount != nil || patch.CaseLimitOverride != nil || patch.ClearCaseLimit {
			count, limit := patch.caseLimitAfter(rec, ridx != -1, s.Settings.CaseUsageLimit())
			if count > limit {
				return apperr.New(apperr.InvalidArgument, "support count %d exceeds the case limit %d", count, limit)
			}
		}

		if len(caseCells) > 0 {
			if err := s.Repo.WriteCase(ctx, cidx, caseCells); err != nil {
				return storeErr(err, "failed to update case")
			}
		}
		if len(recCells) > 0 {
			if ridx == -1 {
				row := repository.EncodeRecord(models.SupportRecord{CaseID: caseID, Status: models.StatusUnhandled, SupportCount: 1})
				for col, v := range recCells {
					row[col] = v
				}
				err = s.Repo.Store.AppendRow(ctx, schema.TableRecords, row)
			} else {
				err = s.Repo.WriteRecord(ctx, ridx, recCells)
			}
			if err != nil {
				return storeErr(err, "failed to update support record")
			}
		}

		_, afterCase, _ := s.Repo.FindCase(ctx, caseID)
		_, afterRec, _ := s.Repo.FindRecord(ctx, caseID)
		s.Audit.Append(ctx, actor, ActionUpdateCase, audit.TargetCase, caseID,
			map[string]any{"case": before, "record": adminRecordView(rec)},
			map[string]any{"case": afterCase, "record": adminRecordView(afterRec)})
		return nil
	})
}

func adminRecordView(r models.SupportRecord) map[string]any {
	return map[string]any{
		"supportCount":        r.SupportCount,
		"businessType":        r.BusinessType,
		"method":              r.Method,
		"scheduledDateTime":   r.ScheduledDateTime,
		"caseLimitOverride":   r.CaseLimitOverride,
		"annualLimitOverride": r.AnnualLimitOverride,
	}
}

// AdminReassign hands the case to another active staff member and forces
// inProgress whatever the prior status.
func (s *CaseService) AdminReassign(ctx context.Context, actor models.Actor, caseID, staffEmail string) (err error) {
	defer func() { s.observe(ActionReassign, err) }()
	if err := identity.RequireAdmin(actor); err != nil {
		return err
	}
	if _, err := s.requireCase(ctx, caseID); err != nil {
		return err
	}
	return s.locked(ctx, func(ctx context.Context) error {
		sidx, st, err := s.Repo.FindStaff(ctx, staffEmail)
		if err != nil {
			return storeErr(err, "failed to read staff")
		}
		if sidx == -1 {
			return apperr.New(apperr.NotFound, "staff not found: %s", staffEmail)
		}
		if !st.IsActive {
			return apperr.New(apperr.InvalidArgument, "%s is deactivated", st.Email)
		}
		after := assignmentSnapshot{Status: models.StatusInProgress, StaffEmail: st.Email, StaffName: st.Name}
		idx, rec, err := s.Repo.FindRecord(ctx, caseID)
		if err != nil {
			return storeErr(err, "failed to read support record")
		}
		if idx == -1 {
			err = s.Repo.AppendRecord(ctx, models.SupportRecord{
				CaseID: caseID, Status: models.StatusInProgress,
				StaffEmail: st.Email, StaffName: st.Name, SupportCount: 1,
			})
			if err != nil {
				return storeErr(err, "failed to create support record")
			}
			s.Audit.Append(ctx, actor, ActionReassign, audit.TargetCase, caseID, nil, after)
			return nil
		}
		err = s.Repo.WriteRecord(ctx, idx, map[int]string{
			schema.RecStatus:     models.StatusInProgress,
			schema.RecStaffEmail: st.Email,
			schema.RecStaffName:  st.Name,
		})
		if err != nil {
			return storeErr(err, "failed to update support record")
		}
		s.Audit.Append(ctx, actor, ActionReassign, audit.TargetCase, caseID,
			assignmentSnapshot{Status: rec.Status, StaffEmail: rec.StaffEmail, StaffName: rec.StaffName}, after)
		return nil
	})
}
