package service

import (
	"context"
	"strings"
	"time"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/audit"
	"github.com/tadasupo/backend/internal/identity"
	"github.com/tadasupo/backend/internal/meeting"
	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/repository"
	"github.com/tadasupo/backend/internal/schema"
)

// RecordPatch is a full update of the current round. A nil
// KeepAttachmentIDs together with no NewFiles leaves attachments untouched;
// an empty non-nil KeepAttachmentIDs removes them all.
type RecordPatch struct {
	CaseID            string
	Status            string
	ScheduledDateTime *time.Time
	Method            string
	Content           string
	BusinessType      *string
	Remarks           *string
	KeepAttachmentIDs []string
	NewFiles          []FileUpload
}

func (p RecordPatch) touchesAttachments() bool {
	return p.KeepAttachmentIDs != nil || len(p.NewFiles) > 0
}

type assignmentSnapshot struct {
	Status     string `json:"status"`
	StaffEmail string `json:"staffEmail,omitempty"`
	StaffName  string `json:"staffName,omitempty"`
}

type roundSnapshot struct {
	SupportCount int    `json:"supportCount"`
	Status       string `json:"status"`
}

type recordSnapshot struct {
	Status            string     `json:"status"`
	ScheduledDateTime *time.Time `json:"scheduledDateTime"`
	Method            string     `json:"method"`
}

// Assign takes the case for actor and moves it to inProgress.
func (s *CaseService) Assign(ctx context.Context, caseID string, actor models.Actor) (err error) {
	defer func() { s.observe(ActionAssign, err) }()
	if _, err := s.requireCase(ctx, caseID); err != nil {
		return err
	}
	return s.locked(ctx, func(ctx context.Context) error {
		return s.setAssignment(ctx, caseID, actor, models.StatusInProgress, ActionAssign)
	})
}

// AssignAndNotify assigns the case and opens a mail thread with the contact.
// The assignment stays committed when delivery fails.
func (s *CaseService) AssignAndNotify(ctx context.Context, caseID string, actor models.Actor, subject, body string) (err error) {
	defer func() { s.observe("assign_notify", err) }()
	c, err := s.requireCase(ctx, caseID)
	if err != nil {
		return err
	}
	err = s.locked(ctx, func(ctx context.Context) error {
		return s.setAssignment(ctx, caseID, actor, models.StatusInProgress, ActionAssign)
	})
	if err != nil {
		return err
	}
	return s.sendCaseMail(ctx, c, actor, subject, body, "")
}

// Decline rejects the case and sends the decline mail in a new thread.
func (s *CaseService) Decline(ctx context.Context, caseID string, actor models.Actor, subject, body string) (err error) {
	defer func() { s.observe(ActionDecline, err) }()
	c, err := s.requireCase(ctx, caseID)
	if err != nil {
		return err
	}
	err = s.locked(ctx, func(ctx context.Context) error {
		return s.setAssignment(ctx, caseID, actor, models.StatusRejected, ActionDecline)
	})
	if err != nil {
		return err
	}
	return s.sendCaseMail(ctx, c, actor, subject, body, "")
}

// setAssignment creates or updates the record with status and actor as
// assignee. The caller holds the lock.
func (s *CaseService) setAssignment(ctx context.Context, caseID string, actor models.Actor, status, action string) error {
	idx, rec, err := s.Repo.FindRecord(ctx, caseID)
	if err != nil {
		return storeErr(err, "failed to read support record")
	}
	if err := identity.CanEdit(actor, rec.StaffEmail, true); err != nil {
		return err
	}
	after := assignmentSnapshot{Status: status, StaffEmail: actor.Email, StaffName: actor.Name}
	if idx == -1 {
		err := s.Repo.AppendRecord(ctx, models.SupportRecord{
			CaseID:       caseID,
			Status:       status,
			StaffEmail:   actor.Email,
			StaffName:    actor.Name,
			SupportCount: 1,
		})
		if err != nil {
			return storeErr(err, "failed to create support record")
		}
		s.Audit.Append(ctx, actor, action, audit.TargetCase, caseID, nil, after)
		return nil
	}
	err = s.Repo.WriteRecord(ctx, idx, map[int]string{
		schema.RecStatus:     status,
		schema.RecStaffEmail: actor.Email,
		schema.RecStaffName:  actor.Name,
	})
	if err != nil {
		return storeErr(err, "failed to update support record")
	}
	before := assignmentSnapshot{Status: rec.Status, StaffEmail: rec.StaffEmail, StaffName: rec.StaffName}
	s.Audit.Append(ctx, actor, action, audit.TargetCase, caseID, before, after)
	return nil
}

// Reopen archives the current round into history and starts the next one.
func (s *CaseService) Reopen(ctx context.Context, caseID string, actor models.Actor) (err error) {
	defer func() { s.observe(ActionReopen, err) }()
	return s.locked(ctx, func(ctx context.Context) error {
		idx, rec, err := s.Repo.FindRecord(ctx, caseID)
		if err != nil {
			return storeErr(err, "failed to read support record")
		}
		if idx == -1 {
			return apperr.New(apperr.NotFound, "support record not found: %s", caseID)
		}
		if err := identity.CanEdit(actor, rec.StaffEmail, false); err != nil {
			return err
		}
		limit := effectiveLimit(rec.CaseLimitOverride, s.Settings.CaseUsageLimit())
		if rec.SupportCount >= limit {
			return apperr.New(apperr.LimitExceeded, "case has reached its support limit (%d rounds)", limit)
		}

		history := append(rec.History, archiveRound(rec))
		next := rec.SupportCount + 1
		err = s.Repo.WriteRecord(ctx, idx, map[int]string{
			schema.RecHistory:     repository.EncodeHistory(history),
			schema.RecCount:       itoa(next),
			schema.RecStatus:      models.StatusInProgress,
			schema.RecDate:        "",
			schema.RecMethod:      "",
			schema.RecContent:     "",
			schema.RecRemarks:     "",
			schema.RecEventID:     "",
			schema.RecMeetURL:     "",
			schema.RecAttachments: repository.EncodeAttachments(nil),
		})
		if err != nil {
			return storeErr(err, "failed to reopen case")
		}
		s.Audit.Append(ctx, actor, ActionReopen, audit.TargetCase, caseID,
			roundSnapshot{SupportCount: rec.SupportCount, Status: rec.Status},
			roundSnapshot{SupportCount: next, Status: models.StatusInProgress})
		return nil
	})
}

func archiveRound(rec models.SupportRecord) models.Round {
	atts := rec.Attachments
	if atts == nil {
		atts = []models.Attachment{}
	}
	return models.Round{
		Round:             rec.SupportCount,
		ScheduledDateTime: rec.ScheduledDateTime,
		Method:            rec.Method,
		Content:           rec.Content,
		Remarks:           rec.Remarks,
		MeetingURL:        rec.MeetingURL,
		Attachments:       atts,
		StaffName:         rec.StaffName,
		StaffEmail:        rec.StaffEmail,
	}
}

// UpdateRecord writes the current round, provisions a meeting once per round
// and reconciles attachments when the patch asks for it.
func (s *CaseService) UpdateRecord(ctx context.Context, patch RecordPatch, actor models.Actor) (err error) {
	defer func() { s.observe(ActionUpdateRecord, err) }()
	if patch.Status != "" && !models.ValidStatus(patch.Status) {
		return apperr.New(apperr.InvalidArgument, "invalid status %q", patch.Status)
	}

	var dropped, uploaded []models.Attachment
	err = s.locked(ctx, func(ctx context.Context) error {
		idx, rec, err := s.Repo.FindRecord(ctx, patch.CaseID)
		if err != nil {
			return storeErr(err, "failed to read support record")
		}
		if idx == -1 {
			return apperr.New(apperr.NotFound, "support record not found: %s", patch.CaseID)
		}
		if err := identity.CanEdit(actor, rec.StaffEmail, false); err != nil {
			return err
		}

		status := patch.Status
		if status == "" {
			status = rec.Status
		}
		cells := map[int]string{
			schema.RecStatus:  status,
			schema.RecDate:    repository.FormatTime(patch.ScheduledDateTime),
			schema.RecMethod:  patch.Method,
			schema.RecContent: patch.Content,
		}
		if patch.BusinessType != nil {
			cells[schema.RecBusiness] = *patch.BusinessType
		}
		if patch.Remarks != nil {
			cells[schema.RecRemarks] = *patch.Remarks
		}

		if patch.touchesAttachments() {
			plan, err := s.reconcileAttachments(ctx, patch.CaseID, rec.Attachments, patch.KeepAttachmentIDs, patch.NewFiles, actor)
			if err != nil {
				return err
			}
			cells[schema.RecAttachments] = repository.EncodeAttachments(plan.Merged)
			dropped, uploaded = plan.Dropped, plan.Uploaded
		}

		if patch.ScheduledDateTime != nil && rec.MeetingURL == "" && meeting.Provisions(patch.Method) && s.Meetings != nil {
			if m, ok := s.provisionMeeting(ctx, patch); ok {
				cells[schema.RecMeetURL] = m.URL
				cells[schema.RecEventID] = m.EventID
			}
		}

		if err := s.Repo.WriteRecord(ctx, idx, cells); err != nil {
			s.deleteFiles(ctx, patch.CaseID, uploaded)
			return storeErr(err, "failed to update support record")
		}
		s.Audit.Append(ctx, actor, ActionUpdateRecord, audit.TargetCase, patch.CaseID,
			recordSnapshot{Status: rec.Status, ScheduledDateTime: rec.ScheduledDateTime, Method: rec.Method},
			recordSnapshot{Status: status, ScheduledDateTime: patch.ScheduledDateTime, Method: patch.Method})
		return nil
	})
	if err != nil {
		return err
	}
	s.deleteFiles(ctx, patch.CaseID, dropped)
	return nil
}

// provisionMeeting never fails the update; errors are logged.
func (s *CaseService) provisionMeeting(ctx context.Context, patch RecordPatch) (meeting.Meeting, bool) {
	title := "【タダサポ】"
	details := ""
	if _, c, err := s.Repo.FindCase(ctx, patch.CaseID); err == nil {
		title += strings.TrimSpace(c.OfficeName) + " 様"
		details = c.Details
	}
	m, err := s.Meetings.Provision(ctx, patch.Method, meeting.Request{
		Title:       title,
		Description: details,
		Start:       *patch.ScheduledDateTime,
		Duration:    meeting.DefaultDuration,
	})
	if err != nil {
		s.Logger.Error().Err(err).
			Str("case_id", patch.CaseID).
			Str("method", patch.Method).
			Msg("meeting provisioning failed")
		return meeting.Meeting{}, false
	}
	return m, true
}

func (s *CaseService) requireCase(ctx context.Context, caseID string) (models.Case, error) {
	idx, c, err := s.Repo.FindCase(ctx, caseID)
	if err != nil {
		return models.Case{}, storeErr(err, "failed to read cases")
	}
	if idx == -1 {
		return models.Case{}, apperr.New(apperr.NotFound, "case not found: %s", caseID)
	}
	return c, nil
}
