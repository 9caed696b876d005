package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/audit"
	"github.com/tadasupo/backend/internal/identity"
	"github.com/tadasupo/backend/internal/lock"
	"github.com/tadasupo/backend/internal/mail"
	"github.com/tadasupo/backend/internal/meeting"
	"github.com/tadasupo/backend/internal/metrics"
	"github.com/tadasupo/backend/internal/repository"
	"github.com/tadasupo/backend/internal/settings"
	"github.com/tadasupo/backend/internal/storage"
)

const (
	ActionAssign        = "assign"
	ActionDecline       = "decline"
	ActionReopen        = "reopen"
	ActionUpdateRecord  = "update_record"
	ActionSetStatus     = "admin_set_status"
	ActionUpdateCase    = "admin_update_case"
	ActionReassign      = "admin_reassign"
	ActionStaffCreate   = "staff_create"
	ActionStaffUpdate   = "staff_update"
	ActionStaffDisable  = "staff_deactivate"
	ActionSettingsPatch = "settings_update"
)

// Mailer sends case mail. *mail.Dispatcher satisfies it.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) (mail.Sent, error)
}

// ThreadSource reads mail threads back. Optional.
type ThreadSource interface {
	Thread(ctx context.Context, threadID string) ([]mail.ThreadMessage, error)
}

type CaseService struct {
	Repo     *repository.Repo
	Settings *settings.Store
	Identity *identity.Resolver
	Audit    *audit.Log
	Guard    lock.Guard
	Mail     Mailer
	Threads  ThreadSource
	Meetings meeting.Provisioner
	Files    storage.FileStore
	Location *time.Location
	Logger   zerolog.Logger
	Now      func() time.Time
	// MailFrom is the shared mailbox address; its messages count as staff.
	MailFrom string
	// ZoomEnabled reports whether Zoom is offered as a meeting method.
	ZoomEnabled func() bool
}

func (s *CaseService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *CaseService) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s *CaseService) locked(ctx context.Context, fn func(ctx context.Context) error) error {
	return lock.Do(ctx, s.Guard, fn)
}

func (s *CaseService) observe(action string, err error) {
	metrics.Transitions.WithLabelValues(action, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}

// storeErr wraps a row store failure unless it already carries a kind.
func storeErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.Internal, err, msg)
}

// FiscalYear returns the April-start fiscal year of t in loc.
func FiscalYear(t time.Time, loc *time.Location) int {
	t = t.In(loc)
	if t.Month() >= time.April {
		return t.Year()
	}
	return t.Year() - 1
}

// fiscalYearOf derives the fiscal year from a timestamp-shaped case id.
// Unparseable ids fall into year 0.
func fiscalYearOf(caseID string, loc *time.Location) int {
	t, ok := repository.ParseTime(caseID, loc)
	if !ok {
		return 0
	}
	return FiscalYear(t, loc)
}

func effectiveLimit(override *int, def int) int {
	if override != nil && *override > 0 {
		return *override
	}
	return def
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
