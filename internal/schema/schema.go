// Package schema fixes the table layout of the row store and provides the
// ensure-schema gate run before the service starts.
package schema

import (
	"context"
	"fmt"

	"github.com/tadasupo/backend/internal/rowstore"
)

const (
	TableSettings     = "settings"
	TableCases        = "cases"
	TableRecords      = "support_records"
	TableStaff        = "staff"
	TableEmailHistory = "email_history"
	TableAuditLog     = "audit_log"
)

// Column offsets. These are a fixed contract with existing data.
const (
	CaseID            = 0
	CaseEmail         = 1
	CaseOffice        = 2
	CaseName          = 3
	CaseDetails       = 4
	CasePrefecture    = 5
	CaseServiceType   = 6
	RecCaseID         = 0
	RecStatus         = 1
	RecStaffEmail     = 2
	RecStaffName      = 3
	RecDate           = 4
	RecCount          = 5
	RecMethod         = 6
	RecBusiness       = 7
	RecContent        = 8
	RecRemarks        = 9
	RecHistory        = 10
	RecEventID        = 11
	RecMeetURL        = 12
	RecThreadIDs      = 13
	RecCaseLimit      = 14
	RecAnnualLimit    = 15
	RecAttachments    = 16
	StaffNo           = 0
	StaffName         = 1
	StaffEmail        = 2
	StaffRole         = 3
	StaffActive       = 4
	MailCaseID        = 0
	MailSendDate      = 1
	MailSenderEmail   = 2
	MailSenderName    = 3
	MailRecipient     = 4
	MailSubject       = 5
	MailBody          = 6
	AuditTimestamp    = 0
	AuditActorEmail   = 1
	AuditActorName    = 2
	AuditAction       = 3
	AuditTargetType   = 4
	AuditTargetID     = 5
	AuditBefore       = 6
	AuditAfter        = 7
	SettingKey        = 0
	SettingLabel      = 1
	SettingValue      = 2
	SettingExample    = 3
	SettingNote       = 4
	RecordColumnCount = 17
)

var Headers = map[string][]string{
	TableSettings:     {"key", "label", "value", "example", "description"},
	TableCases:        {"id", "contact_email", "office_name", "requester_name", "details", "prefecture", "service_type"},
	TableRecords:      {"case_id", "status", "staff_email", "staff_name", "scheduled_at", "support_count", "method", "business_type", "content", "remarks", "history", "event_id", "meeting_url", "thread_ids", "case_limit_override", "annual_limit_override", "attachments"},
	TableStaff:        {"no", "name", "email", "role", "active"},
	TableEmailHistory: {"case_id", "sent_at", "sender_email", "sender_name", "recipient_email", "subject", "body"},
	TableAuditLog:     {"timestamp", "actor_email", "actor_name", "action", "target_type", "target_id", "before", "after"},
}

var tableOrder = []string{TableSettings, TableCases, TableRecords, TableStaff, TableEmailHistory, TableAuditLog}

// Ensure creates missing tables, appends missing header columns and seeds
// the settings table when it is empty. It is idempotent.
func Ensure(ctx context.Context, store rowstore.Store) error {
	for _, table := range tableOrder {
		if err := store.EnsureTable(ctx, table, Headers[table]); err != nil {
			return fmt.Errorf("ensure table %s: %w", table, err)
		}
	}
	rows, err := store.Rows(ctx, TableSettings)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	if len(rows) > 0 {
		return nil
	}
	for _, seed := range settingSeeds {
		if err := store.AppendRow(ctx, TableSettings, seed); err != nil {
			return fmt.Errorf("seed settings: %w", err)
		}
	}
	return nil
}

// Check reports an error when a table is missing or narrower than its header.
func Check(ctx context.Context, store rowstore.Store) error {
	for _, table := range tableOrder {
		header, err := store.Header(ctx, table)
		if err != nil {
			return fmt.Errorf("table %s: %w", table, err)
		}
		if len(header) < len(Headers[table]) {
			return fmt.Errorf("table %s has %d columns, want %d", table, len(header), len(Headers[table]))
		}
	}
	return nil
}
