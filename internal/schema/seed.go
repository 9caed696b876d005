package schema

import "github.com/tadasupo/backend/internal/rowstore"

// Keys starting with '#' are category marker rows and are skipped on read.
var settingSeeds = []rowstore.Row{
	{"#general", "General", "", "", ""},
	{"ADMIN_EMAILS", "Administrator emails", "", "admin@example.org, sub@example.org", "Legacy fallback for staff without a role. Comma separated."},
	{"CASE_USAGE_LIMIT", "Rounds per case", "3", "3", "Maximum support rounds per case unless overridden on the case."},
	{"ANNUAL_USAGE_LIMIT", "Rounds per fiscal year", "10", "10", "Advisory ceiling per contact and fiscal year (April to March)."},
	{"#mail", "Mail", "", "", ""},
	{"MAIL_DRY_RUN", "Dry-run mail", "false", "true", "When true, messages are recorded but not sent."},
	{"MAIL_FORCE_CC", "Forced CC", "", "support-log@example.org", "Comma separated addresses copied on every outbound message."},
	{"MAIL_INITIAL_SUBJECT", "Initial mail subject", "", "", "Sent when a case is assigned."},
	{"MAIL_INITIAL_BODY", "Initial mail body", "", "", "Placeholders: {{office}} {{name}} {{staff}} {{details}}"},
	{"MAIL_DECLINED_SUBJECT", "Declined mail subject", "", "", "Sent when a case is declined for quota."},
	{"MAIL_DECLINED_BODY", "Declined mail body", "", "", "Placeholders: {{office}} {{name}} {{staff}} {{details}}"},
	{"#zoom", "Zoom", "", "", ""},
	{"ZOOM_ACCOUNT_ID", "Zoom account id", "", "", "Leave empty to disable Zoom."},
	{"ZOOM_CLIENT_ID", "Zoom client id", "", "", ""},
	{"ZOOM_CLIENT_SECRET", "Zoom client secret", "", "", "Never shown in the admin panel."},
	{"#calendar", "Calendar", "", "", ""},
	{"SHARED_CALENDAR_ID", "Shared calendar id", "", "abc123@group.calendar.google.com", "Empty means the primary calendar."},
}
