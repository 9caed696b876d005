package repository

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/rowstore"
	"github.com/tadasupo/backend/internal/schema"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006-01-02",
	"2006/1/2",
}

// ParseTime accepts RFC3339 and the zone-less layouts found in sheet cells.
// Zone-less values are interpreted in loc.
func ParseTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimePtr(s string, loc *time.Location) *time.Time {
	t, ok := ParseTime(s, loc)
	if !ok {
		return nil
	}
	return &t
}

func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func FormatOptionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func parseOptionalInt(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// EncodeHistory never fails; an empty history is stored as "[]".
func EncodeHistory(h []models.Round) string {
	if len(h) == 0 {
		return "[]"
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func EncodeAttachments(a []models.Attachment) string {
	if len(a) == 0 {
		return "[]"
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// decodeHistory and decodeAttachments degrade malformed cells to empty lists.
func decodeHistory(s string) []models.Round {
	out := []models.Round{}
	if strings.TrimSpace(s) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []models.Round{}
	}
	for i := range out {
		if out[i].Attachments == nil {
			out[i].Attachments = []models.Attachment{}
		}
	}
	return out
}

func decodeAttachments(s string) []models.Attachment {
	out := []models.Attachment{}
	if strings.TrimSpace(s) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []models.Attachment{}
	}
	return out
}

func EncodeThreadIDs(ids []string) string {
	return strings.Join(ids, ",")
}

func decodeThreadIDs(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func DecodeCase(r rowstore.Row) models.Case {
	return models.Case{
		ID:            strings.TrimSpace(r.Cell(schema.CaseID)),
		ContactEmail:  strings.TrimSpace(r.Cell(schema.CaseEmail)),
		OfficeName:    r.Cell(schema.CaseOffice),
		RequesterName: r.Cell(schema.CaseName),
		Details:       r.Cell(schema.CaseDetails),
		Prefecture:    r.Cell(schema.CasePrefecture),
		ServiceType:   r.Cell(schema.CaseServiceType),
	}
}

func EncodeCase(c models.Case) rowstore.Row {
	row := make(rowstore.Row, len(schema.Headers[schema.TableCases]))
	row[schema.CaseID] = c.ID
	row[schema.CaseEmail] = c.ContactEmail
	row[schema.CaseOffice] = c.OfficeName
	row[schema.CaseName] = c.RequesterName
	row[schema.CaseDetails] = c.Details
	row[schema.CasePrefecture] = c.Prefecture
	row[schema.CaseServiceType] = c.ServiceType
	return row
}

func DecodeRecord(r rowstore.Row, loc *time.Location) models.SupportRecord {
	count, err := strconv.Atoi(strings.TrimSpace(r.Cell(schema.RecCount)))
	if err != nil || count < 1 {
		count = 1
	}
	status := strings.TrimSpace(r.Cell(schema.RecStatus))
	if status == "" {
		status = models.StatusUnhandled
	}
	return models.SupportRecord{
		CaseID:              strings.TrimSpace(r.Cell(schema.RecCaseID)),
		Status:              status,
		StaffEmail:          strings.TrimSpace(r.Cell(schema.RecStaffEmail)),
		StaffName:           r.Cell(schema.RecStaffName),
		ScheduledDateTime:   parseTimePtr(r.Cell(schema.RecDate), loc),
		SupportCount:        count,
		Method:              r.Cell(schema.RecMethod),
		BusinessType:        r.Cell(schema.RecBusiness),
		Content:             r.Cell(schema.RecContent),
		Remarks:             r.Cell(schema.RecRemarks),
		History:             decodeHistory(r.Cell(schema.RecHistory)),
		MeetingEventID:      r.Cell(schema.RecEventID),
		MeetingURL:          strings.TrimSpace(r.Cell(schema.RecMeetURL)),
		EmailThreadIDs:      decodeThreadIDs(r.Cell(schema.RecThreadIDs)),
		CaseLimitOverride:   parseOptionalInt(r.Cell(schema.RecCaseLimit)),
		AnnualLimitOverride: parseOptionalInt(r.Cell(schema.RecAnnualLimit)),
		Attachments:         decodeAttachments(r.Cell(schema.RecAttachments)),
	}
}

func EncodeRecord(rec models.SupportRecord) rowstore.Row {
	row := make(rowstore.Row, schema.RecordColumnCount)
	row[schema.RecCaseID] = rec.CaseID
	row[schema.RecStatus] = rec.Status
	row[schema.RecStaffEmail] = rec.StaffEmail
	row[schema.RecStaffName] = rec.StaffName
	row[schema.RecDate] = FormatTime(rec.ScheduledDateTime)
	row[schema.RecCount] = strconv.Itoa(rec.SupportCount)
	row[schema.RecMethod] = rec.Method
	row[schema.RecBusiness] = rec.BusinessType
	row[schema.RecContent] = rec.Content
	row[schema.RecRemarks] = rec.Remarks
	row[schema.RecHistory] = EncodeHistory(rec.History)
	row[schema.RecEventID] = rec.MeetingEventID
	row[schema.RecMeetURL] = rec.MeetingURL
	row[schema.RecThreadIDs] = EncodeThreadIDs(rec.EmailThreadIDs)
	row[schema.RecCaseLimit] = FormatOptionalInt(rec.CaseLimitOverride)
	row[schema.RecAnnualLimit] = FormatOptionalInt(rec.AnnualLimitOverride)
	row[schema.RecAttachments] = EncodeAttachments(rec.Attachments)
	return row
}

// DecodeStaff treats a blank active cell as active; rows written before the
// column existed carry no value.
func DecodeStaff(r rowstore.Row) models.Staff {
	active := true
	if v := strings.TrimSpace(r.Cell(schema.StaffActive)); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			active = b
		}
	}
	return models.Staff{
		Name:     strings.TrimSpace(r.Cell(schema.StaffName)),
		Email:    strings.TrimSpace(r.Cell(schema.StaffEmail)),
		Role:     strings.ToLower(strings.TrimSpace(r.Cell(schema.StaffRole))),
		IsActive: active,
	}
}

func EncodeStaff(no int, s models.Staff) rowstore.Row {
	row := make(rowstore.Row, len(schema.Headers[schema.TableStaff]))
	row[schema.StaffNo] = strconv.Itoa(no)
	row[schema.StaffName] = s.Name
	row[schema.StaffEmail] = s.Email
	row[schema.StaffRole] = s.Role
	row[schema.StaffActive] = strconv.FormatBool(s.IsActive)
	return row
}

func DecodeEmail(r rowstore.Row, loc *time.Location) models.EmailHistoryEntry {
	return models.EmailHistoryEntry{
		CaseID:         strings.TrimSpace(r.Cell(schema.MailCaseID)),
		SendDate:       parseTimePtr(r.Cell(schema.MailSendDate), loc),
		SenderEmail:    r.Cell(schema.MailSenderEmail),
		SenderName:     r.Cell(schema.MailSenderName),
		RecipientEmail: r.Cell(schema.MailRecipient),
		Subject:        r.Cell(schema.MailSubject),
		Body:           r.Cell(schema.MailBody),
	}
}

func EncodeEmail(e models.EmailHistoryEntry) rowstore.Row {
	row := make(rowstore.Row, len(schema.Headers[schema.TableEmailHistory]))
	row[schema.MailCaseID] = e.CaseID
	row[schema.MailSendDate] = FormatTime(e.SendDate)
	row[schema.MailSenderEmail] = e.SenderEmail
	row[schema.MailSenderName] = e.SenderName
	row[schema.MailRecipient] = e.RecipientEmail
	row[schema.MailSubject] = e.Subject
	row[schema.MailBody] = e.Body
	return row
}

func DecodeAudit(r rowstore.Row, loc *time.Location) models.AuditLogEntry {
	var ts time.Time
	if t, ok := ParseTime(r.Cell(schema.AuditTimestamp), loc); ok {
		ts = t
	}
	return models.AuditLogEntry{
		Timestamp:  ts,
		ActorEmail: r.Cell(schema.AuditActorEmail),
		ActorName:  r.Cell(schema.AuditActorName),
		Action:     r.Cell(schema.AuditAction),
		TargetType: r.Cell(schema.AuditTargetType),
		TargetID:   r.Cell(schema.AuditTargetID),
		Before:     r.Cell(schema.AuditBefore),
		After:      r.Cell(schema.AuditAfter),
	}
}

func EncodeAudit(e models.AuditLogEntry) rowstore.Row {
	row := make(rowstore.Row, len(schema.Headers[schema.TableAuditLog]))
	row[schema.AuditTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[schema.AuditActorEmail] = e.ActorEmail
	row[schema.AuditActorName] = e.ActorName
	row[schema.AuditAction] = e.Action
	row[schema.AuditTargetType] = e.TargetType
	row[schema.AuditTargetID] = e.TargetID
	row[schema.AuditBefore] = e.Before
	row[schema.AuditAfter] = e.After
	return row
}
