package models

import "time"

const (
	StatusUnhandled  = "unhandled"
	StatusInProgress = "inProgress"
	StatusCompleted  = "completed"
	StatusRejected   = "rejected"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusUnhandled, StatusInProgress, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

const (
	MethodGoogleMeet = "GoogleMeet"
	MethodZoom       = "Zoom"
	MethodPhone      = "Phone"
	MethodInPerson   = "InPerson"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const MaxAttachments = 5

type Case struct {
	ID            string `json:"id"`
	ContactEmail  string `json:"contact_email"`
	OfficeName    string `json:"office_name"`
	RequesterName string `json:"requester_name"`
	Details       string `json:"details"`
	ServiceType   string `json:"service_type"`
	Prefecture    string `json:"prefecture,omitempty"`
}

type Attachment struct {
	FileID     string    `json:"fileId"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	MimeType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	UploadedBy string    `json:"uploadedBy"`
}

// Round is an archived support round. Entries are written once at reopen time.
type Round struct {
	Round             int          `json:"round"`
	ScheduledDateTime *time.Time   `json:"scheduledDateTime"`
	Method            string       `json:"method,omitempty"`
	Content           string       `json:"content,omitempty"`
	Remarks           string       `json:"remarks,omitempty"`
	MeetingURL        string       `json:"meetUrl,omitempty"`
	Attachments       []Attachment `json:"attachments"`
	StaffName         string       `json:"staffName,omitempty"`
	StaffEmail        string       `json:"staffEmail,omitempty"`
}

type SupportRecord struct {
	CaseID              string       `json:"case_id"`
	Status              string       `json:"status"`
	StaffEmail          string       `json:"staff_email,omitempty"`
	StaffName           string       `json:"staff_name,omitempty"`
	ScheduledDateTime   *time.Time   `json:"scheduled_date_time"`
	SupportCount        int          `json:"support_count"`
	Method              string       `json:"method,omitempty"`
	BusinessType        string       `json:"business_type,omitempty"`
	Content             string       `json:"content,omitempty"`
	Remarks             string       `json:"remarks,omitempty"`
	History             []Round      `json:"history"`
	MeetingEventID      string       `json:"meeting_event_id,omitempty"`
	MeetingURL          string       `json:"meeting_url,omitempty"`
	EmailThreadIDs      []string     `json:"email_thread_ids"`
	CaseLimitOverride   *int         `json:"case_limit_override"`
	AnnualLimitOverride *int         `json:"annual_limit_override"`
	Attachments         []Attachment `json:"attachments"`
}

type EmailHistoryEntry struct {
	CaseID         string     `json:"case_id"`
	SendDate       *time.Time `json:"send_date"`
	SenderEmail    string     `json:"sender_email"`
	SenderName     string     `json:"sender_name"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
}

type Staff struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// Actor is the authenticated staff member performing an operation.
type Actor struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type AuditLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	ActorEmail string    `json:"actor_email"`
	ActorName  string    `json:"actor_name"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Before     string    `json:"before"`
	After      string    `json:"after"`
}

// CaseView is the joined read model returned by ListCases.
type CaseView struct {
	Case
	Status                 string              `json:"status"`
	StaffEmail             string              `json:"staff_email,omitempty"`
	StaffName              string              `json:"staff_name,omitempty"`
	ScheduledDateTime      *time.Time          `json:"scheduled_date_time"`
	SupportCount           int                 `json:"support_count"`
	Method                 string              `json:"method,omitempty"`
	BusinessType           string              `json:"business_type,omitempty"`
	Content                string              `json:"content,omitempty"`
	Remarks                string              `json:"remarks,omitempty"`
	MeetingURL             string              `json:"meeting_url,omitempty"`
	MeetingEventID         string              `json:"meeting_event_id,omitempty"`
	EmailThreadIDs         []string            `json:"email_thread_ids"`
	SupportHistory         []Round             `json:"support_history"`
	Attachments            []Attachment        `json:"attachments"`
	CaseLimitOverride      *int                `json:"case_limit_override"`
	AnnualLimitOverride    *int                `json:"annual_limit_override"`
	CurrentFiscalYearCount int                 `json:"current_fiscal_year_count"`
	Emails                 []EmailHistoryEntry `json:"emails"`
}

type ThreadMessage struct {
	SendDate   *time.Time `json:"send_date"`
	SenderName string     `json:"sender_name"`
	FromEmail  string     `json:"from_email,omitempty"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	IsStaff    bool       `json:"is_staff"`
}

type ThreadGroup struct {
	ThreadID *string         `json:"thread_id"`
	Subject  string          `json:"subject"`
	Messages []ThreadMessage `json:"messages"`
}
