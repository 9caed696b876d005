package service

import (
	"context"
	"sort"
	"strings"

	"github.com/tadasupo/backend/internal/models"
)

type usageKey struct {
	email string
	year  int
}

// ListCases joins cases, support records and email history into views,
// newest case first. It never writes.
func (s *CaseService) ListCases(ctx context.Context) ([]models.CaseView, error) {
	cases, err := s.Repo.ListCases(ctx)
	if err != nil {
		return nil, storeErr(err, "failed to read cases")
	}
	records, err := s.Repo.ListRecords(ctx)
	if err != nil {
		return nil, storeErr(err, "failed to read support records")
	}
	emails, err := s.Repo.ListEmails(ctx)
	if err != nil {
		return nil, storeErr(err, "failed to read email history")
	}
	emailsByCase := map[string][]models.EmailHistoryEntry{}
	for _, e := range emails {
		emailsByCase[e.CaseID] = append(emailsByCase[e.CaseID], e)
	}

	loc := s.loc()
	usage := map[usageKey]int{}
	for _, c := range cases {
		rec, ok := records[c.ID]
		if !ok || !countsTowardUsage(rec.Status) {
			continue
		}
		k := usageKey{email: usageEmail(c.ContactEmail), year: fiscalYearOf(c.ID, loc)}
		usage[k] += max(rec.SupportCount, 1)
	}

	views := make([]models.CaseView, 0, len(cases))
	for _, c := range cases {
		rec, ok := records[c.ID]
		if !ok {
			rec = models.SupportRecord{
				CaseID:       c.ID,
				Status:       models.StatusUnhandled,
				SupportCount: 1,
			}
		}
		v := buildView(c, rec)
		v.CurrentFiscalYearCount = usage[usageKey{email: usageEmail(c.ContactEmail), year: fiscalYearOf(c.ID, loc)}]
		v.Emails = emailsByCase[c.ID]
		if v.Emails == nil {
			v.Emails = []models.EmailHistoryEntry{}
		}
		views = append(views, v)
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].ID > views[j].ID })
	return views, nil
}

func countsTowardUsage(status string) bool {
	return status == models.StatusInProgress || status == models.StatusCompleted
}

func usageEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func buildView(c models.Case, rec models.SupportRecord) models.CaseView {
	v := models.CaseView{
		Case:                c,
		Status:              rec.Status,
		StaffEmail:          rec.StaffEmail,
		StaffName:           rec.StaffName,
		ScheduledDateTime:   rec.ScheduledDateTime,
		SupportCount:        rec.SupportCount,
		Method:              rec.Method,
		BusinessType:        rec.BusinessType,
		Content:             rec.Content,
		Remarks:             rec.Remarks,
		MeetingURL:          rec.MeetingURL,
		MeetingEventID:      rec.MeetingEventID,
		EmailThreadIDs:      rec.EmailThreadIDs,
		SupportHistory:      rec.History,
		Attachments:         rec.Attachments,
		CaseLimitOverride:   rec.CaseLimitOverride,
		AnnualLimitOverride: rec.AnnualLimitOverride,
	}
	if v.EmailThreadIDs == nil {
		v.EmailThreadIDs = []string{}
	}
	if v.SupportHistory == nil {
		v.SupportHistory = []models.Round{}
	}
	if v.Attachments == nil {
		v.Attachments = []models.Attachment{}
	}
	return v
}
