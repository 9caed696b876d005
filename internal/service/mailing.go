package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/identity"
	"github.com/tadasupo/backend/internal/mail"
	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/repository"
	"github.com/tadasupo/backend/internal/schema"
)

// RenderTemplate fills the mail placeholders for a case.
func RenderTemplate(text string, c models.Case, actor models.Actor) string {
	r := strings.NewReplacer(
		"{{office}}", c.OfficeName,
		"{{name}}", c.RequesterName,
		"{{staff}}", actor.Name,
		"{{details}}", c.Details,
		"{{事業所名}}", c.OfficeName,
		"{{名前}}", c.RequesterName,
		"{{担当者名}}", actor.Name,
	)
	return r.Replace(text)
}

// SendNewEmail opens a new thread with the case contact.
func (s *CaseService) SendNewEmail(ctx context.Context, caseID string, actor models.Actor, subject, body string) (err error) {
	defer func() { s.observe("send_email", err) }()
	c, err := s.requireCase(ctx, caseID)
	if err != nil {
		return err
	}
	if err := s.Identity.EnsureEditable(ctx, caseID, actor, false); err != nil {
		return err
	}
	return s.sendCaseMail(ctx, c, actor, subject, body, "")
}

// ReplyInThread answers within one of the case's threads. An empty threadID
// starts a new thread.
func (s *CaseService) ReplyInThread(ctx context.Context, caseID string, actor models.Actor, subject, body, threadID string) (err error) {
	defer func() { s.observe("reply_email", err) }()
	c, err := s.requireCase(ctx, caseID)
	if err != nil {
		return err
	}
	_, rec, err := s.Repo.FindRecord(ctx, caseID)
	if err != nil {
		return storeErr(err, "failed to read support record")
	}
	if err := identity.CanEdit(actor, rec.StaffEmail, false); err != nil {
		return err
	}
	threadID = strings.TrimSpace(threadID)
	if threadID != "" && !contains(rec.EmailThreadIDs, threadID) {
		return apperr.New(apperr.InvalidArgument, "thread %s does not belong to case %s", threadID, caseID)
	}
	return s.sendCaseMail(ctx, c, actor, subject, body, threadID)
}

// sendCaseMail renders the placeholders and delivers outside the lock, then
// records the thread id and the history backup.
func (s *CaseService) sendCaseMail(ctx context.Context, c models.Case, actor models.Actor, subject, body, threadID string) error {
	if strings.TrimSpace(c.ContactEmail) == "" {
		return apperr.New(apperr.InvalidArgument, "case %s has no contact email", c.ID)
	}
	subject, body = RenderTemplate(subject, c, actor), RenderTemplate(body, c, actor)
	if s.Mail == nil {
		return apperr.New(apperr.UpstreamFailure, "mail is not configured")
	}
	sent, err := s.Mail.Send(ctx, mail.Message{
		To:       []string{c.ContactEmail},
		Subject:  subject,
		Body:     body,
		ThreadID: threadID,
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("case_id", c.ID).Msg("mail send failed")
		if apperr.KindOf(err) == apperr.Internal {
			return apperr.Wrap(apperr.UpstreamFailure, err, "mail delivery failed")
		}
		return err
	}

	if sent.ThreadID != "" && threadID == "" {
		if err := s.locked(ctx, func(ctx context.Context) error {
			return s.storeThreadID(ctx, c.ID, sent.ThreadID)
		}); err != nil {
			s.Logger.Error().Err(err).Str("case_id", c.ID).Str("thread_id", sent.ThreadID).Msg("could not store thread id")
		}
	}
	now := s.now()
	err = s.Repo.AppendEmail(ctx, models.EmailHistoryEntry{
		CaseID:         c.ID,
		SendDate:       &now,
		SenderEmail:    actor.Email,
		SenderName:     actor.Name,
		RecipientEmail: c.ContactEmail,
		Subject:        subject,
		Body:           body,
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("case_id", c.ID).Msg("could not write email history")
	}
	return nil
}

func (s *CaseService) storeThreadID(ctx context.Context, caseID, threadID string) error {
	idx, rec, err := s.Repo.FindRecord(ctx, caseID)
	if err != nil {
		return err
	}
	if idx == -1 {
		s.Logger.Warn().Str("case_id", caseID).Str("thread_id", threadID).Msg("no support record to attach thread to")
		return nil
	}
	if contains(rec.EmailThreadIDs, threadID) {
		return nil
	}
	ids := append(rec.EmailThreadIDs, threadID)
	return s.Repo.WriteRecord(ctx, idx, map[int]string{schema.RecThreadIDs: repository.EncodeThreadIDs(ids)})
}

// GetThreadMessages returns the case's threads, newest activity first. It
// falls back to the email history when threads cannot be read.
func (s *CaseService) GetThreadMessages(ctx context.Context, caseID string, actor models.Actor) ([]models.ThreadGroup, error) {
	_, rec, err := s.Repo.FindRecord(ctx, caseID)
	if err != nil {
		return nil, storeErr(err, "failed to read support record")
	}
	if err := identity.CanEdit(actor, rec.StaffEmail, false); err != nil {
		return nil, err
	}
	if len(rec.EmailThreadIDs) == 0 || s.Threads == nil {
		return s.historyThread(ctx, caseID)
	}

	staff, err := s.Repo.ListStaff(ctx)
	if err != nil {
		return nil, storeErr(err, "failed to read staff")
	}
	staffEmails := make(map[string]bool, len(staff))
	for _, st := range staff {
		staffEmails[strings.ToLower(st.Email)] = true
	}
	if s.MailFrom != "" {
		staffEmails[strings.ToLower(strings.TrimSpace(s.MailFrom))] = true
	}

	var (
		mu     sync.Mutex
		groups []models.ThreadGroup
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range rec.EmailThreadIDs {
		g.Go(func() error {
			msgs, err := s.Threads.Thread(gctx, id)
			if err != nil {
				s.Logger.Warn().Err(err).Str("case_id", caseID).Str("thread_id", id).Msg("thread read failed")
				return nil
			}
			group := buildThreadGroup(id, msgs, staffEmails, s.loc())
			mu.Lock()
			groups = append(groups, group)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(groups, func(i, j int) bool {
		return lastSent(groups[i]).After(lastSent(groups[j]))
	})
	if groups == nil {
		groups = []models.ThreadGroup{}
	}
	return groups, nil
}

func (s *CaseService) historyThread(ctx context.Context, caseID string) ([]models.ThreadGroup, error) {
	emails, err := s.Repo.ListEmails(ctx)
	if err != nil {
		return nil, storeErr(err, "failed to read email history")
	}
	var msgs []models.ThreadMessage
	for _, e := range emails {
		if e.CaseID != caseID {
			continue
		}
		msgs = append(msgs, models.ThreadMessage{
			SendDate:   e.SendDate,
			SenderName: e.SenderName,
			FromEmail:  e.SenderEmail,
			Subject:    e.Subject,
			Body:       e.Body,
			IsStaff:    true,
		})
	}
	if len(msgs) == 0 {
		return []models.ThreadGroup{}, nil
	}
	return []models.ThreadGroup{{Subject: msgs[0].Subject, Messages: msgs}}, nil
}

func buildThreadGroup(id string, msgs []mail.ThreadMessage, staffEmails map[string]bool, loc *time.Location) models.ThreadGroup {
	tid := id
	group := models.ThreadGroup{ThreadID: &tid, Messages: make([]models.ThreadMessage, 0, len(msgs))}
	for _, m := range msgs {
		from := strings.ToLower(strings.TrimSpace(m.From))
		name := m.FromName
		if name == "" {
			name = m.From
		}
		var sent *time.Time
		if !m.Date.IsZero() {
			d := m.Date.In(loc)
			sent = &d
		}
		group.Messages = append(group.Messages, models.ThreadMessage{
			SendDate:   sent,
			SenderName: name,
			FromEmail:  m.From,
			Subject:    m.Subject,
			Body:       m.Body,
			IsStaff:    staffEmails[from],
		})
	}
	if len(group.Messages) > 0 {
		group.Subject = group.Messages[0].Subject
	}
	return group
}

func lastSent(g models.ThreadGroup) time.Time {
	if len(g.Messages) == 0 {
		return time.Time{}
	}
	if d := g.Messages[len(g.Messages)-1].SendDate; d != nil {
		return *d
	}
	return time.Time{}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
