package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// DefaultIMAPTimeout bounds one thread read when the caller's context has no
// earlier deadline.
const DefaultIMAPTimeout = 20 * time.Second

// IMAP reads threads back from the shared mailbox. A thread is every message
// whose Message-ID, In-Reply-To or References carries the root Message-ID,
// searched across Mailboxes (the inbox and the folder the server files sent
// mail in).
type IMAP struct {
	Addr      string
	User      string
	Password  string
	Mailboxes []string
	Timeout   time.Duration
}

func NewIMAP(addr, user, password string, mailboxes []string) *IMAP {
	if len(mailboxes) == 0 {
		mailboxes = []string{"INBOX"}
	}
	return &IMAP{Addr: addr, User: user, Password: password, Mailboxes: mailboxes}
}

func (r *IMAP) Thread(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	threadID = strings.Trim(strings.TrimSpace(threadID), "<>")
	if threadID == "" {
		return nil, errors.New("empty thread id")
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultIMAPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	if err := c.Login(r.User, r.Password).Wait(); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}

	seen := map[string]bool{}
	var out []ThreadMessage
	for _, box := range r.Mailboxes {
		msgs, err := searchMailbox(c, box, threadID)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			if m.MessageID != "" && seen[m.MessageID] {
				continue
			}
			seen[m.MessageID] = true
			out = append(out, m)
		}
	}
	_ = c.Logout().Wait()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// dial connects with a deadline that follows ctx so a stalled server cannot
// hold the request.
func (r *IMAP) dial(ctx context.Context) (*imapclient.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", r.Addr)
	if err != nil {
		return nil, fmt.Errorf("imap dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	host, _, _ := net.SplitHostPort(r.Addr)
	return imapclient.New(tls.Client(conn, &tls.Config{ServerName: host}), nil), nil
}

func searchMailbox(c *imapclient.Client, box, threadID string) ([]ThreadMessage, error) {
	if _, err := c.Select(box, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", box, err)
	}
	data, err := c.UIDSearch(threadCriteria(threadID), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search %s: %w", box, err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	section := &imap.FetchItemBodySection{Peek: true}
	bufs, err := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch %s: %w", box, err)
	}
	out := make([]ThreadMessage, 0, len(bufs))
	for _, b := range bufs {
		m, err := parseThreadMessage(b.FindBodySection(section))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func threadCriteria(threadID string) *imap.SearchCriteria {
	header := func(key string) imap.SearchCriteria {
		return imap.SearchCriteria{Header: []imap.SearchCriteriaHeaderField{{Key: key, Value: threadID}}}
	}
	return &imap.SearchCriteria{Or: [][2]imap.SearchCriteria{{
		{Or: [][2]imap.SearchCriteria{{header("Message-Id"), header("In-Reply-To")}}},
		header("References"),
	}}}
}

// parseThreadMessage reads the headers and the first text/plain part of a
// raw RFC 5322 message.
func parseThreadMessage(raw []byte) (ThreadMessage, error) {
	if len(raw) == 0 {
		return ThreadMessage{}, errors.New("empty message")
	}
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return ThreadMessage{}, err
	}
	defer mr.Close()

	var m ThreadMessage
	m.MessageID, _ = mr.Header.MessageID()
	m.Subject, _ = mr.Header.Subject()
	m.Date, _ = mr.Header.Date()
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		m.From = from[0].Address
		m.FromName = from[0].Name
	}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return m, nil
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		if ct != "" && ct != "text/plain" {
			continue
		}
		body, err := io.ReadAll(p.Body)
		if err != nil {
			return m, nil
		}
		m.Body = strings.TrimRight(strings.ReplaceAll(string(body), "\r\n", "\n"), "\n")
		break
	}
	return m, nil
}
