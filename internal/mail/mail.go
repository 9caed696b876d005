// Package mail sends thread-aware case mail and reads threads back.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

type Message struct {
	To      []string
	Cc      []string
	Subject string
	Body    string
	// ThreadID continues an existing thread; empty starts a new one.
	ThreadID string
	// InReplyTo is the Message-ID being answered.
	InReplyTo string
}

type Sent struct {
	MessageID string
	ThreadID  string
}

type Sender interface {
	Send(ctx context.Context, msg Message) (Sent, error)
}

type ThreadMessage struct {
	MessageID string
	From      string
	FromName  string
	Subject   string
	Body      string
	Date      time.Time
}

// ThreadReader is implemented by transports that can read threads back.
type ThreadReader interface {
	Thread(ctx context.Context, threadID string) ([]ThreadMessage, error)
}

// Compose renders msg as an RFC 5322 text/plain message and returns it with
// its generated Message-ID (without angle brackets).
func Compose(from string, msg Message, now time.Time) ([]byte, string, error) {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, "", fmt.Errorf("parse from address: %w", err)
	}
	to, err := parseList(msg.To)
	if err != nil {
		return nil, "", err
	}
	if len(to) == 0 {
		return nil, "", fmt.Errorf("no recipients")
	}
	cc, err := parseList(msg.Cc)
	if err != nil {
		return nil, "", err
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{fromAddr})
	h.SetAddressList("To", to)
	if len(cc) > 0 {
		h.SetAddressList("Cc", cc)
	}
	h.SetSubject(msg.Subject)
	id := uuid.NewString() + "@" + domainOf(fromAddr.Address)
	h.SetMessageID(id)
	if msg.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{msg.InReplyTo})
		refs := []string{msg.InReplyTo}
		if msg.ThreadID != "" && msg.ThreadID != msg.InReplyTo {
			refs = []string{msg.ThreadID, msg.InReplyTo}
		}
		h.SetMsgIDList("References", refs)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("create message writer: %w", err)
	}
	if _, err := w.Write([]byte(msg.Body)); err != nil {
		return nil, "", fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close message: %w", err)
	}
	return buf.Bytes(), id, nil
}

func parseList(addrs []string) ([]*mail.Address, error) {
	out := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		parsed, err := mail.ParseAddress(a)
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", a, err)
		}
		out = append(out, parsed)
	}
	return out, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
