package mail

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
)

func TestParseThreadMessageReadsComposedMail(t *testing.T) {
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw, id, err := Compose("Support <support@example.org>", Message{
		To:        []string{"office@example.com"},
		Subject:   "Re: ご相談の件",
		Body:      "田中様\nご連絡ありがとうございます。",
		ThreadID:  "root-1@example.org",
		InReplyTo: "inbound-2@example.com",
	}, when)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !strings.Contains(string(raw), "<root-1@example.org> <inbound-2@example.com>") {
		t.Fatalf("references should carry the thread root then the parent:\n%s", raw)
	}

	m, err := parseThreadMessage(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.MessageID != id || m.From != "support@example.org" || m.FromName != "Support" {
		t.Fatalf("unexpected headers %+v", m)
	}
	if m.Subject != "Re: ご相談の件" || m.Body != "田中様\nご連絡ありがとうございます。" {
		t.Fatalf("unexpected content %q %q", m.Subject, m.Body)
	}
	if !m.Date.Equal(when) {
		t.Fatalf("unexpected date %v", m.Date)
	}
}

func TestParseThreadMessageRejectsEmpty(t *testing.T) {
	if _, err := parseThreadMessage(nil); err == nil {
		t.Fatalf("expected error for empty message")
	}
}

func TestThreadCriteriaMatchesEveryReferenceHeader(t *testing.T) {
	c := threadCriteria("root-1@example.org")
	if len(c.Or) != 1 {
		t.Fatalf("expected a single OR, got %+v", c)
	}
	var keys []string
	var walk func(sc imap.SearchCriteria)
	walk = func(sc imap.SearchCriteria) {
		for _, h := range sc.Header {
			if h.Value != "root-1@example.org" {
				t.Fatalf("unexpected value %q", h.Value)
			}
			keys = append(keys, h.Key)
		}
		for _, pair := range sc.Or {
			walk(pair[0])
			walk(pair[1])
		}
	}
	walk(*c)
	if strings.Join(keys, ",") != "Message-Id,In-Reply-To,References" {
		t.Fatalf("unexpected header keys %v", keys)
	}
}

func TestIMAPThreadRequiresID(t *testing.T) {
	r := NewIMAP("127.0.0.1:1", "u", "p", nil)
	if len(r.Mailboxes) != 1 || r.Mailboxes[0] != "INBOX" {
		t.Fatalf("expected INBOX default, got %v", r.Mailboxes)
	}
	if _, err := r.Thread(context.Background(), " <> "); err == nil {
		t.Fatalf("expected error for empty thread id")
	}
}

// TestIMAPThreadAgainstServer reads a live mailbox. Set IMAP_TEST_ADDR,
// IMAP_TEST_USER, IMAP_TEST_PASSWORD and IMAP_TEST_THREAD to run it.
func TestIMAPThreadAgainstServer(t *testing.T) {
	addr := os.Getenv("IMAP_TEST_ADDR")
	thread := os.Getenv("IMAP_TEST_THREAD")
	if addr == "" || thread == "" {
		t.Skip("IMAP_TEST_ADDR and IMAP_TEST_THREAD not set")
	}
	r := NewIMAP(addr, os.Getenv("IMAP_TEST_USER"), os.Getenv("IMAP_TEST_PASSWORD"), nil)
	msgs, err := r.Thread(context.Background(), thread)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Date.Before(msgs[i-1].Date) {
			t.Fatalf("messages out of order at %d", i)
		}
	}
}
