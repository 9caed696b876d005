package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/emersion/go-message/mail"
)

// DefaultSMTPTimeout bounds one delivery when the caller's context has no
// earlier deadline.
const DefaultSMTPTimeout = 30 * time.Second

// SMTP delivers through a submission server. Thread ids are the Message-ID
// of the message that opened the thread.
type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Timeout  time.Duration

	send func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

func NewSMTP(host string, port int, user, password, from string) *SMTP {
	return &SMTP{Host: host, Port: port, User: user, Password: password, From: from}
}

func (s *SMTP) Send(ctx context.Context, msg Message) (Sent, error) {
	if err := ctx.Err(); err != nil {
		return Sent{}, err
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	if msg.ThreadID != "" && msg.InReplyTo == "" {
		msg.InReplyTo = msg.ThreadID
	}
	raw, id, err := Compose(s.From, msg, now())
	if err != nil {
		return Sent{}, err
	}
	from, err := mail.ParseAddress(s.From)
	if err != nil {
		return Sent{}, fmt.Errorf("parse from address: %w", err)
	}

	var auth smtp.Auth
	if s.User != "" && s.Password != "" {
		auth = smtp.PlainAuth("", s.User, s.Password, s.Host)
	}
	rcpt := append(append([]string{}, msg.To...), msg.Cc...)
	send := s.deliver
	if s.send != nil {
		send = s.send
	}
	addr := net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
	if err := send(ctx, addr, auth, from.Address, rcpt, raw); err != nil {
		return Sent{}, fmt.Errorf("smtp send: %w", err)
	}

	thread := msg.ThreadID
	if thread == "" {
		thread = id
	}
	return Sent{MessageID: id, ThreadID: thread}, nil
}

// deliver runs one SMTP session on a connection whose deadline follows ctx,
// so a stalled server is abandoned once the request is gone.
func (s *SMTP) deliver(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultSMTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return err
	}
	defer c.Close()
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return fmt.Errorf("server does not support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
