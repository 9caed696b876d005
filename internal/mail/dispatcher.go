package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/metrics"
)

// Options are the runtime mail toggles read from settings on every send.
type Options struct {
	DryRun  bool
	ForceCC []string
}

// Dispatcher applies dry-run and forced CC on top of a Sender.
type Dispatcher struct {
	Sender  Sender
	Reader  ThreadReader
	Options func() Options
	Logger  zerolog.Logger
}

func NewDispatcher(sender Sender, options func() Options, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{Sender: sender, Options: options, Logger: logger}
	if r, ok := sender.(ThreadReader); ok {
		d.Reader = r
	}
	return d
}

func (d *Dispatcher) Send(ctx context.Context, msg Message) (Sent, error) {
	var opts Options
	if d.Options != nil {
		opts = d.Options()
	}
	msg.Cc = mergeCC(msg.To, msg.Cc, opts.ForceCC)

	if msg.ThreadID != "" && msg.InReplyTo == "" && d.Reader != nil {
		msg.InReplyTo = d.lastMessageID(ctx, msg.ThreadID)
	}

	if opts.DryRun {
		metrics.MailSends.WithLabelValues("dry_run").Inc()
		d.Logger.Info().
			Strs("to", msg.To).
			Strs("cc", msg.Cc).
			Str("subject", msg.Subject).
			Str("thread_id", msg.ThreadID).
			Msg("mail dry run, not delivered")
		return Sent{ThreadID: msg.ThreadID}, nil
	}

	sent, err := d.Sender.Send(ctx, msg)
	metrics.MailSends.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return Sent{}, apperr.Wrap(apperr.UpstreamFailure, err, fmt.Sprintf("mail delivery failed: %v", err))
	}
	return sent, nil
}

// Thread reads a thread when the transport supports it.
func (d *Dispatcher) Thread(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	if d.Reader == nil {
		return nil, fmt.Errorf("thread reading not supported")
	}
	return d.Reader.Thread(ctx, threadID)
}

func (d *Dispatcher) CanReadThreads() bool {
	return d.Reader != nil
}

func (d *Dispatcher) lastMessageID(ctx context.Context, threadID string) string {
	msgs, err := d.Reader.Thread(ctx, threadID)
	if err != nil {
		d.Logger.Warn().Err(err).Str("thread_id", threadID).Msg("could not read thread for In-Reply-To")
		return ""
	}
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].MessageID
}

func mergeCC(to, cc, forced []string) []string {
	seen := map[string]bool{}
	for _, a := range to {
		seen[strings.ToLower(strings.TrimSpace(a))] = true
	}
	var out []string
	for _, a := range append(append([]string{}, cc...), forced...) {
		key := strings.ToLower(strings.TrimSpace(a))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(a))
	}
	return out
}
