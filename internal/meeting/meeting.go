// Package meeting provisions video meetings and calendar events for a
// scheduled support round.
package meeting

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tadasupo/backend/internal/metrics"
	"github.com/tadasupo/backend/internal/models"
)

const DefaultDuration = 60 * time.Minute

var ErrUnsupportedMethod = errors.New("method does not provision meetings")

type Request struct {
	Title       string
	Description string
	Start       time.Time
	Duration    time.Duration
}

func (r Request) end() time.Time {
	d := r.Duration
	if d <= 0 {
		d = DefaultDuration
	}
	return r.Start.Add(d)
}

type Meeting struct {
	URL     string
	EventID string
}

type Provisioner interface {
	Provision(ctx context.Context, method string, req Request) (Meeting, error)
}

// Provisions reports whether method creates a meeting at all.
func Provisions(method string) bool {
	return method == models.MethodGoogleMeet || method == models.MethodZoom
}

// Router sends each method to its provider. Nil providers are treated as
// not configured.
type Router struct {
	Zoom     *Zoom
	Calendar *Calendar
	Logger   zerolog.Logger
}

func (r *Router) Provision(ctx context.Context, method string, req Request) (Meeting, error) {
	switch method {
	case models.MethodGoogleMeet:
		if r.Calendar == nil {
			return Meeting{}, errors.New("google calendar is not configured")
		}
		m, err := r.Calendar.CreateMeet(ctx, req)
		metrics.MeetingProvisions.WithLabelValues("google_meet", metrics.Result(err)).Inc()
		return m, err
	case models.MethodZoom:
		if r.Zoom == nil {
			return Meeting{}, errors.New("zoom is not configured")
		}
		m, err := r.Zoom.CreateMeeting(ctx, req)
		metrics.MeetingProvisions.WithLabelValues("zoom", metrics.Result(err)).Inc()
		if err != nil {
			return Meeting{}, err
		}
		if r.Calendar != nil {
			ev := req
			ev.Description = "Zoom URL: " + m.URL + "\n\n" + req.Description
			if _, err := r.Calendar.CreateEvent(ctx, ev); err != nil {
				r.Logger.Warn().Err(err).Str("meeting_id", m.EventID).Msg("calendar entry for zoom meeting failed")
			}
		}
		return m, nil
	}
	return Meeting{}, ErrUnsupportedMethod
}
