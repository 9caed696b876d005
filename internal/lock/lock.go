// Package lock provides the process-wide mutation guard. Every
// read-decide-write sequence over shared rows runs inside Do.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/metrics"
)

const DefaultTimeout = 20 * time.Second

// Guard hands out the single mutation lock. The returned release func must
// be called exactly once.
type Guard interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Do runs fn while holding g.
func Do(ctx context.Context, g Guard, fn func(ctx context.Context) error) error {
	release, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

func busy(err error) error {
	metrics.LockTimeouts.Inc()
	if errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.Busy, err, "request cancelled while waiting for lock")
	}
	return apperr.Wrap(apperr.Busy, err, "another update is in progress, please retry")
}

func observeWait(start time.Time) {
	metrics.LockWait.Observe(time.Since(start).Seconds())
}
