package lock

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Local is an in-process guard for single-instance deployments.
type Local struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func NewLocal(timeout time.Duration) *Local {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Local{sem: semaphore.NewWeighted(1), timeout: timeout}
}

func (l *Local) Acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		return nil, busy(err)
	}
	observeWait(start)
	var once sync.Once
	return func() { once.Do(func() { l.sem.Release(1) }) }, nil
}
