package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tadasupo/backend/internal/apperr"
)

func TestLocalTimesOutWithBusy(t *testing.T) {
	g := NewLocal(30 * time.Millisecond)
	release, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer release()

	_, err = g.Acquire(context.Background())
	if !apperr.Is(err, apperr.Busy) {
		t.Fatalf("expected Busy, got %v", err)
	}
}

func TestLocalReleaseIsIdempotent(t *testing.T) {
	g := NewLocal(time.Second)
	release, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()
	release()
	r2, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	r2()
}

func TestDoSerializes(t *testing.T) {
	g := NewLocal(time.Second)
	counter := 0
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			_ = Do(context.Background(), g, func(context.Context) error {
				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	if counter != 20 {
		t.Fatalf("expected 20 serialized increments, got %d", counter)
	}
}

func TestRedisGuard(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	g := NewRedis(rdb, 100*time.Millisecond, zerolog.Nop())
	g.key = "tadasupo:test-lock"
	release, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := g.Acquire(context.Background()); !apperr.Is(err, apperr.Busy) {
		t.Fatalf("expected Busy, got %v", err)
	}
	release()
	r2, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	r2()
}
