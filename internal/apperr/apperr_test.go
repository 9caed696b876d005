package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := New(LimitExceeded, "limit %d reached", 3)
	err := fmt.Errorf("reopen: %w", base)
	if KindOf(err) != LimitExceeded {
		t.Fatalf("expected LIMIT_EXCEEDED, got %s", KindOf(err))
	}
	if Message(err) != "limit 3 reached" {
		t.Fatalf("unexpected message: %q", Message(err))
	}
}

func TestKindOfForeignError(t *testing.T) {
	if KindOf(errors.New("boom")) != Internal {
		t.Fatalf("expected INTERNAL for untyped errors")
	}
	if KindOf(nil) != "" {
		t.Fatalf("expected empty kind for nil")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("smtp down")
	err := Wrap(UpstreamFailure, cause, "send mail")
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if HTTPStatus(KindOf(err)) != http.StatusBadGateway {
		t.Fatalf("unexpected status %d", HTTPStatus(KindOf(err)))
	}
}
