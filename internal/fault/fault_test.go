package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(KindTransientFetch, "fetch page", cause)

	if !errors.Is(err, ErrTransientFetch) {
		t.Errorf("expected errors.Is to match ErrTransientFetch")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("did not expect errors.Is to match ErrNotFound")
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to remain reachable")
	}

	wrapped := fmt.Errorf("competitor asana.com: %w", err)
	if KindOf(wrapped) != KindTransientFetch {
		t.Errorf("expected KindOf to see through wrapping, got %q", KindOf(wrapped))
	}
}

func TestError_Message(t *testing.T) {
	err := New(KindStore, "put", errors.New("disk full"))
	if got := err.Error(); got != "store: put: disk full" {
		t.Errorf("unexpected message %q", got)
	}
	if got := Newf(KindInvalid, "", "query is empty").Error(); got != "invalid: query is empty" {
		t.Errorf("unexpected message %q", got)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Errorf("expected empty kind for plain errors")
	}
}
