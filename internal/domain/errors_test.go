package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWalksWrapChain(t *testing.T) {
	t.Parallel()
	inner := E(KindStorePermanent, "store.op", strErr("boom"))
	wrapped := fmt.Errorf("outer: %w", inner)
	if got := KindOf(wrapped); got != KindStorePermanent {
		t.Fatalf("got %v, want %v", got, KindStorePermanent)
	}
}

func TestWrapKeepsInnermostKind(t *testing.T) {
	t.Parallel()
	inner := E(KindInvalidInput, "inner.op", strErr("bad"))
	out := Wrap("outer.op", inner, KindStoreTransient)
	if got := KindOf(out); got != KindInvalidInput {
		t.Fatalf("wrap replaced the kind: got %v", got)
	}
	var de *Error
	if !errors.As(out, &de) || de.Op != "outer.op" {
		t.Fatalf("wrap lost operation context: %v", out)
	}
}

func TestWrapAppliesFallbackToUncategorized(t *testing.T) {
	t.Parallel()
	out := Wrap("op", errors.New("plain"), KindStoreTransient)
	if got := KindOf(out); got != KindStoreTransient {
		t.Fatalf("got %v, want fallback %v", got, KindStoreTransient)
	}
}

func TestWrapNilIsNil(t *testing.T) {
	t.Parallel()
	if Wrap("op", nil, KindStoreTransient) != nil {
		t.Fatalf("wrapping nil must stay nil")
	}
}

func TestKindOfContextErrors(t *testing.T) {
	t.Parallel()
	wrapped := fmt.Errorf("while searching: %w", context.Canceled)
	if got := KindOf(wrapped); got != KindCancelled {
		t.Fatalf("cancellation not detected: got %v", got)
	}
	if got := KindOf(context.DeadlineExceeded); got != KindCancelled {
		t.Fatalf("deadline not detected: got %v", got)
	}
	// Cancellation wins even when a kinded error wraps it.
	kinded := E(KindStoreTransient, "op", context.Canceled)
	if got := KindOf(kinded); got != KindCancelled {
		t.Fatalf("cancellation should take precedence: got %v", got)
	}
}

func TestErrorMessageFormat(t *testing.T) {
	t.Parallel()
	err := E(KindNotFound, "graph.lookup", strErr("no such chunk"))
	want := "graph.lookup: not_found: no such chunk"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}
