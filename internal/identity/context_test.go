package identity

import (
	"context"
	"testing"
)

func TestCallerIDRoundTrip(t *testing.T) {
	ctx := WithCallerID(context.Background(), 42)
	got, ok := CallerIDFromContext(ctx)
	if !ok || got != 42 {
		t.Fatalf("expected caller 42, got %d ok=%v", got, ok)
	}
}

func TestCallerIDMissing(t *testing.T) {
	if _, ok := CallerIDFromContext(context.Background()); ok {
		t.Fatal("expected no caller in empty context")
	}
	if _, ok := CallerIDFromContext(WithCallerID(context.Background(), 0)); ok {
		t.Fatal("expected zero id to be rejected")
	}
}
