package core

import (
	"context"
	"testing"
)

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	if got := CorrelationID(ctx); got != "" {
		t.Fatalf("empty context yielded %q", got)
	}

	ctx = WithCorrelationID(ctx, "abc")
	if got := CorrelationID(ctx); got != "abc" {
		t.Fatalf("got %q, want abc", got)
	}

	// Ensure keeps an existing ID and mints one otherwise.
	if got := CorrelationID(EnsureCorrelationID(ctx)); got != "abc" {
		t.Fatalf("Ensure replaced existing ID with %q", got)
	}
	minted := CorrelationID(EnsureCorrelationID(context.Background()))
	if minted == "" {
		t.Fatal("Ensure did not mint an ID")
	}

	if CorrelationID(WithCorrelationID(context.Background(), "")) == "" {
		t.Fatal("empty ID was not replaced by a generated one")
	}
}
