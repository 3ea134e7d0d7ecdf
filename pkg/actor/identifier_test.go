package actor

import (
	"context"
	"reflect"
	"testing"
)

func TestIdentifierConstructors(t *testing.T) {
	tests := []struct {
		name string
		id   Identifier
		kind IdentifierKind
		vals []string
	}{
		{"none", NoIdentifier(), IdentifierNone, nil},
		{"single", IdentifierOf("sum"), IdentifierSingle, []string{"sum"}},
		{"empty string collapses", IdentifierOf(""), IdentifierNone, nil},
		{"set", IdentifierSetOf("a", "b"), IdentifierSet, []string{"a", "b"}},
		{"set drops empties", IdentifierSetOf("", "a", ""), IdentifierSingle, []string{"a"}},
		{"all empty collapses", IdentifierSetOf("", ""), IdentifierNone, nil},
		{"no values collapses", IdentifierSetOf(), IdentifierNone, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.id.Kind() != tt.kind {
				t.Fatalf("kind = %v, want %v", tt.id.Kind(), tt.kind)
			}
			if !reflect.DeepEqual(tt.id.Values(), tt.vals) {
				t.Fatalf("values = %v, want %v", tt.id.Values(), tt.vals)
			}
			if tt.id.IsNone() != (tt.kind == IdentifierNone) {
				t.Fatalf("IsNone = %v for kind %v", tt.id.IsNone(), tt.kind)
			}
		})
	}
}

func TestIdentifierValuesAreCopied(t *testing.T) {
	id := IdentifierSetOf("a", "b")
	vals := id.Values()
	vals[0] = "mutated"
	if got := id.Values()[0]; got != "a" {
		t.Fatalf("identifier mutated through Values(): %q", got)
	}
}

type plainActor struct{}

func (plainActor) Name() string                                   { return "plain" }
func (plainActor) Test(ctx context.Context, s string) (int, error) { return 0, nil }
func (plainActor) Run(ctx context.Context, s string) (int, error)  { return 0, nil }

type routedActor struct {
	plainActor
	ids Identifier
}

func (r routedActor) Identifiers() Identifier { return r.ids }

func TestDefaultExtractors(t *testing.T) {
	if got := IdentifiersOf[string, int, int](plainActor{}); !got.IsNone() {
		t.Fatalf("actor without Identifiable yielded %v", got.Values())
	}
	routed := routedActor{ids: IdentifierOf("x")}
	if got := IdentifiersOf[string, int, int](routed); !reflect.DeepEqual(got.Values(), []string{"x"}) {
		t.Fatalf("routed actor yielded %v", got.Values())
	}

	if got := ActionIDOf("not identified"); got != "" {
		t.Fatalf("plain action yielded identifier %q", got)
	}
}
