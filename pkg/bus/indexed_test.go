package bus

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/mandel59/comunica/pkg/actor"
)

func newArithIndexed(t *testing.T) *IndexedBus[arithAction, arithEstimate, float64] {
	t.Helper()
	b, err := NewIndexed[arithAction, arithEstimate, float64]("arith",
		actor.IdentifiersOf[arithAction, arithEstimate, float64],
		actor.ActionIDOf[arithAction])
	if err != nil {
		t.Fatalf("NewIndexed: %v", err)
	}
	return b
}

func TestIndexed_ConstructionRequiresExtractors(t *testing.T) {
	if _, err := NewIndexed[arithAction, arithEstimate, float64]("arith", nil, actor.ActionIDOf[arithAction]); err != ErrNoActorIdentifier {
		t.Fatalf("missing actor extractor: err = %v, want %v", err, ErrNoActorIdentifier)
	}
	if _, err := NewIndexed("arith", actor.IdentifiersOf[arithAction, arithEstimate, float64], ActionIdentifier[arithAction](nil)); err != ErrNoActionIdentifier {
		t.Fatalf("missing action extractor: err = %v, want %v", err, ErrNoActionIdentifier)
	}
}

func TestIndexed_SubscribeUnsubscribeSymmetry(t *testing.T) {
	b := newArithIndexed(t)
	keep := &arithActor{name: "keep", ops: []string{"count"}}
	b.Subscribe(keep)

	a := &arithActor{name: "a", ops: []string{"sum", "avg"}}
	b.Subscribe(a)
	if !b.Unsubscribe(a) {
		t.Fatal("unsubscribe returned false")
	}

	if got, want := b.Identifiers(), []string{"count"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("identifiers after symmetry = %v, want %v", got, want)
	}
	if b.Len() != 1 {
		t.Fatalf("base length = %d, want 1", b.Len())
	}
	for _, op := range []string{"sum", "avg", "count"} {
		replies := b.Publish(context.Background(), arithAction{Op: op})
		for _, r := range replies {
			if r.Actor.Name() == "a" {
				t.Fatalf("unsubscribed actor still a candidate for %q", op)
			}
		}
	}
}

func TestIndexed_UnknownUnsubscribe(t *testing.T) {
	b := newArithIndexed(t)
	if b.Unsubscribe(&arithActor{name: "ghost", ops: []string{"sum"}}) {
		t.Fatal("unsubscribe of unknown actor returned true")
	}
	if len(b.Identifiers()) != 0 || b.Len() != 0 {
		t.Fatal("unknown unsubscribe mutated state")
	}
}

func TestIndexed_PrunesEmptyBuckets(t *testing.T) {
	b := newArithIndexed(t)
	a := &arithActor{name: "a", ops: []string{"x"}}
	b.Subscribe(a)
	if got, want := b.Identifiers(), []string{"x"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("identifiers = %v, want %v", got, want)
	}

	b.Unsubscribe(a)
	if got := b.Identifiers(); len(got) != 0 {
		t.Fatalf("identifiers after pruning = %v, want none", got)
	}
}

func TestIndexed_MultiIdentifierFanOut(t *testing.T) {
	b := newArithIndexed(t)
	a := &arithActor{name: "a", ops: []string{"a", "b"}}
	b.Subscribe(a)

	expectNames(t, b.Publish(context.Background(), arithAction{Op: "a"}), "a")
	expectNames(t, b.Publish(context.Background(), arithAction{Op: "b"}), "a")

	// Full-scan fallback sees the actor once per identifier.
	expectNames(t, b.Publish(context.Background(), arithAction{}), "a", "a")
	if b.Len() != 2 {
		t.Fatalf("base length = %d, want 2", b.Len())
	}
}

func TestIndexed_WildcardIncludedInEveryIdentifiedPublish(t *testing.T) {
	b := newArithIndexed(t)
	b.Subscribe(&arithActor{name: "sum-only", ops: []string{"sum"}})
	wildcard := &arithActor{name: "wildcard"}
	b.Subscribe(wildcard)

	expectNames(t, b.Publish(context.Background(), arithAction{Op: "sum"}), "sum-only", "wildcard")
	expectNames(t, b.Publish(context.Background(), arithAction{Op: "median"}), "wildcard")
}

func TestIndexed_NoIdentifierActionFallsBackToFullScan(t *testing.T) {
	b := newArithIndexed(t)
	b.Subscribe(&arithActor{name: "a", ops: []string{"sum"}})
	b.Subscribe(&arithActor{name: "b", ops: []string{"avg"}})
	b.Subscribe(&arithActor{name: "w"})

	expectNames(t, b.Publish(context.Background(), arithAction{}), "a", "b", "w")
}

func TestIndexed_EmptyCandidateSetStaysEmpty(t *testing.T) {
	b := newArithIndexed(t)
	b.Subscribe(&arithActor{name: "a", ops: []string{"sum"}})

	// "z" has no bucket and there is no wildcard actor: no fallback.
	replies := b.Publish(context.Background(), arithAction{Op: "z"})
	if len(replies) != 0 {
		t.Fatalf("got %v, want no candidates", replyNames(replies))
	}
}

func TestIndexed_OrderIndependentOfCompletionTiming(t *testing.T) {
	b := newArithIndexed(t)
	b.Subscribe(&arithActor{name: "bucket-slow", ops: []string{"sum"}, testDelay: 30 * time.Millisecond})
	b.Subscribe(&arithActor{name: "wild-fast"})
	b.Subscribe(&arithActor{name: "bucket-fast", ops: []string{"sum"}})

	// Identifier-bucket entries first, then wildcard, each in
	// subscription order, no matter who finished first.
	expectNames(t, b.Publish(context.Background(), arithAction{Op: "sum"}),
		"bucket-slow", "bucket-fast", "wild-fast")
}

func TestIndexed_ObserverSeesIndexedRoute(t *testing.T) {
	b := newArithIndexed(t)
	b.Subscribe(&arithActor{name: "a", ops: []string{"sum"}})

	var routes []Route
	b.SetObserver(ObserverFunc(func(ctx context.Context, name string, route Route, candidates int, elapsed time.Duration) {
		routes = append(routes, route)
	}))

	b.Publish(context.Background(), arithAction{Op: "sum"})
	b.Publish(context.Background(), arithAction{})
	if want := []Route{RouteIndexed, RouteFullScan}; !reflect.DeepEqual(routes, want) {
		t.Fatalf("routes = %v, want %v", routes, want)
	}
}

func TestIndexed_EndToEndScenario(t *testing.T) {
	b := newArithIndexed(t)
	a := &arithActor{name: "A", ops: []string{"sum"}}
	wild := &arithActor{name: "B"}
	b.Subscribe(a)
	b.Subscribe(wild)

	ctx := context.Background()

	replies := b.Publish(ctx, arithAction{Op: "sum", Values: []float64{1, 2, 3}})
	expectNames(t, replies, "A", "B")
	for _, r := range replies {
		if r.Err != nil {
			t.Fatalf("actor %s infeasible for sum: %v", r.Actor.Name(), r.Err)
		}
	}

	expectNames(t, b.Publish(ctx, arithAction{Op: "avg"}), "B")
	expectNames(t, b.Publish(ctx, arithAction{}), "A", "B")
}
