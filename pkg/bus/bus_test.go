package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mandel59/comunica/pkg/actor"
)

// arithAction is the test action: an aggregate operation over values.
type arithAction struct {
	Op     string
	Values []float64
}

func (a arithAction) ActionID() string { return a.Op }

type arithEstimate struct {
	Cost float64
}

// arithActor handles one or more aggregate operations. Knobs make it
// misbehave on demand so isolation can be tested.
type arithActor struct {
	name      string
	ops       []string
	cost      float64
	testDelay time.Duration
	testErr   error
	testPanic bool
	runErr    error
	runs      int
}

func (a *arithActor) Name() string { return a.name }

func (a *arithActor) Identifiers() actor.Identifier {
	return actor.IdentifierSetOf(a.ops...)
}

func (a *arithActor) handles(op string) bool {
	if len(a.ops) == 0 {
		return true
	}
	for _, o := range a.ops {
		if o == op {
			return true
		}
	}
	return false
}

func (a *arithActor) Test(ctx context.Context, action arithAction) (arithEstimate, error) {
	if a.testDelay > 0 {
		time.Sleep(a.testDelay)
	}
	if a.testPanic {
		panic("broken actor")
	}
	if a.testErr != nil {
		return arithEstimate{}, a.testErr
	}
	if !a.handles(action.Op) {
		return arithEstimate{}, fmt.Errorf("%s does not handle %q: %w", a.name, action.Op, actor.ErrCannotHandle)
	}
	return arithEstimate{Cost: a.cost}, nil
}

func (a *arithActor) Run(ctx context.Context, action arithAction) (float64, error) {
	a.runs++
	if a.runErr != nil {
		return 0, a.runErr
	}
	var sum float64
	for _, v := range action.Values {
		sum += v
	}
	switch action.Op {
	case "sum":
		return sum, nil
	case "avg":
		if len(action.Values) == 0 {
			return 0, nil
		}
		return sum / float64(len(action.Values)), nil
	case "count":
		return float64(len(action.Values)), nil
	default:
		return 0, fmt.Errorf("unsupported op %q", action.Op)
	}
}

func replyNames[A, T, O any](replies []Reply[A, T, O]) []string {
	names := make([]string, len(replies))
	for i, r := range replies {
		names[i] = r.Actor.Name()
	}
	return names
}

func expectNames[A, T, O any](t *testing.T, replies []Reply[A, T, O], want ...string) {
	t.Helper()
	got := replyNames(replies)
	if len(got) != len(want) {
		t.Fatalf("got %d replies %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reply %d is %s, want %s (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestBus_UnsubscribeUnknownReturnsFalse(t *testing.T) {
	b := New[arithAction, arithEstimate, float64]("arith")
	a := &arithActor{name: "a", ops: []string{"sum"}}

	if b.Unsubscribe(a) {
		t.Fatal("unsubscribe of never-subscribed actor returned true")
	}
	if b.Len() != 0 {
		t.Fatalf("bus length = %d after no-op unsubscribe, want 0", b.Len())
	}
}

func TestBus_DuplicateSubscriptionsCountSeparately(t *testing.T) {
	b := New[arithAction, arithEstimate, float64]("arith")
	a := &arithActor{name: "a", ops: []string{"sum"}}

	b.Subscribe(a)
	b.Subscribe(a)
	if b.Len() != 2 {
		t.Fatalf("bus length = %d, want 2", b.Len())
	}

	if !b.Unsubscribe(a) {
		t.Fatal("first unsubscribe returned false")
	}
	if b.Len() != 1 {
		t.Fatalf("bus length = %d after one unsubscribe, want 1", b.Len())
	}
	if !b.Unsubscribe(a) {
		t.Fatal("second unsubscribe returned false")
	}
	if b.Unsubscribe(a) {
		t.Fatal("third unsubscribe returned true on empty bus")
	}
}

func TestBus_PublishPreservesSubscriptionOrder(t *testing.T) {
	b := New[arithAction, arithEstimate, float64]("arith")
	// The slowest test completes last but must come back first.
	b.Subscribe(&arithActor{name: "slow", testDelay: 30 * time.Millisecond})
	b.Subscribe(&arithActor{name: "medium", testDelay: 10 * time.Millisecond})
	b.Subscribe(&arithActor{name: "fast"})

	replies := b.Publish(context.Background(), arithAction{Op: "sum", Values: []float64{1, 2}})
	expectNames(t, replies, "slow", "medium", "fast")
}

func TestBus_PublishIsolatesFailures(t *testing.T) {
	b := New[arithAction, arithEstimate, float64]("arith")
	boom := errors.New("boom")
	b.Subscribe(&arithActor{name: "ok", ops: []string{"sum"}})
	b.Subscribe(&arithActor{name: "failing", testErr: boom})
	b.Subscribe(&arithActor{name: "panicking", testPanic: true})
	b.Subscribe(&arithActor{name: "also-ok", ops: []string{"sum"}})

	replies := b.Publish(context.Background(), arithAction{Op: "sum"})
	expectNames(t, replies, "ok", "failing", "panicking", "also-ok")

	if replies[0].Err != nil {
		t.Fatalf("ok actor errored: %v", replies[0].Err)
	}
	if !errors.Is(replies[1].Err, boom) {
		t.Fatalf("failing actor error = %v, want %v", replies[1].Err, boom)
	}
	if replies[2].Err == nil {
		t.Fatal("panicking actor produced no error")
	}
	if replies[3].Err != nil {
		t.Fatalf("actor after the panic errored: %v", replies[3].Err)
	}
}

func TestBus_PublishEmptyBus(t *testing.T) {
	b := New[arithAction, arithEstimate, float64]("arith")
	replies := b.Publish(context.Background(), arithAction{Op: "sum"})
	if len(replies) != 0 {
		t.Fatalf("got %d replies from empty bus, want 0", len(replies))
	}
}

func TestBus_ObserverSeesFullScan(t *testing.T) {
	b := New[arithAction, arithEstimate, float64]("arith")
	b.Subscribe(&arithActor{name: "a", ops: []string{"sum"}})

	var gotRoute Route
	var gotCandidates int
	b.SetObserver(ObserverFunc(func(ctx context.Context, name string, route Route, candidates int, elapsed time.Duration) {
		gotRoute = route
		gotCandidates = candidates
		if name != "arith" {
			t.Errorf("observer saw bus %q, want arith", name)
		}
	}))

	b.Publish(context.Background(), arithAction{Op: "sum"})
	if gotRoute != RouteFullScan {
		t.Fatalf("route = %q, want %q", gotRoute, RouteFullScan)
	}
	if gotCandidates != 1 {
		t.Fatalf("candidates = %d, want 1", gotCandidates)
	}
}
