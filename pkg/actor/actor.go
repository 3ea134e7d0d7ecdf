// Package actor defines the capability contract shared by every pluggable
// unit in the dispatch pipeline.
//
// An actor goes through two phases for every action: Test, a cheap
// side-effect-free feasibility check whose result a mediator can rank, and
// Run, the actual (possibly expensive) handling. Run is only ever invoked
// on the single actor a mediator selected after a successful Test.
package actor

import (
	"context"
	"errors"
)

// ErrCannotHandle signals an ordinary "this actor is not able to handle the
// action" outcome from Test. It is expected output, not an exceptional
// condition; mediators collect it as an infeasibility reason. Actors should
// wrap it with detail: fmt.Errorf("no parser for %q: %w", kind, actor.ErrCannotHandle).
var ErrCannotHandle = errors.New("actor: cannot handle action")

// Actor is a capability unit handling actions of type A. Test returns
// selection metadata of type T; Run produces an output of type O.
//
// Test must not mutate the action or perform I/O. Run may block, perform
// I/O, or take non-trivial time. Implementations may re-validate inside Run
// but must not assume Test left any state behind; it has no side effects.
type Actor[A, T, O any] interface {
	// Name returns the actor's diagnostic name.
	Name() string

	// Test evaluates whether and how well this actor can handle the action.
	Test(ctx context.Context, action A) (T, error)

	// Run performs the actual handling. Callers must only invoke Run after
	// a successful Test on the same action.
	Run(ctx context.Context, action A) (O, error)
}

// Identifiable is implemented by actors that expose routing identifiers.
// An indexed bus registers such an actor under every identifier it reports;
// actors that do not implement Identifiable (or report none) land in the
// wildcard bucket and are tested against every action.
type Identifiable interface {
	Identifiers() Identifier
}

// IdentifiersOf is the default actor-identifier extractor: it returns the
// identifiers an actor reports via Identifiable, or no identifier at all.
// Absence is a first-class state, never an error.
func IdentifiersOf[A, T, O any](a Actor[A, T, O]) Identifier {
	if id, ok := any(a).(Identifiable); ok {
		return id.Identifiers()
	}
	return NoIdentifier()
}

// IdentifiedAction is implemented by actions that carry a routing
// identifier. An empty string means the action has none.
type IdentifiedAction interface {
	ActionID() string
}

// ActionIDOf is the default action-identifier extractor. Actions that do
// not implement IdentifiedAction simply have no identifier.
func ActionIDOf[A any](action A) string {
	if id, ok := any(action).(IdentifiedAction); ok {
		return id.ActionID()
	}
	return ""
}
