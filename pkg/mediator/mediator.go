// Package mediator implements winner selection over bus publish replies:
// partition the replies into feasible and infeasible, pick exactly one
// feasible actor by a pluggable strategy, and invoke Run on it alone.
package mediator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mandel59/comunica/pkg/actor"
	"github.com/mandel59/comunica/pkg/bus"
	"github.com/mandel59/comunica/pkg/core"
)

// ErrNoCandidate is matched by errors.Is against the *NoCandidateError a
// mediation returns when no actor can handle the action.
var ErrNoCandidate = errors.New("mediator: no actor able to handle action")

// Reason records why one actor was not feasible for an action.
type Reason struct {
	Actor string
	Err   error
}

// NoCandidateError reports that the feasible set was empty. It carries
// every per-actor infeasibility or failure reason for diagnostics.
type NoCandidateError struct {
	Bus     string
	Reasons []Reason
}

func (e *NoCandidateError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "mediator: no actor on bus %s able to handle action", e.Bus)
	for _, r := range e.Reasons {
		fmt.Fprintf(&sb, "\n  %s: %v", r.Actor, r.Err)
	}
	return sb.String()
}

func (e *NoCandidateError) Is(target error) bool {
	return target == ErrNoCandidate
}

// Unwrap exposes the individual reasons to errors.Is / errors.As.
func (e *NoCandidateError) Unwrap() []error {
	errs := make([]error, len(e.Reasons))
	for i, r := range e.Reasons {
		errs[i] = r.Err
	}
	return errs
}

// Publisher is the slice of the bus a mediator consumes. Both *bus.Bus and
// *bus.IndexedBus satisfy it; mediators never touch the index directly.
type Publisher[A, T, O any] interface {
	Name() string
	Publish(ctx context.Context, action A) []bus.Reply[A, T, O]
}

// Strategy selects a winner among feasible test results. Choose receives
// the results in reply (subscription) order and returns the index of the
// winner; strategies must be deterministic, breaking ties by preferring the
// lower index so selection is reproducible across runs.
type Strategy[T any] interface {
	Choose(results []T) int
}

// Mediator dispatches actions over one bus: Publish, select a winner,
// Run the winner.
type Mediator[A, T, O any] struct {
	bus      Publisher[A, T, O]
	strategy Strategy[T]
	logger   core.Logger
	observer Observer
}

// New creates a mediator over the given bus with the given selection
// strategy.
func New[A, T, O any](b Publisher[A, T, O], s Strategy[T]) *Mediator[A, T, O] {
	return &Mediator[A, T, O]{
		bus:      b,
		strategy: s,
		logger:   core.NopLogger(),
	}
}

// SetLogger replaces the mediator logger.
func (m *Mediator[A, T, O]) SetLogger(l core.Logger) {
	if l != nil {
		m.logger = l
	}
}

// SetObserver installs an observer notified after every mediation.
func (m *Mediator[A, T, O]) SetObserver(o Observer) {
	m.observer = o
}

// MediateActor publishes the action and selects the single winning actor
// without running it. Returns *NoCandidateError when no actor is feasible.
func (m *Mediator[A, T, O]) MediateActor(ctx context.Context, action A) (actor.Actor[A, T, O], error) {
	replies := m.bus.Publish(ctx, action)

	feasible := make([]bus.Reply[A, T, O], 0, len(replies))
	var reasons []Reason
	for _, r := range replies {
		if r.Err != nil {
			reasons = append(reasons, Reason{Actor: r.Actor.Name(), Err: r.Err})
			continue
		}
		feasible = append(feasible, r)
	}

	if len(feasible) == 0 {
		return nil, &NoCandidateError{Bus: m.bus.Name(), Reasons: reasons}
	}

	results := make([]T, len(feasible))
	for i, r := range feasible {
		results[i] = r.Result
	}
	idx := m.strategy.Choose(results)
	if idx < 0 || idx >= len(feasible) {
		// A strategy returning an out-of-range index is a programming
		// error in the strategy; fall back to the first feasible actor.
		m.logger.Warnf("mediator: strategy on bus %s chose out-of-range index %d, using first feasible", m.bus.Name(), idx)
		idx = 0
	}
	winner := feasible[idx].Actor
	m.logger.Debugf("mediator: bus %s selected %s out of %d feasible (%d tested)",
		m.bus.Name(), winner.Name(), len(feasible), len(replies))
	return winner, nil
}

// Mediate publishes the action, selects exactly one winner and runs it.
// A Run failure is surfaced to the caller as-is (wrapped with the actor
// name); this layer does not retry.
func (m *Mediator[A, T, O]) Mediate(ctx context.Context, action A) (O, error) {
	start := time.Now()
	winner, err := m.MediateActor(ctx, action)
	if err != nil {
		m.observeMediation(OutcomeNoCandidate, time.Since(start))
		var zero O
		return zero, err
	}

	out, err := winner.Run(ctx, action)
	if err != nil {
		m.observeMediation(OutcomeRunFailure, time.Since(start))
		var zero O
		return zero, fmt.Errorf("mediator: actor %s: %w", winner.Name(), err)
	}
	m.observeMediation(OutcomeOK, time.Since(start))
	return out, nil
}

func (m *Mediator[A, T, O]) observeMediation(outcome Outcome, elapsed time.Duration) {
	if m.observer != nil {
		m.observer.ObserveMediation(m.bus.Name(), outcome, elapsed)
	}
}

// Outcome classifies how a mediation ended.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeNoCandidate Outcome = "no_candidate"
	OutcomeRunFailure  Outcome = "run_failure"
)

// Observer is notified after every mediation; metrics hook in here.
type Observer interface {
	ObserveMediation(bus string, outcome Outcome, elapsed time.Duration)
}
