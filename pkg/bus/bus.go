// Package bus implements the capability-dispatch bus: a registry of actors
// for one action category, and a publication protocol that concurrently
// Tests every eligible actor so a mediator can pick a winner.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mandel59/comunica/pkg/actor"
	"github.com/mandel59/comunica/pkg/core"
)

// Reply pairs a tested actor with its Test outcome. Err is non-nil both for
// ordinary infeasibility (actor.ErrCannotHandle) and for unexpected Test
// failures; the bus does not distinguish — mediators decide what an error
// means.
type Reply[A, T, O any] struct {
	Actor  actor.Actor[A, T, O]
	Result T
	Err    error
}

// Bus maintains the ordered set of subscribed actors for one action
// category. Subscription order is significant: Publish returns replies in
// that order and mediators break ties by it.
type Bus[A, T, O any] struct {
	name string

	mu     sync.RWMutex
	actors []actor.Actor[A, T, O]

	logger   core.Logger
	observer Observer
}

// New creates a bus. The name is diagnostic only; it appears in logs,
// metrics and inspector output.
func New[A, T, O any](name string) *Bus[A, T, O] {
	return &Bus[A, T, O]{
		name:   name,
		logger: core.NopLogger(),
	}
}

// Name returns the bus's diagnostic name.
func (b *Bus[A, T, O]) Name() string {
	return b.name
}

// SetLogger replaces the bus logger.
func (b *Bus[A, T, O]) SetLogger(l core.Logger) {
	if l != nil {
		b.logger = l
	}
}

// SetObserver installs an observer notified on every publish.
func (b *Bus[A, T, O]) SetObserver(o Observer) {
	b.observer = o
}

// Subscribe appends the actor to the subscription order. There is no
// uniqueness check: the same actor may be subscribed more than once, and
// the indexed bus relies on that for multi-identifier actors.
func (b *Bus[A, T, O]) Subscribe(a actor.Actor[A, T, O]) {
	b.mu.Lock()
	b.actors = append(b.actors, a)
	b.mu.Unlock()
}

// Unsubscribe removes the first occurrence of the actor (by identity) and
// reports whether a removal happened. Unsubscribing an actor that is not
// present is a no-op returning false.
func (b *Bus[A, T, O]) Unsubscribe(a actor.Actor[A, T, O]) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.actors {
		if sub == a {
			b.actors = append(b.actors[:i], b.actors[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of subscription entries (an actor subscribed N
// times counts N).
func (b *Bus[A, T, O]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.actors)
}

// Publish concurrently invokes Test on every subscribed actor and returns
// the replies in subscription order. Per-actor failures are captured in the
// corresponding Reply and never abort the other tests.
func (b *Bus[A, T, O]) Publish(ctx context.Context, action A) []Reply[A, T, O] {
	b.mu.RLock()
	candidates := make([]actor.Actor[A, T, O], len(b.actors))
	copy(candidates, b.actors)
	b.mu.RUnlock()

	start := time.Now()
	replies := b.collect(ctx, action, candidates)
	b.observe(ctx, RouteFullScan, len(candidates), time.Since(start))
	return replies
}

// collect fans Test out over the candidates and gathers one reply per
// candidate, positionally. A panicking Test is converted into an error
// reply so a misbehaving actor cannot corrupt its siblings' outcomes.
func (b *Bus[A, T, O]) collect(ctx context.Context, action A, candidates []actor.Actor[A, T, O]) []Reply[A, T, O] {
	replies := make([]Reply[A, T, O], len(candidates))
	var wg sync.WaitGroup
	for i, a := range candidates {
		replies[i].Actor = a
		wg.Add(1)
		go func(i int, a actor.Actor[A, T, O]) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					replies[i].Err = fmt.Errorf("bus %s: actor %s: test panicked: %v", b.name, a.Name(), r)
					b.logger.Errorf("bus %s: actor %s panicked during test: %v", b.name, a.Name(), r)
				}
			}()
			replies[i].Result, replies[i].Err = a.Test(ctx, action)
		}(i, a)
	}
	wg.Wait()

	if cid := core.CorrelationID(ctx); cid != "" {
		b.logger.Debugf("bus %s: publish %s tested %d actor(s)", b.name, cid, len(candidates))
	}
	return replies
}

func (b *Bus[A, T, O]) observe(ctx context.Context, route Route, candidates int, elapsed time.Duration) {
	if b.observer != nil {
		b.observer.ObservePublish(ctx, b.name, route, candidates, elapsed)
	}
}

// Snapshot returns a diagnostic view of the bus registry.
func (b *Bus[A, T, O]) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]string, len(b.actors))
	for i, a := range b.actors {
		subs[i] = a.Name()
	}
	return Snapshot{Name: b.name, Subscribers: subs}
}
