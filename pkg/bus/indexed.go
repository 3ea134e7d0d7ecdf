package bus

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mandel59/comunica/pkg/actor"
)

// wildcardKey is the reserved bucket for actors that report no identifier.
// Real identifiers are extracted strings and never contain NUL, so the key
// cannot collide.
const wildcardKey = "\x00*"

// ActorIdentifier extracts the routing identifiers an actor reports.
// It must return NoIdentifier for actors that carry none; it never errors.
type ActorIdentifier[A, T, O any] func(a actor.Actor[A, T, O]) actor.Identifier

// ActionIdentifier extracts the routing identifier of an action, or ""
// when the action carries none. It never errors.
type ActionIdentifier[A any] func(action A) string

// IndexedBus is a Bus with a secondary index from identifier to the actors
// registered under it. Publishing an identified action tests only that
// identifier's bucket plus the wildcard bucket; an unidentified action
// falls back to the base full-scan behavior.
type IndexedBus[A, T, O any] struct {
	*Bus[A, T, O]

	actorID  ActorIdentifier[A, T, O]
	actionID ActionIdentifier[A]

	mu    sync.RWMutex
	index map[string][]actor.Actor[A, T, O]
}

// NewIndexed creates an indexed bus. Both extractors are required;
// construction fails with ErrNoActorIdentifier or ErrNoActionIdentifier
// when one is missing.
func NewIndexed[A, T, O any](name string, actorID ActorIdentifier[A, T, O], actionID ActionIdentifier[A]) (*IndexedBus[A, T, O], error) {
	if actorID == nil {
		return nil, ErrNoActorIdentifier
	}
	if actionID == nil {
		return nil, ErrNoActionIdentifier
	}
	return &IndexedBus[A, T, O]{
		Bus:      New[A, T, O](name),
		actorID:  actorID,
		actionID: actionID,
		index:    make(map[string][]actor.Actor[A, T, O]),
	}, nil
}

// keysFor maps an actor's reported identifier onto index keys. An actor
// with no identifier lives solely in the wildcard bucket.
func (b *IndexedBus[A, T, O]) keysFor(a actor.Actor[A, T, O]) []string {
	id := b.actorID(a)
	switch id.Kind() {
	case actor.IdentifierNone:
		return []string{wildcardKey}
	case actor.IdentifierSingle, actor.IdentifierSet:
		return id.Values()
	default:
		// Unknown kinds route like "no identifier" rather than failing;
		// sparse or odd shapes must never break bus bookkeeping.
		return []string{wildcardKey}
	}
}

// Subscribe registers the actor under every identifier it reports (or the
// wildcard bucket if none) and mirrors each registration into the base
// subscription order, so an actor with N identifiers is reachable N times
// by full scan.
func (b *IndexedBus[A, T, O]) Subscribe(a actor.Actor[A, T, O]) {
	for _, key := range b.keysFor(a) {
		b.mu.Lock()
		b.index[key] = append(b.index[key], a)
		b.mu.Unlock()
		b.Bus.Subscribe(a)
	}
}

// Unsubscribe is the mirror of Subscribe: for each identifier the actor
// currently reports, one occurrence is removed from that bucket (pruning
// the bucket when emptied) and one base subscription entry is removed.
// Returns true iff at least one base removal happened.
func (b *IndexedBus[A, T, O]) Unsubscribe(a actor.Actor[A, T, O]) bool {
	removed := false
	for _, key := range b.keysFor(a) {
		b.mu.Lock()
		if entries, ok := b.index[key]; ok {
			for i, entry := range entries {
				if entry == a {
					entries = append(entries[:i], entries[i+1:]...)
					if len(entries) == 0 {
						delete(b.index, key)
					} else {
						b.index[key] = entries
					}
					break
				}
			}
		}
		b.mu.Unlock()
		if b.Bus.Unsubscribe(a) {
			removed = true
		}
	}
	return removed
}

// Publish routes by the action's identifier when it has one: the candidate
// set is the identifier bucket followed by the wildcard bucket, each in
// subscription order, and only those actors get tested — even when both
// buckets are empty there is no fallback to a full scan. Actions without an
// identifier are published to every subscriber, exactly like the base bus.
func (b *IndexedBus[A, T, O]) Publish(ctx context.Context, action A) []Reply[A, T, O] {
	key := b.actionID(action)
	if key == "" {
		return b.Bus.Publish(ctx, action)
	}

	b.mu.RLock()
	bucket := b.index[key]
	wildcard := b.index[wildcardKey]
	candidates := make([]actor.Actor[A, T, O], 0, len(bucket)+len(wildcard))
	candidates = append(candidates, bucket...)
	candidates = append(candidates, wildcard...)
	b.mu.RUnlock()

	start := time.Now()
	replies := b.collect(ctx, action, candidates)
	b.observe(ctx, RouteIndexed, len(candidates), time.Since(start))
	return replies
}

// Identifiers returns the identifiers currently known to the index, sorted.
// Pruned buckets do not appear.
func (b *IndexedBus[A, T, O]) Identifiers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.index))
	for key := range b.index {
		if key != wildcardKey {
			ids = append(ids, key)
		}
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a diagnostic view including the index buckets.
func (b *IndexedBus[A, T, O]) Snapshot() Snapshot {
	snap := b.Bus.Snapshot()
	snap.Indexed = true
	snap.Buckets = make(map[string][]string)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for key, entries := range b.index {
		names := make([]string, len(entries))
		for i, a := range entries {
			names[i] = a.Name()
		}
		if key == wildcardKey {
			snap.Wildcard = names
		} else {
			snap.Buckets[key] = names
		}
	}
	return snap
}
