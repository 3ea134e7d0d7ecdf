package bus

import (
	"context"
	"time"
)

// Route tells an observer how a publish determined its candidate set.
type Route string

const (
	// RouteFullScan means every subscriber was tested.
	RouteFullScan Route = "fullscan"

	// RouteIndexed means only the identifier bucket plus the wildcard
	// bucket were tested.
	RouteIndexed Route = "indexed"
)

// Observer is notified after every publish. Implementations must be safe
// for concurrent use; metrics and the inspector event stream hook in here.
type Observer interface {
	ObservePublish(ctx context.Context, bus string, route Route, candidates int, elapsed time.Duration)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, bus string, route Route, candidates int, elapsed time.Duration)

func (f ObserverFunc) ObservePublish(ctx context.Context, bus string, route Route, candidates int, elapsed time.Duration) {
	f(ctx, bus, route, candidates, elapsed)
}

// Snapshot is a diagnostic view of a bus registry, serializable as JSON.
type Snapshot struct {
	Name        string              `json:"name"`
	Subscribers []string            `json:"subscribers"`
	Indexed     bool                `json:"indexed"`
	Buckets     map[string][]string `json:"buckets,omitempty"`
	Wildcard    []string            `json:"wildcard,omitempty"`
}
