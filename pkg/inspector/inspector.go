// Package inspector provides an HTTP endpoint for inspecting running
// buses: registry snapshots, Prometheus metrics and a WebSocket stream of
// publish events.
package inspector

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mandel59/comunica/pkg/bus"
	"github.com/mandel59/comunica/pkg/core"
)

// Source is anything that can describe its registry; both bus variants do.
type Source interface {
	Snapshot() bus.Snapshot
}

// PublishEvent is one entry of the live event stream.
type PublishEvent struct {
	Bus           string `json:"bus"`
	Route         string `json:"route"`
	Candidates    int    `json:"candidates"`
	ElapsedMicros int64  `json:"elapsed_us"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Inspector exposes diagnostic endpoints for a set of buses.
type Inspector struct {
	mu      sync.RWMutex
	sources []Source

	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool

	logger core.Logger
	server *http.Server
}

// New creates an inspector. The gatherer backs the /metrics endpoint; pass
// the observability registry, or nil to disable metrics.
func New(gatherer prometheus.Gatherer) *Inspector {
	return &Inspector{
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
		logger:  core.NopLogger(),
	}
}

// SetLogger replaces the inspector logger.
func (i *Inspector) SetLogger(l core.Logger) {
	if l != nil {
		i.logger = l
	}
}

// Register adds a bus to the /buses listing.
func (i *Inspector) Register(src Source) {
	i.mu.Lock()
	i.sources = append(i.sources, src)
	i.mu.Unlock()
}

// Handler returns the inspector's HTTP handler.
func (i *Inspector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/buses", i.handleBuses)
	mux.HandleFunc("/events", i.handleEvents)
	if i.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(i.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start serves the inspector on addr until Close is called.
func (i *Inspector) Start(addr string) error {
	i.server = &http.Server{
		Addr:              addr,
		Handler:           i.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := i.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			i.logger.Errorf("inspector: serve: %v", err)
		}
	}()
	return nil
}

// Close shuts the inspector down, disconnecting stream clients.
func (i *Inspector) Close(ctx context.Context) error {
	i.clientsMu.Lock()
	for conn := range i.clients {
		_ = conn.Close()
	}
	i.clients = make(map[*websocket.Conn]bool)
	i.clientsMu.Unlock()

	if i.server != nil {
		return i.server.Shutdown(ctx)
	}
	return nil
}

func (i *Inspector) handleBuses(w http.ResponseWriter, r *http.Request) {
	i.mu.RLock()
	snapshots := make([]bus.Snapshot, len(i.sources))
	for idx, src := range i.sources {
		snapshots[idx] = src.Snapshot()
	}
	i.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshots); err != nil {
		i.logger.Errorf("inspector: encode snapshots: %v", err)
	}
}

func (i *Inspector) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := i.upgrader.Upgrade(w, r, nil)
	if err != nil {
		i.logger.Errorf("inspector: websocket upgrade failed: %v", err)
		return
	}

	i.clientsMu.Lock()
	i.clients[conn] = true
	i.clientsMu.Unlock()

	// Drain the read side so pings and close frames are processed; the
	// stream is write-only from the client's point of view.
	go func() {
		defer i.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (i *Inspector) removeClient(conn *websocket.Conn) {
	i.clientsMu.Lock()
	delete(i.clients, conn)
	i.clientsMu.Unlock()
	_ = conn.Close()
}

// ObservePublish implements bus.Observer by broadcasting the publish to
// every connected stream client. A client whose write fails is dropped.
func (i *Inspector) ObservePublish(ctx context.Context, busName string, route bus.Route, candidates int, elapsed time.Duration) {
	event := PublishEvent{
		Bus:           busName,
		Route:         string(route),
		Candidates:    candidates,
		ElapsedMicros: elapsed.Microseconds(),
		CorrelationID: core.CorrelationID(ctx),
	}

	i.clientsMu.Lock()
	defer i.clientsMu.Unlock()
	for conn := range i.clients {
		if err := conn.WriteJSON(event); err != nil {
			i.logger.Warnf("inspector: dropping stream client: %v", err)
			delete(i.clients, conn)
			_ = conn.Close()
		}
	}
}
