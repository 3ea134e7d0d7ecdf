// Package cluster bridges the capability contract over NATS: an actor
// running in another process is exposed on a subject pair, and a local
// RemoteActor proxy subscribes to a bus in its place. Test and Run both
// travel as JSON request/reply.
package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mandel59/comunica/pkg/actor"
	"github.com/mandel59/comunica/pkg/core"
)

const correlationHeader = "X-Correlation-Id"

// envelope is the wire format for test and run replies.
type envelope struct {
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Infeasible bool            `json:"infeasible,omitempty"`
}

// RemoteConfig configures a RemoteActor proxy.
type RemoteConfig struct {
	// Name is the remote actor's name; it determines the subject pair
	// <prefix>.actor.<name>.test / .run.
	Name string

	// Prefix is prepended to all subjects. Default: "comunica".
	Prefix string

	// Identifiers are the routing identifiers the proxy reports on behalf
	// of the remote actor. Empty means wildcard.
	Identifiers []string

	// RequestTimeout bounds each Test or Run round trip when the caller's
	// context carries no earlier deadline. Default: 5s.
	RequestTimeout time.Duration
}

// RemoteActor is an actor.Actor whose Test and Run execute in another
// process, reached over NATS.
type RemoteActor[A, T, O any] struct {
	nc      *nats.Conn
	name    string
	subject string
	ids     actor.Identifier
	timeout time.Duration
	logger  core.Logger
}

// NewRemoteActor creates a proxy for a remotely exposed actor.
func NewRemoteActor[A, T, O any](nc *nats.Conn, cfg RemoteConfig) (*RemoteActor[A, T, O], error) {
	if nc == nil {
		return nil, fmt.Errorf("cluster: nats connection cannot be nil")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("cluster: remote actor name is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "comunica"
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteActor[A, T, O]{
		nc:      nc,
		name:    cfg.Name,
		subject: prefix + ".actor." + cfg.Name,
		ids:     actor.IdentifierSetOf(cfg.Identifiers...),
		timeout: timeout,
		logger:  core.NopLogger(),
	}, nil
}

// SetLogger replaces the proxy logger.
func (r *RemoteActor[A, T, O]) SetLogger(l core.Logger) {
	if l != nil {
		r.logger = l
	}
}

func (r *RemoteActor[A, T, O]) Name() string {
	return r.name
}

// Identifiers implements actor.Identifiable so an indexed bus can route to
// the proxy without knowing it is remote.
func (r *RemoteActor[A, T, O]) Identifiers() actor.Identifier {
	return r.ids
}

func (r *RemoteActor[A, T, O]) Test(ctx context.Context, action A) (T, error) {
	var result T
	raw, err := r.request(ctx, r.subject+".test", action)
	if err != nil {
		return result, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return result, fmt.Errorf("cluster: decode test result from %s: %w", r.name, err)
		}
	}
	return result, nil
}

func (r *RemoteActor[A, T, O]) Run(ctx context.Context, action A) (O, error) {
	var out O
	raw, err := r.request(ctx, r.subject+".run", action)
	if err != nil {
		return out, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return out, fmt.Errorf("cluster: decode run output from %s: %w", r.name, err)
		}
	}
	return out, nil
}

func (r *RemoteActor[A, T, O]) request(ctx context.Context, subject string, action any) (json.RawMessage, error) {
	data, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("cluster: encode action: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	if cid := core.CorrelationID(ctx); cid != "" {
		msg.Header.Set(correlationHeader, cid)
	}

	reply, err := r.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("cluster: request %s: %w", subject, err)
	}

	var env envelope
	if err := json.Unmarshal(reply.Data, &env); err != nil {
		return nil, fmt.Errorf("cluster: decode reply from %s: %w", subject, err)
	}
	if env.Error != "" {
		if env.Infeasible {
			return nil, fmt.Errorf("%s: %w", env.Error, actor.ErrCannotHandle)
		}
		return nil, fmt.Errorf("cluster: remote %s: %s", r.name, env.Error)
	}
	return env.Result, nil
}
