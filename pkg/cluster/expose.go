package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/mandel59/comunica/pkg/actor"
	"github.com/mandel59/comunica/pkg/core"
)

// Exposed serves one local actor on a subject pair until closed.
type Exposed struct {
	subject string
	subs    []*nats.Subscription
}

// Subject returns the base subject the actor is served on.
func (e *Exposed) Subject() string {
	return e.subject
}

// Close unsubscribes the actor's subjects.
func (e *Exposed) Close() error {
	var errs []error
	for _, sub := range e.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExposeConfig configures Expose.
type ExposeConfig struct {
	// Prefix is prepended to all subjects. Default: "comunica".
	Prefix string

	// Logger receives per-request diagnostics. Default: discard.
	Logger core.Logger
}

// Expose serves a local actor over NATS so that RemoteActor proxies in
// other processes can test and run it. Handlers run on NATS delivery
// goroutines; the actor must tolerate concurrent calls, which the
// capability contract already demands for Test.
func Expose[A, T, O any](nc *nats.Conn, a actor.Actor[A, T, O], cfg ExposeConfig) (*Exposed, error) {
	if nc == nil {
		return nil, fmt.Errorf("cluster: nats connection cannot be nil")
	}
	if a == nil {
		return nil, fmt.Errorf("cluster: actor cannot be nil")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "comunica"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = core.NopLogger()
	}
	subject := prefix + ".actor." + a.Name()

	testSub, err := nc.Subscribe(subject+".test", func(msg *nats.Msg) {
		serve(msg, logger, func(ctx context.Context, action A) (any, error) {
			return a.Test(ctx, action)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("cluster: subscribe %s.test: %w", subject, err)
	}

	runSub, err := nc.Subscribe(subject+".run", func(msg *nats.Msg) {
		serve(msg, logger, func(ctx context.Context, action A) (any, error) {
			return a.Run(ctx, action)
		})
	})
	if err != nil {
		_ = testSub.Unsubscribe()
		return nil, fmt.Errorf("cluster: subscribe %s.run: %w", subject, err)
	}

	logger.Infof("cluster: exposed actor %s on %s.{test,run}", a.Name(), subject)
	return &Exposed{subject: subject, subs: []*nats.Subscription{testSub, runSub}}, nil
}

func serve[A any](msg *nats.Msg, logger core.Logger, handle func(ctx context.Context, action A) (any, error)) {
	ctx := context.Background()
	if cid := msg.Header.Get(correlationHeader); cid != "" {
		ctx = core.WithCorrelationID(ctx, cid)
	}

	var action A
	if err := json.Unmarshal(msg.Data, &action); err != nil {
		respond(msg, logger, envelope{Error: fmt.Sprintf("decode action: %v", err)})
		return
	}

	value, err := handle(ctx, action)
	if err != nil {
		respond(msg, logger, envelope{
			Error:      err.Error(),
			Infeasible: errors.Is(err, actor.ErrCannotHandle),
		})
		return
	}

	result, err := json.Marshal(value)
	if err != nil {
		respond(msg, logger, envelope{Error: fmt.Sprintf("encode result: %v", err)})
		return
	}
	respond(msg, logger, envelope{Result: result})
}

func respond(msg *nats.Msg, logger core.Logger, env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logger.Errorf("cluster: encode envelope for %s: %v", msg.Subject, err)
		return
	}
	if err := msg.Respond(data); err != nil {
		logger.Errorf("cluster: respond on %s: %v", msg.Subject, err)
	}
}
