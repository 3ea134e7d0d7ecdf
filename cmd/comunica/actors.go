package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mandel59/comunica/pkg/actor"
	"github.com/mandel59/comunica/pkg/config"
)

// arithAction is the demo pipeline's action: an aggregate operation over a
// list of values, routed by operation name.
type arithAction struct {
	Op     string    `json:"op"`
	Values []float64 `json:"values"`
}

func (a arithAction) ActionID() string { return a.Op }

// arithEstimate is the test result the mediator ranks.
type arithEstimate struct {
	Cost     float64 `json:"cost"`
	Priority float64 `json:"priority"`
}

func buildActor(cfg config.ActorConfig) (actor.Actor[arithAction, arithEstimate, float64], error) {
	switch cfg.Kind {
	case "arith":
		a := &arithActor{name: cfg.Name, ops: cfg.Identifiers}
		if raw, ok := cfg.Params["cost"]; ok {
			cost, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("actor %q: invalid cost %q", cfg.Name, raw)
			}
			a.cost = cost
		}
		return a, nil
	case "scan":
		return &scanActor{name: cfg.Name}, nil
	default:
		return nil, fmt.Errorf("unknown actor kind %q", cfg.Kind)
	}
}

// arithActor evaluates the aggregate operations it is configured for.
type arithActor struct {
	name string
	ops  []string
	cost float64
}

func (a *arithActor) Name() string { return a.name }

func (a *arithActor) Identifiers() actor.Identifier {
	return actor.IdentifierSetOf(a.ops...)
}

func (a *arithActor) Test(ctx context.Context, action arithAction) (arithEstimate, error) {
	for _, op := range a.ops {
		if op == action.Op {
			return arithEstimate{Cost: a.cost}, nil
		}
	}
	return arithEstimate{}, fmt.Errorf("%s handles %v, not %q: %w", a.name, a.ops, action.Op, actor.ErrCannotHandle)
}

func (a *arithActor) Run(ctx context.Context, action arithAction) (float64, error) {
	return aggregate(action.Op, action.Values)
}

// scanActor is the wildcard fallback: it claims every operation at a high
// cost, so it only wins when no dedicated actor is registered.
type scanActor struct {
	name string
}

func (a *scanActor) Name() string { return a.name }

func (a *scanActor) Test(ctx context.Context, action arithAction) (arithEstimate, error) {
	if !knownOp(action.Op) {
		return arithEstimate{}, fmt.Errorf("%s: unsupported operation %q: %w", a.name, action.Op, actor.ErrCannotHandle)
	}
	return arithEstimate{Cost: 1000}, nil
}

func (a *scanActor) Run(ctx context.Context, action arithAction) (float64, error) {
	return aggregate(action.Op, action.Values)
}

func knownOp(op string) bool {
	switch op {
	case "sum", "avg", "count", "min", "max":
		return true
	}
	return false
}

func aggregate(op string, values []float64) (float64, error) {
	if len(values) == 0 && op != "count" && op != "sum" {
		return 0, fmt.Errorf("operation %q needs at least one value", op)
	}
	switch op {
	case "count":
		return float64(len(values)), nil
	case "sum", "avg":
		var total float64
		for _, v := range values {
			total += v
		}
		if op == "avg" {
			return total / float64(len(values)), nil
		}
		return total, nil
	case "min", "max":
		best := values[0]
		for _, v := range values[1:] {
			if (op == "min" && v < best) || (op == "max" && v > best) {
				best = v
			}
		}
		return best, nil
	default:
		return 0, fmt.Errorf("unsupported operation %q", op)
	}
}
