package config

import (
	"fmt"
	"strings"
)

// Pipeline describes the buses of a dispatch pipeline and the actors wired
// onto them. Constructing concrete actors from Kind strings is the caller's
// concern; this package only loads and validates the shape.
type Pipeline struct {
	// Service is the diagnostic name used in logs and metrics labels.
	Service string `yaml:"service" json:"service"`

	Buses []BusConfig `yaml:"buses" json:"buses"`
}

// BusConfig describes one bus, its mediator policy and its subscribers.
type BusConfig struct {
	Name     string         `yaml:"name" json:"name"`
	Mediator MediatorConfig `yaml:"mediator" json:"mediator"`
	Actors   []ActorConfig  `yaml:"actors" json:"actors"`
}

// MediatorConfig selects a winner-selection policy.
// Policy is one of "first", "min" or "max"; Field names the test-result
// field the numeric policies rank by (e.g. "cost", "priority").
type MediatorConfig struct {
	Policy string `yaml:"policy" json:"policy"`
	Field  string `yaml:"field,omitempty" json:"field,omitempty"`
}

// ActorConfig describes one actor subscription. Identifiers may be empty:
// such an actor lands in the wildcard bucket and is tested against every
// action on the bus.
type ActorConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Kind        string            `yaml:"kind" json:"kind"`
	Identifiers []string          `yaml:"identifiers,omitempty" json:"identifiers,omitempty"`
	Params      map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

var validPolicies = map[string]bool{"first": true, "min": true, "max": true}

// LoadPipeline loads and validates a pipeline file.
func LoadPipeline(path string) (*Pipeline, error) {
	var p Pipeline
	if err := LoadWithEnv(path, "COMUNICA", &p); err != nil {
		return nil, err
	}
	if err := Validate(&p, ValidatorFunc(validatePipeline)); err != nil {
		return nil, err
	}
	return &p, nil
}

func validatePipeline(config interface{}) error {
	p, ok := config.(*Pipeline)
	if !ok {
		return fmt.Errorf("expected *Pipeline, got %T", config)
	}
	if len(p.Buses) == 0 {
		return fmt.Errorf("pipeline declares no buses")
	}

	seenBus := make(map[string]bool)
	for i, b := range p.Buses {
		if b.Name == "" {
			return fmt.Errorf("bus %d has no name", i)
		}
		if seenBus[b.Name] {
			return fmt.Errorf("duplicate bus name %q", b.Name)
		}
		seenBus[b.Name] = true

		policy := b.Mediator.Policy
		if policy == "" {
			return fmt.Errorf("bus %q: mediator policy is required", b.Name)
		}
		if !validPolicies[policy] {
			return fmt.Errorf("bus %q: unknown mediator policy %q", b.Name, policy)
		}
		if (policy == "min" || policy == "max") && b.Mediator.Field == "" {
			return fmt.Errorf("bus %q: policy %q requires a field", b.Name, policy)
		}

		for j, a := range b.Actors {
			if a.Name == "" {
				return fmt.Errorf("bus %q: actor %d has no name", b.Name, j)
			}
			if a.Kind == "" {
				return fmt.Errorf("bus %q: actor %q has no kind", b.Name, a.Name)
			}
			for _, id := range a.Identifiers {
				if strings.TrimSpace(id) == "" {
					return fmt.Errorf("bus %q: actor %q has a blank identifier", b.Name, a.Name)
				}
			}
		}
	}
	return nil
}
