// Package bridge resolves, once, how each appearance feature is applied.
//
// A feature may be reachable through several operation shapes. Negotiate
// probes the candidates in order and keeps the first that answers; later
// calls go straight to that binding and never fall back to another one.
package bridge

import (
	"context"
	"errors"
	"fmt"
)

// Feature names one applicable part of a payload.
type Feature string

const (
	FeatureGlamourer     Feature = "glamourer"
	FeatureCustomizePlus Feature = "customize+"
	FeatureHeels         Feature = "heels"
	FeatureHonorific     Feature = "honorific"
	FeaturePenumbra      Feature = "penumbra"
)

// Features lists every feature in the order they are applied.
var Features = []Feature{
	FeatureGlamourer,
	FeatureCustomizePlus,
	FeatureHeels,
	FeatureHonorific,
	FeaturePenumbra,
}

// ErrUnavailable is returned when no candidate binding answered its probe.
var ErrUnavailable = errors.New("feature unavailable")

// Binding is one candidate operation shape for a feature.
type Binding struct {
	Name   string
	Probe  func(ctx context.Context) error
	Invoke func(ctx context.Context, arg string) error
}

// Capability is the binding negotiated for a feature.
type Capability struct {
	feature Feature
	binding Binding
}

// Negotiate probes candidates in order and returns the first one whose probe
// succeeds. Bindings without a Probe are treated as always present.
func Negotiate(ctx context.Context, feature Feature, candidates ...Binding) (*Capability, error) {
	var errs []error
	for _, b := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if b.Invoke == nil {
			errs = append(errs, fmt.Errorf("%s: no invoke", b.Name))
			continue
		}
		if b.Probe != nil {
			if err := b.Probe(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
				continue
			}
		}
		return &Capability{feature: feature, binding: b}, nil
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s: no candidates", ErrUnavailable, feature)
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, feature, errors.Join(errs...))
}

// Available reports whether c holds a binding. A nil capability is unavailable.
func (c *Capability) Available() bool { return c != nil }

// Feature returns the negotiated feature.
func (c *Capability) Feature() Feature { return c.feature }

// Binding returns the name of the retained binding.
func (c *Capability) Binding() string {
	if c == nil {
		return ""
	}
	return c.binding.Name
}

// Apply invokes the retained binding.
func (c *Capability) Apply(ctx context.Context, arg string) error {
	if c == nil {
		return ErrUnavailable
	}
	if err := c.binding.Invoke(ctx, arg); err != nil {
		return fmt.Errorf("%s via %s: %w", c.feature, c.binding.Name, err)
	}
	return nil
}
