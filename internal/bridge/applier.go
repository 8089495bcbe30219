package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/1ureka/tangysync/internal/mcdf"
)

// Result is the outcome of applying one feature.
type Result struct {
	Feature Feature
	Binding string
	Applied bool
	Err     error // nil when applied or skipped
}

// Report lists one Result per feature present in the payload.
type Report []Result

// Err joins the errors of every failed feature.
func (r Report) Err() error {
	var errs []error
	for _, res := range r {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

func (r Report) String() string {
	var sb strings.Builder
	for i, res := range r {
		if i > 0 {
			sb.WriteString(", ")
		}
		switch {
		case res.Applied:
			fmt.Fprintf(&sb, "%s=ok(%s)", res.Feature, res.Binding)
		case res.Err != nil:
			fmt.Fprintf(&sb, "%s=failed", res.Feature)
		default:
			fmt.Fprintf(&sb, "%s=skipped", res.Feature)
		}
	}
	return sb.String()
}

// Applier applies payloads through negotiated capabilities.
type Applier struct {
	caps map[Feature]*Capability
}

// NewApplier collects capabilities by feature. Nil entries are ignored so the
// result of a failed Negotiate can be passed straight in.
func NewApplier(caps ...*Capability) *Applier {
	a := &Applier{caps: make(map[Feature]*Capability)}
	for _, c := range caps {
		if c != nil {
			a.caps[c.feature] = c
		}
	}
	return a
}

// Apply applies every non-empty field of p. A feature without capability is
// reported as skipped, not failed. One failure does not stop the rest.
func (a *Applier) Apply(ctx context.Context, p mcdf.Payload) Report {
	var report Report
	for _, f := range Features {
		arg := field(p, f)
		if arg == "" {
			continue
		}
		c := a.caps[f]
		res := Result{Feature: f, Binding: c.Binding()}
		if c.Available() {
			if err := c.Apply(ctx, arg); err != nil {
				res.Err = err
			} else {
				res.Applied = true
			}
		}
		report = append(report, res)
	}
	return report
}

func field(p mcdf.Payload, f Feature) string {
	switch f {
	case FeatureGlamourer:
		return p.GlamourerBase64
	case FeatureCustomizePlus:
		return p.CustomizePlusJSON
	case FeatureHeels:
		return p.HeelsJSON
	case FeatureHonorific:
		return p.HonorificJSON
	case FeaturePenumbra:
		return p.PenumbraCollection
	}
	return ""
}
