// Package fallback implements the ordered-chain executor used for every
// external capability call. A chain tries each named provider once, in
// order, and returns the first success; when every provider fails it
// returns the capability's degraded default instead of an error, so a live
// broadcast never stalls on a provider outage.
package fallback

import (
	"context"
	"fmt"
	"log"
)

// DegradedProviderName is reported as the provider of a degraded result.
const DegradedProviderName = "degraded"

// Provider is one named entry in a chain. Invoke makes at most one attempt;
// retry policy belongs to the chain, not the provider.
type Provider[Req, Res any] struct {
	Name   string
	Invoke func(ctx context.Context, req Req) (Res, error)
}

// Attempt records one failed provider call.
type Attempt struct {
	Provider string
	Err      error
}

func (a Attempt) Error() string {
	return fmt.Sprintf("provider %s: %v", a.Provider, a.Err)
}

func (a Attempt) Unwrap() error { return a.Err }

// Result carries the chain outcome. Degraded is true when every provider
// failed (or the stop predicate halted the chain) and Value holds the
// capability's degraded default.
type Result[Res any] struct {
	Value    Res
	Provider string
	Degraded bool
	Attempts []Attempt
}

// Option configures an Invoker.
type Option[Req, Res any] func(*Invoker[Req, Res])

// WithStopPredicate installs the error-classification hook. When the
// predicate reports true for a provider error, no other provider could fix
// the input either and the chain halts early; by default every error just
// advances to the next provider.
func WithStopPredicate[Req, Res any](stop func(error) bool) Option[Req, Res] {
	return func(inv *Invoker[Req, Res]) {
		inv.stop = stop
	}
}

// Invoker executes an immutable ordered provider chain for one capability.
type Invoker[Req, Res any] struct {
	capability string
	providers  []Provider[Req, Res]
	degraded   func(Req) Res
	stop       func(error) bool
}

// NewInvoker builds a chain. The degraded function defines the non-error
// output returned when the chain is exhausted and must not be nil.
func NewInvoker[Req, Res any](capability string, degraded func(Req) Res, providers []Provider[Req, Res], opts ...Option[Req, Res]) *Invoker[Req, Res] {
	inv := &Invoker[Req, Res]{
		capability: capability,
		providers:  providers,
		degraded:   degraded,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Run tries each provider in order, once each, and returns the first
// success along with the provider's name. Timeouts are ordinary failures.
// Run never returns an error: exhaustion yields the degraded default.
func (inv *Invoker[Req, Res]) Run(ctx context.Context, req Req) Result[Res] {
	var attempts []Attempt
	for _, p := range inv.providers {
		res, err := p.Invoke(ctx, req)
		if err == nil {
			return Result[Res]{Value: res, Provider: p.Name, Attempts: attempts}
		}
		attempts = append(attempts, Attempt{Provider: p.Name, Err: err})
		log.Printf("%s provider failed: provider=%s err=%v", inv.capability, p.Name, err)
		if inv.stop != nil && inv.stop(err) {
			log.Printf("%s chain halted: provider=%s err=%v", inv.capability, p.Name, err)
			break
		}
	}
	return Result[Res]{
		Value:    inv.degraded(req),
		Provider: DegradedProviderName,
		Degraded: true,
		Attempts: attempts,
	}
}

// Capability returns the chain's capability name.
func (inv *Invoker[Req, Res]) Capability() string { return inv.capability }

// Len returns the number of providers in the chain.
func (inv *Invoker[Req, Res]) Len() int { return len(inv.providers) }

// ProviderNames returns the ordered provider names, for logging and
// diagnostics.
func (inv *Invoker[Req, Res]) ProviderNames() []string {
	names := make([]string, len(inv.providers))
	for i, p := range inv.providers {
		names[i] = p.Name
	}
	return names
}
