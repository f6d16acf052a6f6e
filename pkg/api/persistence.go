package api

import (
	"context"
	"time"
)

// LoadedData is what a persistence adapter returns from Load. Nil fields
// mean "nothing stored" for that part.
type LoadedData struct {
	FlowData      map[string]any
	CurrentStepID *StepID
}

// PersistenceAdapter is the caller-supplied storage contract. The engine
// invokes Load once during construction (gating Ready), Persist after
// each committed transition and context update, and Clear on explicit
// Reset. All calls happen inside the engine's operation queue; a Persist
// failure is reported but never rolls back in-memory state.
type PersistenceAdapter interface {
	Load(ctx context.Context) (*LoadedData, error)
	Persist(ctx context.Context, fc *Context, currentStepID *StepID) error
	Clear(ctx context.Context) error
}

// AdapterFuncs adapts three optional functions into a
// PersistenceAdapter. Nil functions are no-ops (Load returns nil data).
type AdapterFuncs struct {
	LoadFunc    func(ctx context.Context) (*LoadedData, error)
	PersistFunc func(ctx context.Context, fc *Context, currentStepID *StepID) error
	ClearFunc   func(ctx context.Context) error
}

var _ PersistenceAdapter = AdapterFuncs{}

func (a AdapterFuncs) Load(ctx context.Context) (*LoadedData, error) {
	if a.LoadFunc == nil {
		return nil, nil
	}
	return a.LoadFunc(ctx)
}

func (a AdapterFuncs) Persist(ctx context.Context, fc *Context, currentStepID *StepID) error {
	if a.PersistFunc == nil {
		return nil
	}
	return a.PersistFunc(ctx, fc, currentStepID)
}

func (a AdapterFuncs) Clear(ctx context.Context) error {
	if a.ClearFunc == nil {
		return nil
	}
	return a.ClearFunc(ctx)
}

// RetryPolicy controls how the persistence coordinator retries a failing
// Persist call. MaxAttempts includes the first attempt:
//
//	MaxAttempts = 1 => no retries (just the initial call)
//	MaxAttempts = 3 => initial call + up to 2 retries
type RetryPolicy struct {
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Zero means
	// retries happen immediately.
	InitialBackoff time.Duration

	// BackoffMultiplier grows the delay each attempt. Values <= 0
	// default to 2.0.
	BackoffMultiplier float64

	// MaxBackoff caps the delay. <= 0 means no cap.
	MaxBackoff time.Duration
}

// NextBackoff returns the delay to apply after the given delay, honoring
// the multiplier and cap.
func (p RetryPolicy) NextBackoff(current time.Duration) time.Duration {
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 2.0
	}
	next := time.Duration(float64(current) * mult)
	if p.MaxBackoff > 0 && next > p.MaxBackoff {
		return p.MaxBackoff
	}
	return next
}
