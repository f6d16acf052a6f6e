package api

import (
	"context"
	"errors"
	"log/slog"
)

// Engine is the public navigation API of a single flow instance. An
// Engine owns exactly one flow's worth of navigation state;
// multi-flow composition is a caller concern.
type Engine interface {
	// Ready blocks until hydration has settled (or was never needed)
	// and the engine has reached StatusReady.
	Ready(ctx context.Context) error

	// Next advances the flow. stepData, if non-nil, is merged into
	// flowData and passed to the current step's OnComplete hook.
	Next(ctx context.Context, stepData map[string]any) error

	// Previous moves back one resolved step.
	Previous(ctx context.Context) error

	// Skip advances past the current step. The current step must be
	// Skippable; otherwise a precondition error is reported and state
	// is unchanged.
	Skip(ctx context.Context) error

	// GoToStep jumps directly to the given step.
	GoToStep(ctx context.Context, id StepID, stepData map[string]any) error

	// UpdateContext merges the patch into the flow context. Subscribers
	// are notified only when the merge yields a structurally different
	// value.
	UpdateContext(ctx context.Context, patch ContextPatch) error

	// UpdateChecklistItem toggles completion of a checklist item. stepID
	// defaults to the current step when empty.
	UpdateChecklistItem(ctx context.Context, itemID string, completed bool, stepID StepID) error

	// Reset discards all navigation state, replaces the operation
	// queue, clears persisted data (unless KeepPersisted) and returns
	// the engine to its initial configuration, optionally amended.
	Reset(ctx context.Context, opts ...ResetOption) error

	// State returns the current derived snapshot.
	State() EngineState

	// AddEventListener subscribes to an event. The returned function
	// unsubscribes; calling it more than once is harmless.
	AddEventListener(t EventType, fn Listener) (unsubscribe func())

	// Use installs a plugin. Installing two plugins with the same name
	// is an error.
	Use(p Plugin) error

	// Uninstall runs the named plugin's cleanup and removes it.
	Uninstall(name string) error

	// ErrorHistory returns the bounded diagnostic buffer of recent
	// errors, newest last.
	ErrorHistory() []*FlowError

	// Close tears the engine down: the operation queue stops accepting
	// work and plugin cleanups run. If the flow was in progress,
	// EventFlowAbandoned fires.
	Close() error
}

// Config describes how to construct an engine. Steps and FlowID are
// required.
type Config struct {
	FlowID      string
	FlowName    string
	FlowVersion string

	Steps []Step

	// InitialFlowData seeds the flow context.
	InitialFlowData map[string]any

	// Persistence, if set, is invoked at the lifecycle points described
	// on PersistenceAdapter.
	Persistence PersistenceAdapter

	// PersistRetry controls retries around Persist. Zero value means a
	// single attempt.
	PersistRetry RetryPolicy

	// Logger receives engine diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Plugins are installed during construction, before hydration.
	Plugins []Plugin

	// ErrorHistoryLimit caps the diagnostic error buffer. Defaults
	// to 25.
	ErrorHistoryLimit int
}

// Validate checks the config for structural problems: a missing flow id,
// no steps, duplicate or empty step ids, or a non-skippable step that
// declares a skip target.
func (c *Config) Validate() error {
	if c.FlowID == "" {
		return errors.New("flow id is required")
	}
	if len(c.Steps) == 0 {
		return errors.New("flow must have at least one step")
	}
	seen := make(map[StepID]struct{}, len(c.Steps))
	for i := range c.Steps {
		s := &c.Steps[i]
		if s.ID == "" {
			return errors.New("step id must not be empty")
		}
		if _, dup := seen[s.ID]; dup {
			return errors.New("duplicate step id: " + string(s.ID))
		}
		seen[s.ID] = struct{}{}
		if !s.Skippable && s.SkipTo != nil {
			return errors.New("step " + string(s.ID) + " declares a skip target but is not skippable")
		}
	}
	return nil
}

// ResetConfig collects the optional amendments applied by Reset.
type ResetConfig struct {
	Steps         []Step
	FlowData      map[string]any
	KeepPersisted bool
}

// ResetOption amends a Reset call.
type ResetOption func(*ResetConfig)

// WithSteps replaces the step set on reset.
func WithSteps(steps []Step) ResetOption {
	return func(c *ResetConfig) { c.Steps = steps }
}

// WithFlowData replaces the initial flow data on reset.
func WithFlowData(data map[string]any) ResetOption {
	return func(c *ResetConfig) { c.FlowData = data }
}

// KeepPersisted suppresses the Clear call that Reset normally issues.
func KeepPersisted() ResetOption {
	return func(c *ResetConfig) { c.KeepPersisted = true }
}

type engineCtxKey struct{}

// WithEngine attaches an engine to the context. The engine does this for
// every hook invocation so hooks can call back into the public API.
func WithEngine(ctx context.Context, e Engine) context.Context {
	return context.WithValue(ctx, engineCtxKey{}, e)
}

// EngineFromContext returns the engine attached by WithEngine, if any.
func EngineFromContext(ctx context.Context) (Engine, bool) {
	e, ok := ctx.Value(engineCtxKey{}).(Engine)
	return e, ok
}
