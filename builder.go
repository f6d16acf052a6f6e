package stepflow

import (
	"fmt"
	"log/slog"

	"github.com/petrijr/stepflow/pkg/api"
)

// FlowBuilder provides a fluent API for defining flows:
//
//	cfg := stepflow.NewFlow("onboarding").
//	    Step("welcome", stepflow.StepTypeInformation).
//	    Step("profile", stepflow.StepTypeForm).
//	        OnComplete(saveProfile).
//	    Step("finish", stepflow.StepTypeConfirm).
//	        NextTo(stepflow.Terminal()).
//	    Config()
//
//	eng, err := stepflow.NewEngine(cfg)
//
// Step-scoped methods (When, NextTo, OnComplete, ...) apply to the most
// recently added step.
type FlowBuilder struct {
	cfg api.Config
}

// NewFlow creates a new flow builder with the given flow id.
func NewFlow(flowID string) *FlowBuilder {
	if flowID == "" {
		panic("stepflow: flow id must not be empty")
	}
	return &FlowBuilder{
		cfg: api.Config{
			FlowID: flowID,
			Steps:  make([]api.Step, 0),
		},
	}
}

// Named sets the human-readable flow name.
func (b *FlowBuilder) Named(name string) *FlowBuilder {
	b.cfg.FlowName = name
	return b
}

// Version sets the flow version string.
func (b *FlowBuilder) Version(v string) *FlowBuilder {
	b.cfg.FlowVersion = v
	return b
}

// WithInitialData seeds the flow context.
func (b *FlowBuilder) WithInitialData(data map[string]any) *FlowBuilder {
	b.cfg.InitialFlowData = data
	return b
}

// WithPersistence sets the persistence adapter.
func (b *FlowBuilder) WithPersistence(adapter PersistenceAdapter) *FlowBuilder {
	b.cfg.Persistence = adapter
	return b
}

// WithRetry sets the persistence retry policy. See Retry for a fluent
// way to construct one.
func (b *FlowBuilder) WithRetry(policy RetryPolicy) *FlowBuilder {
	b.cfg.PersistRetry = policy
	return b
}

// WithLogger sets the engine logger.
func (b *FlowBuilder) WithLogger(log *slog.Logger) *FlowBuilder {
	b.cfg.Logger = log
	return b
}

// WithPlugins appends plugins to install during construction.
func (b *FlowBuilder) WithPlugins(plugins ...Plugin) *FlowBuilder {
	b.cfg.Plugins = append(b.cfg.Plugins, plugins...)
	return b
}

// Step appends a step to the flow.
func (b *FlowBuilder) Step(id StepID, t StepType) *FlowBuilder {
	if id == "" {
		panic("stepflow: step id must not be empty")
	}
	b.cfg.Steps = append(b.cfg.Steps, api.Step{ID: id, Type: t})
	return b
}

func (b *FlowBuilder) last() *api.Step {
	if len(b.cfg.Steps) == 0 {
		panic("stepflow: no step added yet")
	}
	return &b.cfg.Steps[len(b.cfg.Steps)-1]
}

// Payload sets presentation data on the last-added step.
func (b *FlowBuilder) Payload(payload map[string]any) *FlowBuilder {
	b.last().Payload = payload
	return b
}

// NextTo sets the forward target of the last-added step.
func (b *FlowBuilder) NextTo(t *NavigationTarget) *FlowBuilder {
	b.last().Next = t
	return b
}

// PrevTo sets the backward target of the last-added step.
func (b *FlowBuilder) PrevTo(t *NavigationTarget) *FlowBuilder {
	b.last().Previous = t
	return b
}

// Skippable marks the last-added step as skippable.
func (b *FlowBuilder) Skippable() *FlowBuilder {
	b.last().Skippable = true
	return b
}

// SkipsTo marks the last-added step skippable with an explicit skip
// target.
func (b *FlowBuilder) SkipsTo(t *NavigationTarget) *FlowBuilder {
	s := b.last()
	s.Skippable = true
	s.SkipTo = t
	return b
}

// When sets the eligibility condition of the last-added step.
func (b *FlowBuilder) When(cond ConditionFunc) *FlowBuilder {
	b.last().Condition = cond
	return b
}

// OnActive sets the activation hook of the last-added step.
func (b *FlowBuilder) OnActive(h ActiveHook) *FlowBuilder {
	b.last().OnActive = h
	return b
}

// OnComplete sets the completion hook of the last-added step.
func (b *FlowBuilder) OnComplete(h CompleteHook) *FlowBuilder {
	b.last().OnComplete = h
	return b
}

// Checklist attaches checklist configuration to the last-added step.
func (b *FlowBuilder) Checklist(cfg *ChecklistConfig) *FlowBuilder {
	if cfg == nil || len(cfg.Items) == 0 {
		panic(fmt.Sprintf("stepflow: step %q checklist has no items", b.last().ID))
	}
	b.last().Checklist = cfg
	return b
}

// Meta sets an arbitrary metadata key on the last-added step.
func (b *FlowBuilder) Meta(key string, value any) *FlowBuilder {
	s := b.last()
	if s.Meta == nil {
		s.Meta = make(map[string]any)
	}
	s.Meta[key] = value
	return b
}

// Config returns the accumulated configuration.
// Typically handed straight to NewEngine.
func (b *FlowBuilder) Config() Config {
	return b.cfg
}

// Build constructs an engine from the accumulated configuration.
func (b *FlowBuilder) Build() (Engine, error) {
	return NewEngine(b.cfg)
}
