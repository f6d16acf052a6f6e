package api

import (
	"context"
	"sync/atomic"
)

// Metrics collects simple counters for flow activity. It implements
// Plugin, and can be combined with LoggingPlugin via CompositePlugin.
type Metrics struct {
	flowsStarted   atomic.Int64
	flowsCompleted atomic.Int64
	flowsAbandoned atomic.Int64
	stepsActivated atomic.Int64
	stepsCompleted atomic.Int64
	stepsSkipped   atomic.Int64
	errors         atomic.Int64
	persistFails   atomic.Int64
}

// MetricsSnapshot is an immutable snapshot of Metrics.
type MetricsSnapshot struct {
	FlowsStarted   int64
	FlowsCompleted int64
	FlowsAbandoned int64
	FlowsInFlight  int64

	StepsActivated int64
	StepsCompleted int64
	StepsSkipped   int64

	Errors              int64
	PersistenceFailures int64
}

var _ Plugin = (*Metrics)(nil)

func (m *Metrics) Name() string { return "metrics" }

func (m *Metrics) Install(e Engine) (func(), error) {
	unsubs := []func(){
		e.AddEventListener(EventFlowStarted, func(context.Context, *Event) { m.flowsStarted.Add(1) }),
		e.AddEventListener(EventFlowCompleted, func(context.Context, *Event) { m.flowsCompleted.Add(1) }),
		e.AddEventListener(EventFlowAbandoned, func(context.Context, *Event) { m.flowsAbandoned.Add(1) }),
		e.AddEventListener(EventStepActive, func(context.Context, *Event) { m.stepsActivated.Add(1) }),
		e.AddEventListener(EventStepCompleted, func(context.Context, *Event) { m.stepsCompleted.Add(1) }),
		e.AddEventListener(EventError, func(context.Context, *Event) { m.errors.Add(1) }),
		e.AddEventListener(EventPersistenceFailure, func(context.Context, *Event) { m.persistFails.Add(1) }),
		e.AddEventListener(EventNavigationForward, func(_ context.Context, ev *Event) {
			if ev.Direction == DirectionSkip {
				m.stepsSkipped.Add(1)
			}
		}),
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}, nil
}

// Snapshot returns a snapshot of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	started := m.flowsStarted.Load()
	completed := m.flowsCompleted.Load()
	abandoned := m.flowsAbandoned.Load()

	return MetricsSnapshot{
		FlowsStarted:   started,
		FlowsCompleted: completed,
		FlowsAbandoned: abandoned,
		FlowsInFlight:  started - completed - abandoned,

		StepsActivated: m.stepsActivated.Load(),
		StepsCompleted: m.stepsCompleted.Load(),
		StepsSkipped:   m.stepsSkipped.Load(),

		Errors:              m.errors.Load(),
		PersistenceFailures: m.persistFails.Load(),
	}
}
