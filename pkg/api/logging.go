package api

import (
	"context"
	"log/slog"
)

// LoggingPlugin writes structured logs for flow and step lifecycle
// events using log/slog.
type LoggingPlugin struct {
	Logger *slog.Logger
}

var _ Plugin = (*LoggingPlugin)(nil)

// NewLoggingPlugin creates a Plugin that logs engine events using the
// provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingPlugin(logger *slog.Logger) *LoggingPlugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPlugin{Logger: logger}
}

func (p *LoggingPlugin) Name() string { return "logging" }

func (p *LoggingPlugin) Install(e Engine) (func(), error) {
	log := p.Logger
	st := e.State()
	attrs := func(ev *Event) []any {
		out := []any{
			slog.String("flow", st.FlowID),
		}
		if ev.From != nil {
			out = append(out, slog.String("from", string(ev.From.ID)))
		}
		if ev.To != nil {
			out = append(out, slog.String("to", string(ev.To.ID)))
		}
		return out
	}

	unsubs := []func(){
		e.AddEventListener(EventFlowStarted, func(_ context.Context, ev *Event) {
			log.Info("flow_started", attrs(ev)...)
		}),
		e.AddEventListener(EventFlowCompleted, func(_ context.Context, ev *Event) {
			log.Info("flow_completed", attrs(ev)...)
		}),
		e.AddEventListener(EventFlowAbandoned, func(_ context.Context, ev *Event) {
			log.Info("flow_abandoned", attrs(ev)...)
		}),
		e.AddEventListener(EventStepActive, func(_ context.Context, ev *Event) {
			log.Debug("step_active", attrs(ev)...)
		}),
		e.AddEventListener(EventStepCompleted, func(_ context.Context, ev *Event) {
			log.Debug("step_completed", attrs(ev)...)
		}),
		e.AddEventListener(EventChecklistItemToggled, func(_ context.Context, ev *Event) {
			log.Debug("checklist_item_toggled",
				slog.String("flow", st.FlowID),
				slog.String("item", ev.ItemID),
				slog.Bool("completed", ev.ItemCompleted),
			)
		}),
		e.AddEventListener(EventPersistenceFailure, func(_ context.Context, ev *Event) {
			log.Error("persistence_failure",
				slog.String("flow", st.FlowID),
				slog.Any("error", ev.Err),
			)
		}),
		e.AddEventListener(EventError, func(_ context.Context, ev *Event) {
			log.Warn("flow_error",
				slog.String("flow", st.FlowID),
				slog.Any("error", ev.Err),
			)
		}),
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}, nil
}
