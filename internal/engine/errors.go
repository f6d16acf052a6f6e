package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/petrijr/stepflow/pkg/api"
)

const defaultHistoryLimit = 25

// errorHandler classifies failures into the engine's taxonomy, reports
// them on the event bus, and keeps a bounded history of recent errors
// with a redacted context snapshot for diagnostics.
type errorHandler struct {
	bus   *bus
	log   *slog.Logger
	limit int

	mu      sync.Mutex
	history []*api.FlowError
}

func newErrorHandler(b *bus, log *slog.Logger, limit int) *errorHandler {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &errorHandler{
		bus:   b,
		log:   log,
		limit: limit,
	}
}

// report builds a FlowError, records it, logs it, and fires EventError.
// It returns the error so callers can also surface it as a return value.
func (h *errorHandler) report(kind api.ErrorKind, op string, stepID api.StepID, err error, fc *api.Context) *api.FlowError {
	fe := h.record(kind, op, stepID, err, fc)
	h.bus.Emit(&api.Event{Type: api.EventError, Err: fe})
	return fe
}

// record stores and logs a FlowError without firing EventError. Used for
// persistence failures, which are reported through their own event.
func (h *errorHandler) record(kind api.ErrorKind, op string, stepID api.StepID, err error, fc *api.Context) *api.FlowError {
	fe := &api.FlowError{
		Kind:   kind,
		Op:     op,
		StepID: stepID,
		Err:    err,
		At:     time.Now(),
	}
	if fc != nil {
		fe.ContextSnapshot = api.RedactSnapshot(fc.FlowData)
	}

	h.mu.Lock()
	h.history = append(h.history, fe)
	if len(h.history) > h.limit {
		h.history = h.history[len(h.history)-h.limit:]
	}
	h.mu.Unlock()

	level := slog.LevelWarn
	if kind == api.KindFatal {
		level = slog.LevelError
	}
	h.log.Log(context.Background(), level, "flow error",
		slog.String("kind", string(kind)),
		slog.String("op", op),
		slog.String("step", string(stepID)),
		slog.Any("error", err),
	)

	return fe
}

// History returns a copy of the buffer, oldest first.
func (h *errorHandler) History() []*api.FlowError {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*api.FlowError, len(h.history))
	copy(out, h.history)
	return out
}

func (h *errorHandler) reset() {
	h.mu.Lock()
	h.history = nil
	h.mu.Unlock()
}
