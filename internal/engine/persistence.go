package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/petrijr/stepflow/internal/queue"
	"github.com/petrijr/stepflow/pkg/api"
)

// coordinator invokes the caller-supplied persistence adapter at the
// engine's lifecycle points. Persist calls are retried per the
// configured policy; a final failure is reported through
// EventPersistenceFailure and never rolls back in-memory state.
type coordinator struct {
	adapter api.PersistenceAdapter
	retry   api.RetryPolicy
	bus     *bus
	errs    *errorHandler
	log     *slog.Logger
}

func newCoordinator(adapter api.PersistenceAdapter, retry api.RetryPolicy, b *bus, errs *errorHandler, log *slog.Logger) *coordinator {
	return &coordinator{
		adapter: adapter,
		retry:   retry,
		bus:     b,
		errs:    errs,
		log:     log,
	}
}

func (c *coordinator) enabled() bool { return c.adapter != nil }

// load performs the hydration read. A single attempt: hydration gates
// Ready, so retry loops here would delay startup for everyone.
func (c *coordinator) load(ctx context.Context) (*api.LoadedData, error) {
	if c.adapter == nil {
		return nil, nil
	}
	return c.adapter.Load(ctx)
}

// persistOp builds the queue operation that writes the given snapshot.
// The snapshot is taken by the caller before enqueueing, so a later
// context mutation cannot leak into an in-flight persist.
func (c *coordinator) persistOp(fc *api.Context, currentStepID *api.StepID) queue.Operation {
	return func(ctx context.Context) (any, error) {
		err := c.persistWithRetry(ctx, fc, currentStepID)
		if err != nil {
			fe := c.errs.record(api.KindPersistence, "persist", stepIDOrEmpty(currentStepID), err, fc)
			c.bus.Emit(&api.Event{Type: api.EventPersistenceFailure, Err: fe})
			// Best-effort: the queue operation itself succeeds so queue
			// health and subsequent navigation are unaffected.
			return nil, nil
		}
		c.bus.Emit(&api.Event{Type: api.EventPersistenceSuccess})
		return nil, nil
	}
}

func (c *coordinator) persistWithRetry(ctx context.Context, fc *api.Context, currentStepID *api.StepID) error {
	maxAttempts := c.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := c.retry.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = c.adapter.Persist(ctx, fc, currentStepID)
		if lastErr == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		c.log.Debug("persist attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Any("error", lastErr),
		)

		if backoff > 0 {
			delay := backoff
			if c.retry.MaxBackoff > 0 && delay > c.retry.MaxBackoff {
				delay = c.retry.MaxBackoff
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			backoff = c.retry.NextBackoff(backoff)
		}
	}
	return lastErr
}

// clear drops persisted data. Failures are reported the same way as
// persist failures.
func (c *coordinator) clear(ctx context.Context) {
	if c.adapter == nil {
		return
	}
	if err := c.adapter.Clear(ctx); err != nil {
		fe := c.errs.record(api.KindPersistence, "clear", "", err, nil)
		c.bus.Emit(&api.Event{Type: api.EventPersistenceFailure, Err: fe})
	}
}

func stepIDOrEmpty(id *api.StepID) api.StepID {
	if id == nil {
		return ""
	}
	return *id
}
