package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/stepflow/internal/queue"
	"github.com/petrijr/stepflow/pkg/api"
)

// Operation queue priorities. Navigation outranks persistence so a slow
// persist can never delay the next transition; hydration uses the
// urgent lane.
const (
	prioNavigation = 10
	prioPersist    = 0
)

// engineImpl is the composition root: it owns the flow context, wires
// the resolver, bus, operation queue, error handler, checklist manager
// and persistence coordinator, and implements the public api.Engine.
//
// All mutations run as operations on a single-flight queue, which gives
// every navigation call a serializable view of the context. e.mu guards
// the mutable fields between operations and readers.
type engineImpl struct {
	cfg       api.Config
	log       *slog.Logger
	sessionID string

	mu      sync.Mutex
	res     *resolver
	fc      *api.Context
	curIdx  int // -1 when completed or not yet ready
	status  api.FlowStatus
	lastErr *api.FlowError
	closed  bool
	started bool
	ops     *queue.Queue

	loading   atomic.Int32
	hydrating atomic.Bool

	bus   *bus
	errs  *errorHandler
	coord *coordinator
	check *checklistManager

	readyOnce sync.Once
	readyCh   chan struct{}

	pluginMu sync.Mutex
	plugins  map[string]func()
	order    []string
}

var _ api.Engine = (*engineImpl)(nil)

// New constructs an engine, installs configured plugins, and kicks off
// hydration. The engine is not ready until Ready returns.
func New(cfg api.Config) (api.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	sessionID := uuid.NewString()
	log = log.With(
		slog.String("flow", cfg.FlowID),
		slog.String("session", sessionID),
	)

	steps := make([]api.Step, len(cfg.Steps))
	copy(steps, cfg.Steps)

	e := &engineImpl{
		cfg:       cfg,
		log:       log,
		sessionID: sessionID,
		res:       newResolver(steps),
		fc:        api.NewContext(cfg.InitialFlowData),
		curIdx:    -1,
		status:    api.StatusNotReady,
		bus:       newBus(),
		readyCh:   make(chan struct{}),
		plugins:   make(map[string]func()),
	}
	e.errs = newErrorHandler(e.bus, log, cfg.ErrorHistoryLimit)
	e.coord = newCoordinator(cfg.Persistence, cfg.PersistRetry, e.bus, e.errs, log)
	e.check = &checklistManager{res: e.res}
	e.ops = queue.New()

	for _, p := range cfg.Plugins {
		if err := e.Use(p); err != nil {
			e.ops.Close()
			return nil, err
		}
	}

	e.hydrating.Store(e.coord.enabled())
	e.ops.EnqueueUrgent(e.hydrateOp(e.ops))

	return e, nil
}

// SessionID identifies this engine instance in logs and adapters.
func (e *engineImpl) SessionID() string { return e.sessionID }

func (e *engineImpl) Ready(ctx context.Context) error {
	select {
	case <-e.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *engineImpl) signalReady() {
	e.readyOnce.Do(func() { close(e.readyCh) })
}

// hydrateOp loads persisted state (if an adapter is configured), picks
// the initial step, and activates it. A failing load is reported through
// EventPersistenceFailure and the engine proceeds with its initial
// configuration; hydration is best-effort by design.
func (e *engineImpl) hydrateOp(q *queue.Queue) queue.Operation {
	return func(ctx context.Context) (any, error) {
		loaded, err := e.coord.load(ctx)
		if err != nil {
			fe := e.errs.record(api.KindPersistence, "load", "", err, nil)
			e.bus.Emit(&api.Event{Type: api.EventPersistenceFailure, Err: fe})
			loaded = nil
		}

		e.mu.Lock()
		if e.ops != q {
			// Reset got here first; it has already signalled readiness.
			e.mu.Unlock()
			return nil, nil
		}
		if loaded != nil && len(loaded.FlowData) > 0 {
			api.ContextPatch{FlowData: loaded.FlowData}.Apply(e.fc)
		}

		idx := -1
		if loaded != nil && loaded.CurrentStepID != nil {
			if i, ok := e.res.index[*loaded.CurrentStepID]; ok && e.res.steps[i].Eligible(e.fc) {
				idx = i
			}
		}
		if idx < 0 {
			idx = e.res.initialIndex(e.fc)
		}

		e.hydrating.Store(false)
		now := time.Now()
		var cur *api.Step
		if idx < 0 {
			e.curIdx = -1
			e.status = api.StatusCompleted
		} else {
			e.curIdx = idx
			e.status = api.StatusReady
			e.started = true
			cur = &e.res.steps[idx]
			if _, seen := e.fc.Internal.StepStartTimes[cur.ID]; !seen {
				e.fc.Internal.StepStartTimes[cur.ID] = now
			}
		}
		e.mu.Unlock()

		e.signalReady()

		if cur != nil {
			st := e.State()
			e.bus.Emit(&api.Event{Type: api.EventFlowStarted, State: &st})
			e.activate(ctx, cur, api.DirectionForward)
		}
		e.emitStateChange()
		return nil, nil
	}
}

// Navigation API

func (e *engineImpl) Next(ctx context.Context, stepData map[string]any) error {
	return e.submitNav(ctx, navRequest{op: "next", dir: api.DirectionForward, stepData: stepData})
}

func (e *engineImpl) Previous(ctx context.Context) error {
	return e.submitNav(ctx, navRequest{op: "previous", dir: api.DirectionBackward})
}

func (e *engineImpl) Skip(ctx context.Context) error {
	return e.submitNav(ctx, navRequest{op: "skip", dir: api.DirectionSkip})
}

func (e *engineImpl) GoToStep(ctx context.Context, id api.StepID, stepData map[string]any) error {
	return e.submitNav(ctx, navRequest{op: "goToStep", dir: api.DirectionJump, target: &id, stepData: stepData})
}

type navRequest struct {
	op       string
	dir      api.Direction
	target   *api.StepID
	stepData map[string]any
}

// submit runs op through the operation queue. A context marked by
// markEngineOp identifies a call made from inside a hook or a listener
// dispatch; those are queued and return immediately so a re-entrant
// caller cannot deadlock the single-flight worker. Every other caller
// waits for its ticket.
func (e *engineImpl) submit(ctx context.Context, op queue.Operation, priority int) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return api.ErrEngineClosed
	}
	q := e.ops
	e.mu.Unlock()

	t := q.Enqueue(op, priority)
	if isEngineOp(ctx) {
		return nil
	}
	_, err := t.Wait(ctx)
	if errors.Is(err, queue.ErrClosed) {
		return e.closedErr()
	}
	return err
}

// closedErr distinguishes why a queued operation was rejected: Close
// shut the engine down, or Reset replaced the queue out from under it.
func (e *engineImpl) closedErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return api.ErrEngineClosed
	}
	return api.ErrSuperseded
}

func (e *engineImpl) submitNav(ctx context.Context, req navRequest) error {
	q := e.currentQueue()
	return e.submit(ctx, e.navOp(q, req), prioNavigation)
}

// navOp performs one attempted transition: resolve a candidate, run the
// cancelable interception, then commit. Precondition and resolution
// failures are reported and leave state untouched.
func (e *engineImpl) navOp(q *queue.Queue, req navRequest) queue.Operation {
	return func(ctx context.Context) (any, error) {
		e.mu.Lock()
		if e.ops != q || e.closed {
			e.mu.Unlock()
			return nil, e.closedErr()
		}
		switch e.status {
		case api.StatusNotReady:
			e.mu.Unlock()
			return nil, e.errs.report(api.KindPrecondition, req.op, "", errors.New("engine not ready"), nil)
		case api.StatusErrored:
			e.mu.Unlock()
			return nil, e.errs.report(api.KindPrecondition, req.op, "", api.ErrEngineErrored, nil)
		case api.StatusCompleted:
			e.mu.Unlock()
			return nil, e.errs.report(api.KindPrecondition, req.op, "", errors.New("flow already completed"), nil)
		}
		if e.curIdx < 0 || e.curIdx >= len(e.res.steps) {
			err := fmt.Errorf("current step index %d out of range", e.curIdx)
			e.failFatalLocked(req.op, err)
			e.mu.Unlock()
			e.emitStateChange()
			return nil, e.errs.report(api.KindFatal, req.op, "", err, nil)
		}
		from := &e.res.steps[e.curIdx]
		snap := e.fc.Clone()
		e.mu.Unlock()

		var candidate *api.StepID
		var err error
		switch req.op {
		case "skip":
			if !from.Skippable {
				return nil, e.errs.report(api.KindPrecondition, "skip", from.ID, errors.New("step is not skippable"), snap)
			}
			candidate, err = e.res.resolveTarget(from, api.DirectionSkip, snap)

		case "goToStep":
			target, ok := e.res.step(*req.target)
			if !ok {
				return nil, e.errs.report(api.KindPrecondition, "goToStep", *req.target, api.ErrStepNotFound, snap)
			}
			if !target.Eligible(snap) {
				return nil, e.errs.report(api.KindPrecondition, "goToStep", *req.target, errors.New("step is not eligible under current context"), snap)
			}
			candidate = req.target

		default:
			candidate, err = e.res.resolveTarget(from, req.dir, snap)
		}
		if err != nil {
			// The in-flight transition is aborted; the flow stalls on
			// the current step instead of crashing.
			return nil, e.errs.report(api.KindResolution, req.op, from.ID, err, snap)
		}

		if candidate == nil {
			if req.dir == api.DirectionBackward {
				return nil, e.errs.report(api.KindPrecondition, req.op, from.ID, errors.New("no step in that direction"), snap)
			}
			return nil, e.completeFlow(ctx, q, from, req)
		}

		to, ok := e.res.step(*candidate)
		if !ok {
			return nil, e.errs.report(api.KindResolution, req.op, from.ID, fmt.Errorf("resolved target %q: %w", *candidate, api.ErrStepNotFound), snap)
		}

		// Before-navigation interception: one cancelable event per
		// attempt. Redirection replaces the target in place; the event
		// is not fired again for the substituted step.
		ev, ctrl := api.NewBeforeStepChange(from, to, req.dir)
		e.bus.Emit(ev)
		ctrl.Close()
		if ctrl.Canceled() {
			return nil, nil
		}
		if rt := ctrl.RedirectTarget(); rt != nil {
			rstep, ok := e.res.step(*rt)
			if !ok {
				return nil, e.errs.report(api.KindResolution, req.op, from.ID, fmt.Errorf("redirect target %q: %w", *rt, api.ErrStepNotFound), snap)
			}
			to = rstep
		}

		return nil, e.commitTransition(ctx, q, from, to, req)
	}
}

// commitTransition runs the completion hook, applies the mutation, and
// activates the target step. Side-effect failures are reported but do
// not abort the transition.
func (e *engineImpl) commitTransition(ctx context.Context, q *queue.Queue, from, to *api.Step, req navRequest) error {
	e.mu.Lock()
	if e.ops != q {
		e.mu.Unlock()
		return e.closedErr()
	}
	e.status = api.StatusNavigating
	e.mu.Unlock()

	forward := req.dir == api.DirectionForward
	if forward && from.OnComplete != nil {
		hookCtx := api.WithEngine(markEngineOp(ctx), e)
		if err := from.OnComplete(hookCtx, req.stepData, e.snapshotContext()); err != nil {
			e.errs.report(api.KindSideEffect, "onStepComplete", from.ID, err, nil)
		}
	}

	now := time.Now()
	e.mu.Lock()
	if e.ops != q {
		e.mu.Unlock()
		return e.closedErr()
	}
	if len(req.stepData) > 0 {
		api.ContextPatch{FlowData: req.stepData}.Apply(e.fc)
	}
	if forward {
		if _, done := e.fc.Internal.CompletedSteps[from.ID]; !done {
			e.fc.Internal.CompletedSteps[from.ID] = now
		}
	}
	e.curIdx = e.res.index[to.ID]
	if _, seen := e.fc.Internal.StepStartTimes[to.ID]; !seen {
		e.fc.Internal.StepStartTimes[to.ID] = now
	}
	e.status = api.StatusReady
	persistFC := e.fc.Clone()
	e.mu.Unlock()

	if forward {
		e.bus.Emit(&api.Event{Type: api.EventStepCompleted, From: from, StepData: req.stepData})
	}
	e.emitDirection(from, to, req.dir)
	e.activate(ctx, to, req.dir)
	e.emitStateChange()
	e.enqueuePersist(q, persistFC, &to.ID)
	return nil
}

// completeFlow commits the terminal transition: forward resolution
// yielded no target, so the flow ends.
func (e *engineImpl) completeFlow(ctx context.Context, q *queue.Queue, from *api.Step, req navRequest) error {
	forward := req.dir == api.DirectionForward
	if forward && from.OnComplete != nil {
		hookCtx := api.WithEngine(markEngineOp(ctx), e)
		if err := from.OnComplete(hookCtx, req.stepData, e.snapshotContext()); err != nil {
			e.errs.report(api.KindSideEffect, "onStepComplete", from.ID, err, nil)
		}
	}

	now := time.Now()
	e.mu.Lock()
	if e.ops != q {
		e.mu.Unlock()
		return e.closedErr()
	}
	if len(req.stepData) > 0 {
		api.ContextPatch{FlowData: req.stepData}.Apply(e.fc)
	}
	if _, done := e.fc.Internal.CompletedSteps[from.ID]; !done {
		e.fc.Internal.CompletedSteps[from.ID] = now
	}
	e.curIdx = -1
	e.status = api.StatusCompleted
	persistFC := e.fc.Clone()
	e.mu.Unlock()

	if forward {
		e.bus.Emit(&api.Event{Type: api.EventStepCompleted, From: from, StepData: req.stepData})
	}
	e.emitDirection(from, nil, req.dir)
	st := e.State()
	e.bus.Emit(&api.Event{Type: api.EventFlowCompleted, State: &st})
	e.emitStateChange()
	e.enqueuePersist(q, persistFC, nil)
	return nil
}

// activate runs the step's OnActive hook and fires EventStepActive.
func (e *engineImpl) activate(ctx context.Context, step *api.Step, dir api.Direction) {
	if step.OnActive != nil {
		hookCtx := api.WithEngine(markEngineOp(ctx), e)
		if err := step.OnActive(hookCtx, e.snapshotContext()); err != nil {
			e.errs.report(api.KindSideEffect, "onStepActive", step.ID, err, nil)
		}
	}
	e.bus.Emit(&api.Event{Type: api.EventStepActive, To: step, Direction: dir})
}

func (e *engineImpl) emitDirection(from, to *api.Step, dir api.Direction) {
	t := api.EventNavigationForward
	if dir == api.DirectionBackward {
		t = api.EventNavigationBack
	} else if dir == api.DirectionJump && to != nil {
		if e.res.index[to.ID] < e.res.index[from.ID] {
			t = api.EventNavigationBack
		}
	}
	e.bus.Emit(&api.Event{Type: t, From: from, To: to, Direction: dir})
}

// Context API

func (e *engineImpl) UpdateContext(ctx context.Context, patch api.ContextPatch) error {
	if patch.IsZero() {
		return nil
	}
	q := e.currentQueue()
	return e.submit(ctx, func(ctx context.Context) (any, error) {
		e.mu.Lock()
		if e.ops != q {
			e.mu.Unlock()
			return nil, e.closedErr()
		}
		changed := patch.Apply(e.fc)
		var persistFC *api.Context
		var curID *api.StepID
		if changed {
			persistFC = e.fc.Clone()
			curID = e.currentIDLocked()
		}
		e.mu.Unlock()

		// Structural no-op: subscribers are not notified and nothing is
		// re-persisted.
		if !changed {
			return nil, nil
		}
		e.emitStateChange()
		e.enqueuePersist(q, persistFC, curID)
		return nil, nil
	}, prioNavigation)
}

func (e *engineImpl) UpdateChecklistItem(ctx context.Context, itemID string, completed bool, stepID api.StepID) error {
	q := e.currentQueue()
	return e.submit(ctx, func(ctx context.Context) (any, error) {
		e.mu.Lock()
		if e.ops != q {
			e.mu.Unlock()
			return nil, e.closedErr()
		}
		sid := stepID
		if sid == "" {
			if e.curIdx >= 0 {
				sid = e.res.steps[e.curIdx].ID
			}
		}
		step, err := e.check.validate(sid, itemID)
		if err != nil {
			snap := e.fc.Clone()
			e.mu.Unlock()
			return nil, e.errs.report(api.KindPrecondition, "updateChecklistItem", sid, err, snap)
		}
		res := e.check.apply(e.fc, step, itemID, completed)
		var persistFC *api.Context
		var curID *api.StepID
		if res.changed {
			persistFC = e.fc.Clone()
			curID = e.currentIDLocked()
		}
		e.mu.Unlock()

		if !res.changed {
			return nil, nil
		}

		e.bus.Emit(&api.Event{
			Type:           api.EventChecklistItemToggled,
			To:             res.step,
			ItemID:         res.itemID,
			ItemCompleted:  res.completed,
			CompletedCount: res.completedCount,
		})
		if res.crossed {
			e.bus.Emit(&api.Event{
				Type:              api.EventChecklistProgressChanged,
				To:                res.step,
				CompletedCount:    res.completedCount,
				ChecklistComplete: res.complete,
			})
		}
		e.emitStateChange()
		e.enqueuePersist(q, persistFC, curID)
		return nil, nil
	}, prioNavigation)
}

// Reset discards all navigation state and replaces the operation queue.
// It runs outside the queue on purpose: a stalled hook must not be able
// to block the only recovery path.
func (e *engineImpl) Reset(ctx context.Context, opts ...api.ResetOption) error {
	rc := api.ResetConfig{}
	for _, o := range opts {
		o(&rc)
	}

	if rc.Steps != nil {
		probe := api.Config{FlowID: e.cfg.FlowID, Steps: rc.Steps}
		if err := probe.Validate(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return api.ErrEngineClosed
	}
	abandoned := e.started && e.status != api.StatusCompleted
	old := e.ops
	e.ops = queue.New()
	q := e.ops

	if rc.Steps != nil {
		steps := make([]api.Step, len(rc.Steps))
		copy(steps, rc.Steps)
		e.res = newResolver(steps)
		e.check.res = e.res
	}
	data := rc.FlowData
	if data == nil {
		data = e.cfg.InitialFlowData
	}
	e.fc = api.NewContext(data)
	e.lastErr = nil
	e.hydrating.Store(false)

	now := time.Now()
	idx := e.res.initialIndex(e.fc)
	e.curIdx = idx
	var cur *api.Step
	if idx < 0 {
		e.status = api.StatusCompleted
		e.started = false
	} else {
		e.status = api.StatusReady
		e.started = true
		cur = &e.res.steps[idx]
		e.fc.Internal.StepStartTimes[cur.ID] = now
	}
	e.mu.Unlock()

	e.signalReady()
	old.Close()
	e.errs.reset()

	if abandoned {
		e.bus.Emit(&api.Event{Type: api.EventFlowAbandoned})
	}

	if !rc.KeepPersisted && e.coord.enabled() {
		e.trackLoading(q.Enqueue(func(ctx context.Context) (any, error) {
			e.coord.clear(ctx)
			return nil, nil
		}, prioPersist))
	}

	if cur != nil {
		started := cur
		q.Enqueue(func(ctx context.Context) (any, error) {
			st := e.State()
			e.bus.Emit(&api.Event{Type: api.EventFlowStarted, State: &st})
			e.activate(ctx, started, api.DirectionForward)
			return nil, nil
		}, prioNavigation)
	}

	e.emitStateChange()
	return nil
}

// Observation API

func (e *engineImpl) State() api.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computeState()
}

func (e *engineImpl) AddEventListener(t api.EventType, fn api.Listener) func() {
	return e.bus.Subscribe(t, fn)
}

func (e *engineImpl) ErrorHistory() []*api.FlowError {
	return e.errs.History()
}

// Plugin host

func (e *engineImpl) Use(p api.Plugin) error {
	if p == nil {
		return errors.New("nil plugin")
	}
	name := p.Name()
	if name == "" {
		return errors.New("plugin name must not be empty")
	}

	e.pluginMu.Lock()
	if _, dup := e.plugins[name]; dup {
		e.pluginMu.Unlock()
		return fmt.Errorf("plugin already installed: %s", name)
	}
	e.pluginMu.Unlock()

	cleanup, err := p.Install(e)
	if err != nil {
		return fmt.Errorf("installing plugin %s: %w", name, err)
	}
	if cleanup == nil {
		cleanup = func() {}
	}

	e.pluginMu.Lock()
	e.plugins[name] = cleanup
	e.order = append(e.order, name)
	e.pluginMu.Unlock()
	return nil
}

func (e *engineImpl) Uninstall(name string) error {
	e.pluginMu.Lock()
	cleanup, ok := e.plugins[name]
	if ok {
		delete(e.plugins, name)
		for i, n := range e.order {
			if n == name {
				e.order = append(e.order[:i:i], e.order[i+1:]...)
				break
			}
		}
	}
	e.pluginMu.Unlock()

	if !ok {
		return fmt.Errorf("plugin not installed: %s", name)
	}
	cleanup()
	return nil
}

// Close tears down the engine. The in-flight queue operation (if any)
// finishes on its own; everything still pending is rejected.
func (e *engineImpl) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	inProgress := e.started && e.status != api.StatusCompleted
	q := e.ops
	e.mu.Unlock()

	e.signalReady()
	q.Close()

	if inProgress {
		e.bus.Emit(&api.Event{Type: api.EventFlowAbandoned})
	}

	e.pluginMu.Lock()
	order := e.order
	plugins := e.plugins
	e.order = nil
	e.plugins = make(map[string]func())
	e.pluginMu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		if cleanup, ok := plugins[order[i]]; ok {
			cleanup()
		}
	}
	return nil
}

// Internal helpers

func (e *engineImpl) currentQueue() *queue.Queue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ops
}

func (e *engineImpl) currentIDLocked() *api.StepID {
	if e.curIdx < 0 || e.curIdx >= len(e.res.steps) {
		return nil
	}
	id := e.res.steps[e.curIdx].ID
	return &id
}

func (e *engineImpl) snapshotContext() *api.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fc.Clone()
}

// failFatalLocked moves the engine to StatusErrored. Further navigation
// is blocked until Reset.
func (e *engineImpl) failFatalLocked(op string, err error) {
	e.status = api.StatusErrored
	e.lastErr = &api.FlowError{
		Kind: api.KindFatal,
		Op:   op,
		Err:  err,
		At:   time.Now(),
	}
}

func (e *engineImpl) emitStateChange() {
	st := e.State()
	e.bus.Emit(&api.Event{Type: api.EventStateChange, State: &st})
}

// enqueuePersist schedules a best-effort persist of the given snapshot
// at normal priority so it never delays navigation. The IsLoading flag
// tracks the ticket through a guaranteed completion path.
func (e *engineImpl) enqueuePersist(q *queue.Queue, fc *api.Context, currentStepID *api.StepID) {
	if !e.coord.enabled() || fc == nil {
		return
	}
	e.trackLoading(q.Enqueue(e.coord.persistOp(fc, currentStepID), prioPersist))
}

func (e *engineImpl) trackLoading(t *queue.Ticket) {
	e.loading.Add(1)
	go func() {
		<-t.Done()
		e.loading.Add(-1)
	}()
}

type opCtxKey struct{}

// markEngineOp tags a context handed to hooks so that re-entrant public
// calls are queued instead of waited on, which would deadlock the
// single-flight worker.
func markEngineOp(ctx context.Context) context.Context {
	return context.WithValue(ctx, opCtxKey{}, true)
}

func isEngineOp(ctx context.Context) bool {
	v, _ := ctx.Value(opCtxKey{}).(bool)
	return v
}
