package api

import "context"

// EventType identifies an engine event.
type EventType string

const (
	// EventStateChange fires after every committed mutation, once the
	// full EngineState has been recomputed.
	EventStateChange EventType = "stateChange"

	// EventBeforeStepChange fires once per attempted transition and is
	// cancelable/redirectable. It is not fired again for a redirected
	// target; redirection replaces the in-flight attempt.
	EventBeforeStepChange EventType = "beforeStepChange"

	EventStepActive    EventType = "stepActive"
	EventStepCompleted EventType = "stepCompleted"

	EventFlowStarted   EventType = "flowStarted"
	EventFlowCompleted EventType = "flowCompleted"
	EventFlowAbandoned EventType = "flowAbandoned"

	EventNavigationBack    EventType = "navigationBack"
	EventNavigationForward EventType = "navigationForward"

	EventChecklistItemToggled     EventType = "checklistItemToggled"
	EventChecklistProgressChanged EventType = "checklistProgressChanged"

	EventPersistenceSuccess EventType = "persistenceSuccess"
	EventPersistenceFailure EventType = "persistenceFailure"

	EventError EventType = "error"
)

// Listener receives engine events. Delivery is synchronous in
// subscription order. The context identifies the dispatch as engine
// originated: engine calls made with it from inside a listener are
// queued rather than executed inline, so a listener can safely drive
// the flow onward without deadlocking the worker. Calls made with any
// other context wait for their result as usual.
type Listener func(ctx context.Context, ev *Event)

// Event is the payload delivered to listeners. Fields are populated
// according to Type; unused fields are zero.
type Event struct {
	Type EventType

	// State accompanies EventStateChange (and terminal flow events).
	State *EngineState

	// From and To describe the transition for navigation events.
	From *Step
	To   *Step

	Direction Direction

	// StepData is the data passed to Next/GoToStep for this transition.
	StepData map[string]any

	// Checklist fields, for EventChecklistItemToggled and
	// EventChecklistProgressChanged.
	ItemID            string
	ItemCompleted     bool
	CompletedCount    int
	ChecklistComplete bool

	// Err accompanies EventError and EventPersistenceFailure.
	Err *FlowError

	ctrl *NavigationControl
}

// Cancel aborts the pending transition. Only meaningful on an
// EventBeforeStepChange dispatch; anywhere else, or after the listener
// has returned, or after a prior Cancel/Redirect, it is ignored.
func (e *Event) Cancel() {
	if e.ctrl != nil {
		e.ctrl.cancel()
	}
}

// Redirect substitutes the transition target. Same once-only, dispatch
// scoped semantics as Cancel.
func (e *Event) Redirect(id StepID) {
	if e.ctrl != nil {
		e.ctrl.redirect(id)
	}
}

// NavigationControl is the engine-side handle behind a cancelable
// EventBeforeStepChange. Listeners interact with it only through
// Event.Cancel and Event.Redirect.
type NavigationControl struct {
	open     bool
	used     bool
	canceled bool
	target   *StepID
}

// NewBeforeStepChange builds the cancelable event for an attempted
// transition plus the control handle the dispatcher consults afterwards.
func NewBeforeStepChange(from, to *Step, dir Direction) (*Event, *NavigationControl) {
	ctrl := &NavigationControl{open: true}
	ev := &Event{
		Type:      EventBeforeStepChange,
		From:      from,
		To:        to,
		Direction: dir,
		ctrl:      ctrl,
	}
	return ev, ctrl
}

func (c *NavigationControl) cancel() {
	if !c.open || c.used {
		return
	}
	c.used = true
	c.canceled = true
}

func (c *NavigationControl) redirect(id StepID) {
	if !c.open || c.used {
		return
	}
	c.used = true
	c.target = &id
}

// Close ends the dispatch window. Cancel/Redirect calls arriving after
// Close are ignored.
func (c *NavigationControl) Close() { c.open = false }

// Canceled reports whether a listener canceled the transition.
func (c *NavigationControl) Canceled() bool { return c.canceled }

// RedirectTarget returns the substituted target, if any.
func (c *NavigationControl) RedirectTarget() *StepID { return c.target }
