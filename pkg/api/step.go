package api

import "context"

// StepID identifies a step within a flow. Declarative sources that use
// integer ids normalize them to their decimal string form at load time.
type StepID string

// StepType tags a step so callers (and the checklist manager) can attach
// type-specific behavior. The engine itself only gives special meaning to
// StepTypeChecklist.
type StepType string

const (
	StepTypeInformation StepType = "INFORMATION"
	StepTypeForm        StepType = "FORM"
	StepTypeChecklist   StepType = "CHECKLIST"
	StepTypeConfirm     StepType = "CONFIRMATION"
	StepTypeCustom      StepType = "CUSTOM"
)

// Direction describes which way a transition moves through the flow.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionSkip     Direction = "skip"
	DirectionJump     Direction = "jump"
)

// ConditionFunc governs a step's visibility/eligibility. A step whose
// condition returns false is skipped over during navigation resolution.
type ConditionFunc func(fc *Context) bool

// PredicateFunc computes a navigation target from the current context.
// Returning nil means "terminal": there is no target in that direction.
type PredicateFunc func(fc *Context) *StepID

// ActiveHook runs when a step becomes the current step. It executes inside
// the engine's operation queue; errors are caught and classified, never
// left unhandled.
type ActiveHook func(ctx context.Context, fc *Context) error

// CompleteHook runs when a step is completed via forward navigation.
// stepData is the data the caller passed to Next/GoToStep for this
// transition. It executes inside the engine's operation queue.
type CompleteHook func(ctx context.Context, stepData map[string]any, fc *Context) error

// TargetKind discriminates the NavigationTarget variants.
type TargetKind int

const (
	// TargetLiteral points at a fixed step id.
	TargetLiteral TargetKind = iota

	// TargetTerminal explicitly declares "no step in this direction".
	TargetTerminal

	// TargetPredicate computes the target from the context at
	// resolution time.
	TargetPredicate
)

// NavigationTarget is the tagged representation of a step's navigation
// field. A nil *NavigationTarget means the field is absent and resolution
// falls back to sequence order.
type NavigationTarget struct {
	Kind TargetKind
	ID   StepID        // TargetLiteral
	Fn   PredicateFunc // TargetPredicate
}

// To declares a literal navigation target.
func To(id StepID) *NavigationTarget {
	return &NavigationTarget{Kind: TargetLiteral, ID: id}
}

// Terminal declares that navigation ends here in the given direction.
func Terminal() *NavigationTarget {
	return &NavigationTarget{Kind: TargetTerminal}
}

// ResolveWith declares a dynamic navigation target computed by fn at
// resolution time.
func ResolveWith(fn PredicateFunc) *NavigationTarget {
	return &NavigationTarget{Kind: TargetPredicate, Fn: fn}
}

// ChecklistItem is one item of a checklist-type step.
type ChecklistItem struct {
	ID        string
	Label     string
	Mandatory bool
}

// ChecklistConfig describes the items of a checklist-type step and how
// its completion threshold is computed.
type ChecklistConfig struct {
	Items []ChecklistItem

	// MinItemsToComplete is the number of completed items required for
	// the step to count as complete. Zero means "all mandatory items".
	MinItemsToComplete int

	// DataKey is the flowData key under which per-item completion state
	// is stored. Defaults to the step id.
	DataKey string
}

// Threshold returns the effective number of completed items required,
// resolving the "all mandatory items" default.
func (c *ChecklistConfig) Threshold() int {
	if c.MinItemsToComplete > 0 {
		return c.MinItemsToComplete
	}
	n := 0
	for _, it := range c.Items {
		if it.Mandatory {
			n++
		}
	}
	return n
}

// Item returns the item definition for id, if present.
func (c *ChecklistConfig) Item(id string) (ChecklistItem, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return ChecklistItem{}, false
}

// Step is one node of the flow graph. Steps are supplied once at engine
// construction and treated as read-only thereafter; the only way to swap
// them is an explicit Reset.
type Step struct {
	ID   StepID
	Type StepType

	// Payload is opaque to the engine and carried through to observers.
	Payload map[string]any

	// Navigation fields. nil means "absent": fall back to the step's
	// position in the original step slice.
	Next     *NavigationTarget
	Previous *NavigationTarget
	SkipTo   *NavigationTarget

	// Skippable gates Skip. SkipTo is only meaningful when true.
	Skippable bool

	// Condition governs visibility. A nil condition means always
	// eligible.
	Condition ConditionFunc

	OnActive   ActiveHook
	OnComplete CompleteHook

	// Checklist configures item tracking for StepTypeChecklist steps.
	Checklist *ChecklistConfig

	// Meta is a caller extension bag, ignored by the engine.
	Meta map[string]any
}

// Eligible reports whether the step passes its visibility condition
// under the given context.
func (s *Step) Eligible(fc *Context) bool {
	if s.Condition == nil {
		return true
	}
	return s.Condition(fc)
}

// ChecklistDataKey returns the flowData key holding this step's checklist
// state.
func (s *Step) ChecklistDataKey() string {
	if s.Checklist != nil && s.Checklist.DataKey != "" {
		return s.Checklist.DataKey
	}
	return string(s.ID)
}
