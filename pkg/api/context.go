package api

import (
	"reflect"
	"time"
)

// InternalState is the reserved region of the flow context maintained by
// the engine itself. Its maps only grow; entries are never rewritten
// retroactively.
type InternalState struct {
	StartedAt time.Time

	// CompletedSteps maps step id to the time the step was completed.
	CompletedSteps map[StepID]time.Time

	// StepStartTimes maps step id to the time the step first became
	// active.
	StepStartTimes map[StepID]time.Time
}

// Context is the shared flow state threaded through navigation decisions
// and lifecycle hooks. It is mutated exclusively through
// Engine.UpdateContext (and engine-internal bookkeeping); hooks receive
// deep copies.
type Context struct {
	// FlowData is the arbitrary key/value state collected by the flow.
	FlowData map[string]any

	// Internal is the engine-maintained bookkeeping region.
	Internal InternalState

	// CurrentUser is an optional caller-supplied identity.
	CurrentUser any

	// Extra holds arbitrary caller-added top-level keys.
	Extra map[string]any
}

// NewContext creates a Context with initialized maps and StartedAt set
// to now.
func NewContext(flowData map[string]any) *Context {
	fc := &Context{
		FlowData: make(map[string]any, len(flowData)),
		Internal: InternalState{
			StartedAt:      time.Now(),
			CompletedSteps: make(map[StepID]time.Time),
			StepStartTimes: make(map[StepID]time.Time),
		},
		Extra: make(map[string]any),
	}
	for k, v := range flowData {
		fc.FlowData[k] = deepCopyValue(v)
	}
	return fc
}

// ContextPatch is the argument to Engine.UpdateContext. The merge is
// shallow per top-level key, except FlowData which is merged one level
// deeper (key by key).
type ContextPatch struct {
	FlowData    map[string]any
	CurrentUser any
	Extra       map[string]any
}

// IsZero reports whether the patch carries no changes at all.
func (p ContextPatch) IsZero() bool {
	return len(p.FlowData) == 0 && p.CurrentUser == nil && len(p.Extra) == 0
}

// Apply merges the patch into fc and reports whether the merge yielded a
// structurally different context. Equality is structural, not
// serialization-based, so non-JSON-safe entries compare correctly.
func (p ContextPatch) Apply(fc *Context) bool {
	changed := false

	for k, v := range p.FlowData {
		if old, ok := fc.FlowData[k]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		fc.FlowData[k] = deepCopyValue(v)
		changed = true
	}

	if p.CurrentUser != nil && !reflect.DeepEqual(fc.CurrentUser, p.CurrentUser) {
		fc.CurrentUser = p.CurrentUser
		changed = true
	}

	for k, v := range p.Extra {
		if old, ok := fc.Extra[k]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		fc.Extra[k] = deepCopyValue(v)
		changed = true
	}

	return changed
}

// Clone returns a deep copy of the context. Maps and slices are copied
// recursively; other values are copied by assignment.
func (fc *Context) Clone() *Context {
	if fc == nil {
		return nil
	}
	out := &Context{
		FlowData:    deepCopyMap(fc.FlowData),
		CurrentUser: fc.CurrentUser,
		Extra:       deepCopyMap(fc.Extra),
		Internal: InternalState{
			StartedAt:      fc.Internal.StartedAt,
			CompletedSteps: make(map[StepID]time.Time, len(fc.Internal.CompletedSteps)),
			StepStartTimes: make(map[StepID]time.Time, len(fc.Internal.StepStartTimes)),
		},
	}
	for k, v := range fc.Internal.CompletedSteps {
		out.Internal.CompletedSteps[k] = v
	}
	for k, v := range fc.Internal.StepStartTimes {
		out.Internal.StepStartTimes[k] = v
	}
	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
