package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextPatchApplyDetectsChanges(t *testing.T) {
	t.Parallel()

	fc := NewContext(map[string]any{
		"name": "Ada",
		"tags": map[string]any{"tier": "gold"},
	})

	// Structurally identical write: no change.
	changed := ContextPatch{FlowData: map[string]any{
		"name": "Ada",
		"tags": map[string]any{"tier": "gold"},
	}}.Apply(fc)
	require.False(t, changed)

	// A genuinely different nested value is a change.
	changed = ContextPatch{FlowData: map[string]any{
		"tags": map[string]any{"tier": "silver"},
	}}.Apply(fc)
	require.True(t, changed)
	require.Equal(t, "silver", fc.FlowData["tags"].(map[string]any)["tier"])

	// New keys are changes too, and merge per key.
	changed = ContextPatch{FlowData: map[string]any{"plan": "pro"}}.Apply(fc)
	require.True(t, changed)
	require.Equal(t, "Ada", fc.FlowData["name"], "untouched keys survive the merge")
}

func TestContextPatchNonSerializableValues(t *testing.T) {
	t.Parallel()

	type session struct{ Token string }

	fc := NewContext(nil)
	fn := func() {}

	require.True(t, ContextPatch{FlowData: map[string]any{"s": session{"x"}}}.Apply(fc))
	require.False(t, ContextPatch{FlowData: map[string]any{"s": session{"x"}}}.Apply(fc),
		"structural equality must work on non-JSON-safe values")

	// Function values never compare equal, so this always counts as a
	// change, but it must not panic.
	require.NotPanics(t, func() {
		ContextPatch{FlowData: map[string]any{"fn": fn}}.Apply(fc)
	})
}

func TestContextPatchIsZero(t *testing.T) {
	t.Parallel()

	require.True(t, ContextPatch{}.IsZero())
	require.False(t, ContextPatch{FlowData: map[string]any{"a": 1}}.IsZero())
	require.False(t, ContextPatch{CurrentUser: "u"}.IsZero())
	require.False(t, ContextPatch{Extra: map[string]any{"a": 1}}.IsZero())
}

func TestContextPatchCurrentUserAndExtra(t *testing.T) {
	t.Parallel()

	fc := NewContext(nil)

	require.True(t, ContextPatch{CurrentUser: map[string]any{"id": "u1"}}.Apply(fc))
	require.False(t, ContextPatch{CurrentUser: map[string]any{"id": "u1"}}.Apply(fc))

	require.True(t, ContextPatch{Extra: map[string]any{"theme": "dark"}}.Apply(fc))
	require.False(t, ContextPatch{Extra: map[string]any{"theme": "dark"}}.Apply(fc))
	require.Equal(t, "dark", fc.Extra["theme"])
}

func TestContextCloneIsDeep(t *testing.T) {
	t.Parallel()

	fc := NewContext(map[string]any{
		"nested": map[string]any{"list": []any{1, 2, 3}},
	})
	fc.Internal.CompletedSteps["a"] = fc.Internal.StartedAt

	clone := fc.Clone()
	clone.FlowData["nested"].(map[string]any)["list"].([]any)[0] = 99
	clone.Internal.CompletedSteps["b"] = fc.Internal.StartedAt

	require.Equal(t, 1, fc.FlowData["nested"].(map[string]any)["list"].([]any)[0])
	require.NotContains(t, fc.Internal.CompletedSteps, StepID("b"))
}

func TestPatchWritesAreCopied(t *testing.T) {
	t.Parallel()

	fc := NewContext(nil)
	payload := map[string]any{"inner": map[string]any{"v": 1}}
	ContextPatch{FlowData: map[string]any{"data": payload}}.Apply(fc)

	// Mutating the caller's map after Apply must not reach the context.
	payload["inner"].(map[string]any)["v"] = 2
	require.Equal(t, 1, fc.FlowData["data"].(map[string]any)["inner"].(map[string]any)["v"])
}
