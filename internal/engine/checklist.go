package engine

import (
	"fmt"

	"github.com/petrijr/stepflow/pkg/api"
)

// checklistManager tracks per-item completion for checklist-type steps.
// Item state lives inside flowData under the step's data key, so it
// flows through the same persistence and change-notification paths as
// everything else.
type checklistManager struct {
	res *resolver
}

// toggleResult describes what a toggle changed, for event emission.
type toggleResult struct {
	step           *api.Step
	itemID         string
	completed      bool
	changed        bool
	completedCount int
	complete       bool
	crossed        bool
}

// validate checks the toggle preconditions: the step exists, supports
// checklist items, and defines the item.
func (m *checklistManager) validate(stepID api.StepID, itemID string) (*api.Step, error) {
	step, ok := m.res.step(stepID)
	if !ok {
		return nil, fmt.Errorf("checklist step %q: %w", stepID, api.ErrStepNotFound)
	}
	if step.Checklist == nil {
		return nil, fmt.Errorf("step %q does not support checklist items", stepID)
	}
	if _, ok := step.Checklist.Item(itemID); !ok {
		return nil, fmt.Errorf("step %q has no checklist item %q", stepID, itemID)
	}
	return step, nil
}

// apply flips the item's completion flag inside flowData and recomputes
// the step's completion threshold. The caller holds the engine mutex.
func (m *checklistManager) apply(fc *api.Context, step *api.Step, itemID string, completed bool) toggleResult {
	key := step.ChecklistDataKey()

	state, _ := fc.FlowData[key].(map[string]any)
	if state == nil {
		state = make(map[string]any)
	}

	before := m.progress(step, state)

	prev, _ := state[itemID].(bool)
	state[itemID] = completed
	fc.FlowData[key] = state

	after := m.progress(step, state)

	return toggleResult{
		step:           step,
		itemID:         itemID,
		completed:      completed,
		changed:        prev != completed,
		completedCount: after.count,
		complete:       after.complete,
		crossed:        before.complete != after.complete,
	}
}

type checklistProgress struct {
	count    int
	complete bool
}

// progress computes how many defined items are complete and whether the
// step's threshold is met. For a zero MinItemsToComplete the threshold
// is "all mandatory items", which additionally requires every mandatory
// item individually.
func (m *checklistManager) progress(step *api.Step, state map[string]any) checklistProgress {
	cfg := step.Checklist

	count := 0
	mandatoryDone := true
	for _, it := range cfg.Items {
		done, _ := state[it.ID].(bool)
		if done {
			count++
		} else if it.Mandatory {
			mandatoryDone = false
		}
	}

	if cfg.MinItemsToComplete > 0 {
		return checklistProgress{count: count, complete: count >= cfg.MinItemsToComplete}
	}
	return checklistProgress{count: count, complete: mandatoryDone}
}
