package engine

import (
	"fmt"

	"github.com/petrijr/stepflow/pkg/api"
)

// resolver computes navigation targets. It never mutates anything: it
// reads the immutable step set and a context snapshot.
type resolver struct {
	steps []api.Step
	index map[api.StepID]int
}

func newResolver(steps []api.Step) *resolver {
	idx := make(map[api.StepID]int, len(steps))
	for i := range steps {
		idx[steps[i].ID] = i
	}
	return &resolver{steps: steps, index: idx}
}

func (r *resolver) step(id api.StepID) (*api.Step, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return &r.steps[i], true
}

// resolveTarget computes the candidate step for moving from step in the
// given direction. A nil result with nil error means the direction
// resolves to flow end. Resolution order: explicit literal, then
// predicate, then sequence-order fallback; every candidate is filtered
// by its visibility condition, scanning onward in the same direction
// until an eligible step is found or the list is exhausted.
//
// A predicate panic is recovered and returned as an error; the caller
// classifies it as a resolution error and treats it as "no target".
func (r *resolver) resolveTarget(step *api.Step, dir api.Direction, fc *api.Context) (*api.StepID, error) {
	target := step.Next
	switch dir {
	case api.DirectionBackward:
		target = step.Previous
	case api.DirectionSkip:
		target = step.SkipTo
	}

	delta := 1
	if dir == api.DirectionBackward {
		delta = -1
	}

	if target == nil {
		return r.scanFrom(r.index[step.ID]+delta, delta, fc), nil
	}

	switch target.Kind {
	case api.TargetTerminal:
		return nil, nil

	case api.TargetLiteral:
		return r.eligibleOrScan(target.ID, delta, fc, step.ID, dir)

	case api.TargetPredicate:
		id, err := callPredicate(target.Fn, fc)
		if err != nil {
			return nil, err
		}
		if id == nil {
			return nil, nil
		}
		return r.eligibleOrScan(*id, delta, fc, step.ID, dir)

	default:
		return nil, fmt.Errorf("step %s: unknown navigation target kind %d", step.ID, target.Kind)
	}
}

// eligibleOrScan checks an explicitly named candidate. An unknown id is
// an error; an ineligible candidate continues the scan from its position
// in the same direction.
func (r *resolver) eligibleOrScan(id api.StepID, delta int, fc *api.Context, from api.StepID, dir api.Direction) (*api.StepID, error) {
	i, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("step %s: %s target %q: %w", from, dir, id, api.ErrStepNotFound)
	}
	if r.steps[i].Eligible(fc) {
		return &r.steps[i].ID, nil
	}
	return r.scanFrom(i+delta, delta, fc), nil
}

// scanFrom walks the step slice from index i in steps of delta and
// returns the first eligible step, or nil when the list is exhausted.
func (r *resolver) scanFrom(i, delta int, fc *api.Context) *api.StepID {
	for ; i >= 0 && i < len(r.steps); i += delta {
		if r.steps[i].Eligible(fc) {
			return &r.steps[i].ID
		}
	}
	return nil
}

// initialIndex returns the index of the first eligible step, or -1 when
// no step is eligible.
func (r *resolver) initialIndex(fc *api.Context) int {
	for i := range r.steps {
		if r.steps[i].Eligible(fc) {
			return i
		}
	}
	return -1
}

// callPredicate invokes a navigation predicate, converting a panic into
// an error so a faulty predicate stalls the transition instead of
// crashing the engine.
func callPredicate(fn api.PredicateFunc, fc *api.Context) (id *api.StepID, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			id = nil
			err = fmt.Errorf("navigation predicate panic: %v", rec)
		}
	}()
	return fn(fc), nil
}
