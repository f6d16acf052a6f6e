package engine

import "github.com/petrijr/stepflow/pkg/api"

// computeState derives a fresh EngineState snapshot. It is recomputed in
// full after every mutation rather than patched, so no combination of
// stale flags can ever be observed. Callers must hold e.mu.
func (e *engineImpl) computeState() api.EngineState {
	st := api.EngineState{
		FlowID:      e.cfg.FlowID,
		FlowName:    e.cfg.FlowName,
		FlowVersion: e.cfg.FlowVersion,
		Status:      e.status,
		Context:     *e.fc.Clone(),
		IsLoading:   e.loading.Load() > 0,
		IsHydrating: e.hydrating.Load(),
		IsCompleted: e.status == api.StatusCompleted,
		Error:       e.lastErr,
		TotalSteps:  len(e.res.steps),
	}

	st.CompletedSteps = len(e.fc.Internal.CompletedSteps)
	if st.TotalSteps > 0 {
		st.ProgressPercentage = float64(st.CompletedSteps) / float64(st.TotalSteps) * 100
	}

	if e.curIdx < 0 || e.curIdx >= len(e.res.steps) {
		return st
	}

	cur := &e.res.steps[e.curIdx]
	st.CurrentStep = cur
	st.CurrentStepNumber = e.curIdx + 1
	st.IsSkippable = cur.Skippable

	// Candidate previews are best-effort: a predicate failure here must
	// not surface from a read-only snapshot.
	if next, err := e.res.resolveTarget(cur, api.DirectionForward, &st.Context); err == nil {
		st.NextStepCandidate = next
	}
	if prev, err := e.res.resolveTarget(cur, api.DirectionBackward, &st.Context); err == nil {
		st.PreviousStepCandidate = prev
	}

	st.CanGoNext = st.NextStepCandidate != nil
	st.CanGoPrevious = st.PreviousStepCandidate != nil
	st.IsFirstStep = st.PreviousStepCandidate == nil
	st.IsLastStep = st.NextStepCandidate == nil

	return st
}
