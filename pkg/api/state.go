package api

// FlowStatus is the lifecycle state of an engine instance.
type FlowStatus string

const (
	StatusNotReady   FlowStatus = "NOT_READY"
	StatusReady      FlowStatus = "READY"
	StatusNavigating FlowStatus = "NAVIGATING"
	StatusCompleted  FlowStatus = "COMPLETED"
	StatusErrored    FlowStatus = "ERRORED"
)

// EngineState is a derived, read-only snapshot of the engine. It is
// recomputed from scratch after every committed mutation rather than
// patched incrementally, so observers never see stale derived flags.
type EngineState struct {
	FlowID      string
	FlowName    string
	FlowVersion string

	Status FlowStatus

	// CurrentStep is nil exactly when the flow is completed (or the
	// engine is not yet ready).
	CurrentStep *Step

	// Context is a deep copy; mutating it has no effect on the engine.
	Context Context

	IsLoading   bool
	IsHydrating bool
	IsCompleted bool

	// Error is the most recent fatal or blocking error, if any.
	Error *FlowError

	IsFirstStep   bool
	IsLastStep    bool
	CanGoNext     bool
	CanGoPrevious bool
	IsSkippable   bool

	// NextStepCandidate and PreviousStepCandidate preview where
	// navigation would currently resolve, without committing anything.
	// nil means the direction resolves to flow end (or failed to
	// resolve).
	NextStepCandidate     *StepID
	PreviousStepCandidate *StepID

	TotalSteps         int
	CompletedSteps     int
	CurrentStepNumber  int
	ProgressPercentage float64
}
