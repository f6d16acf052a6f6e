package stepflow

import (
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/stepflow/internal/engine"
	"github.com/petrijr/stepflow/pkg/api"
	"github.com/petrijr/stepflow/redisstore"
	"github.com/petrijr/stepflow/sqlitestore"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine             = api.Engine
	Config             = api.Config
	Step               = api.Step
	StepID             = api.StepID
	StepType           = api.StepType
	Direction          = api.Direction
	NavigationTarget   = api.NavigationTarget
	ConditionFunc      = api.ConditionFunc
	PredicateFunc      = api.PredicateFunc
	ActiveHook         = api.ActiveHook
	CompleteHook       = api.CompleteHook
	Context            = api.Context
	ContextPatch       = api.ContextPatch
	EngineState        = api.EngineState
	FlowStatus         = api.FlowStatus
	Event              = api.Event
	EventType          = api.EventType
	Listener           = api.Listener
	ChecklistItem      = api.ChecklistItem
	ChecklistConfig    = api.ChecklistConfig
	PersistenceAdapter = api.PersistenceAdapter
	AdapterFuncs       = api.AdapterFuncs
	LoadedData         = api.LoadedData
	RetryPolicy        = api.RetryPolicy
	FlowError          = api.FlowError
	ErrorKind          = api.ErrorKind
	Plugin             = api.Plugin
	PluginFunc         = api.PluginFunc
	CompositePlugin    = api.CompositePlugin
	LoggingPlugin      = api.LoggingPlugin
	Metrics            = api.Metrics
	MetricsSnapshot    = api.MetricsSnapshot
	ResetOption        = api.ResetOption
)

// Re-export navigation target constructors and common helpers.

var (
	To          = api.To
	Terminal    = api.Terminal
	ResolveWith = api.ResolveWith

	WithSteps     = api.WithSteps
	WithFlowData  = api.WithFlowData
	KeepPersisted = api.KeepPersisted

	WithEngine        = api.WithEngine
	EngineFromContext = api.EngineFromContext

	NewLoggingPlugin = api.NewLoggingPlugin

	AsFlowError = api.AsFlowError
	IsKind      = api.IsKind
)

// Re-export sentinel errors.

var (
	ErrEngineClosed  = api.ErrEngineClosed
	ErrEngineErrored = api.ErrEngineErrored
	ErrStepNotFound  = api.ErrStepNotFound
	ErrSuperseded    = api.ErrSuperseded
)

// Re-export step types for convenience.

const (
	StepTypeInformation = api.StepTypeInformation
	StepTypeForm        = api.StepTypeForm
	StepTypeChecklist   = api.StepTypeChecklist
	StepTypeConfirm     = api.StepTypeConfirm
	StepTypeCustom      = api.StepTypeCustom
)

// Re-export directions.

const (
	DirectionForward  = api.DirectionForward
	DirectionBackward = api.DirectionBackward
	DirectionSkip     = api.DirectionSkip
	DirectionJump     = api.DirectionJump
)

// Re-export status values.

const (
	StatusNotReady   = api.StatusNotReady
	StatusReady      = api.StatusReady
	StatusNavigating = api.StatusNavigating
	StatusCompleted  = api.StatusCompleted
	StatusErrored    = api.StatusErrored
)

// Re-export error kinds.

const (
	KindPrecondition = api.KindPrecondition
	KindResolution   = api.KindResolution
	KindSideEffect   = api.KindSideEffect
	KindPersistence  = api.KindPersistence
	KindFatal        = api.KindFatal
)

// Re-export event types.

const (
	EventStateChange              = api.EventStateChange
	EventBeforeStepChange         = api.EventBeforeStepChange
	EventStepActive               = api.EventStepActive
	EventStepCompleted            = api.EventStepCompleted
	EventFlowStarted              = api.EventFlowStarted
	EventFlowCompleted            = api.EventFlowCompleted
	EventFlowAbandoned            = api.EventFlowAbandoned
	EventNavigationBack           = api.EventNavigationBack
	EventNavigationForward        = api.EventNavigationForward
	EventChecklistItemToggled     = api.EventChecklistItemToggled
	EventChecklistProgressChanged = api.EventChecklistProgressChanged
	EventPersistenceSuccess       = api.EventPersistenceSuccess
	EventPersistenceFailure       = api.EventPersistenceFailure
	EventError                    = api.EventError
)

// Engine constructors
// These wrap the internal/engine package so external callers never
// need to import internal packages.

// NewEngine returns an Engine for the given configuration. State is
// held in memory only, unless cfg.Persistence is set.
func NewEngine(cfg Config) (Engine, error) {
	return engine.New(cfg)
}

// NewSQLiteEngine returns an Engine whose flow state is persisted in a
// SQLite database. The caller must import a SQLite driver (for
// example, "modernc.org/sqlite") and pass a database opened with it.
func NewSQLiteEngine(db *sql.DB, cfg Config) (Engine, error) {
	store, err := sqlitestore.New(db, cfg.FlowID)
	if err != nil {
		return nil, err
	}
	cfg.Persistence = store
	return engine.New(cfg)
}

// NewRedisEngine returns an Engine whose flow state is persisted in
// Redis under "stepflow:<flowID>".
func NewRedisEngine(client *redis.Client, cfg Config) (Engine, error) {
	store, err := redisstore.New(client, cfg.FlowID, "")
	if err != nil {
		return nil, err
	}
	cfg.Persistence = store
	return engine.New(cfg)
}
