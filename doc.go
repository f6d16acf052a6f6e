// Package stepflow provides a headless engine for multi-step guided
// flows: onboarding wizards, setup checklists, and form sequences.
//
// Stepflow owns the flow logic (what the current step is, where
// navigation can go, which side effects run on each transition) and
// stays entirely presentation-agnostic. Any frontend, CLI, or service
// layer can subscribe to its state snapshots and render them however it
// likes.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Engine
//  2. Step
//  3. Context
//  4. Events
//  5. Plugins
//
// # Engine
//
// The Engine owns one flow instance's navigation state. It serializes
// every mutation through an internal single-flight operation queue, so
// concurrent calls from multiple goroutines are always applied one at
// a time against a consistent view:
//
//	eng, err := stepflow.NewEngine(cfg)
//	if err != nil { ... }
//	defer eng.Close()
//
//	if err := eng.Ready(ctx); err != nil { ... }
//	err = eng.Next(ctx, map[string]any{"name": "Ada"})
//
// Engines can persist state through any PersistenceAdapter. SQLite and
// Redis adapters ship in the sqlitestore and redisstore packages, with
// matching constructors:
//
//	eng, err := stepflow.NewSQLiteEngine(db, cfg)
//	eng, err := stepflow.NewRedisEngine(client, cfg)
//
// Persistence is best-effort: a failed write is retried per the
// configured policy and then reported through EventPersistenceFailure,
// but it never rolls back in-memory navigation.
//
// # Step
//
// A Step declares its identity, optional eligibility condition,
// navigation targets, lifecycle hooks, and (for checklist steps) item
// configuration. Navigation targets come in three forms:
//
//	stepflow.To("profile")          // static target
//	stepflow.Terminal()             // explicit flow end
//	stepflow.ResolveWith(func(fc *stepflow.Context) *stepflow.StepID {
//	    if isAdmin(fc) { id := stepflow.StepID("admin"); return &id }
//	    return nil
//	})
//
// An absent target falls back to sequential order over eligible steps.
//
// # Context
//
// The flow context carries the data that conditions, predicates, and
// hooks read. It is updated through structural merges: writing a value
// that is structurally equal to what is already there is a no-op and
// notifies nobody.
//
// # Events
//
// Listeners subscribe per event type and are invoked synchronously in
// subscription order. EventBeforeStepChange is cancelable and
// redirectable, which is how guard rails ("you cannot leave this step
// until X") are built. Listeners and hooks receive a context from the
// engine; engine calls made with that context are queued rather than
// executed inline, so a listener can drive the flow onward without
// deadlocking the worker.
//
// # Plugins
//
// A Plugin packages setup against the engine (typically a set of event
// subscriptions) with a cleanup function. LoggingPlugin and Metrics
// ship with the package; FlowBuilder installs plugins at construction
// time.
//
// # FlowBuilder
//
// FlowBuilder is the ergonomic way to assemble a Config:
//
//	cfg := stepflow.NewFlow("onboarding").
//	    Step("welcome", stepflow.StepTypeInformation).
//	    Step("profile", stepflow.StepTypeForm).
//	        OnComplete(saveProfile).
//	    Step("finish", stepflow.StepTypeConfirm).
//	        NextTo(stepflow.Terminal()).
//	    Config()
//
// Flows can also be loaded from YAML files via the pkg/flowfile
// package, with conditions, predicates, and hooks bound by name through
// a registry.
//
// For runnable versions of all of the above, see the /examples
// directory.
package stepflow
