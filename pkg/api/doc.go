// Package api contains the public types of the stepflow engine: the
// step and context model, the derived EngineState snapshot, the event
// catalogue with its cancel/redirect control, the error taxonomy, the
// persistence adapter contract, and the plugin interface.
//
// Most applications import the root stepflow package, which re-exports
// everything here; api exists so adapter and plugin authors can depend
// on the contracts without pulling in the engine.
package api
