// Package orchestrator is the hosting layer around the engine.
//
// The orchestrator manager coordinates runs by:
//   - Validating workflow definitions before a run is created
//   - Creating and persisting pending run records
//   - Handing runs to the worker pool so callers return immediately
//   - Reading run records back from the run store
//
// Runs are never cancelled once handed to the pool.
package orchestrator
