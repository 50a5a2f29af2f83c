// Package engine executes a workflow graph for a single run.
//
// The engine is made of:
//   - Graph: an immutable arena snapshot of the workflow's nodes and edges
//   - Worklist: the FIFO queue of node indices waiting to execute
//   - ExecutionContext: captured node outputs and the run log for one run
//   - the traversal scheduler, which walks the graph breadth-first from the
//     start nodes and routes by output port
//   - Engine: the run lifecycle (pending -> running -> success|failed) and
//     event publication
//
// Traversal within a run is strictly sequential. Separate runs share nothing
// but the executor registry, so any number of them may execute at once.
package engine
