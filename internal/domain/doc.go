// Package domain defines the workflow and run documents shared by the engine,
// the storage adapters and the API.
//
// A Workflow is a flat list of nodes and edges as produced by the visual
// editor. A Run is one execution attempt of a workflow; it is created pending
// by the hosting layer and then mutated only by the engine until it reaches a
// terminal status.
package domain
