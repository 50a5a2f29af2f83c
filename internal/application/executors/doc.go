// Package executors holds the node executor registry and the built-in
// executors.
//
// A Registry is an explicit value built once per process and handed to the
// engine; there is no package-level table. Each executor decodes its own
// typed parameter struct from the node's data bag, so the set of node kinds
// and their parameters is declared in one place per kind.
//
// Executors report business failures by returning an error. They may perform
// side effects and may log through the ExecContext, but must not assume the
// engine enforces any timeout on their behalf.
package executors
