// Package storage provides run store implementations.
//
// Implementations:
//   - memory: in-process map, for tests and the one-shot CLI
//   - redis: JSON documents with TTL and a per-workflow sorted-set index
//   - postgres: JSONB documents in a single runs table
package storage
