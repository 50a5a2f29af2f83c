// Package http provides the REST API.
//
// The server exposes endpoints for:
//   - Run submission and lookup
//   - Listing the runs of a workflow
//   - Supported node types
//   - Health checks and Prometheus metrics
//
// The WebSocket stream and the Socket.IO endpoint are mounted separately
// with SetupWebSocket and SetupSocketIO.
package http
