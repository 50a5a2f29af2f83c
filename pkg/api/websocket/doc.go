// Package websocket streams the events of a single run.
//
// Clients connect to /api/v1/runs/:id/ws. The first frame is a snapshot of
// the run; every later frame is a {topic, payload} event from the run's
// status, log or error topic.
package websocket
