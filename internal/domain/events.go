package domain

// StatusEvent is published on entering running and on reaching a terminal
// status. Duration is only set on terminal events.
type StatusEvent struct {
	Status   RunStatus `json:"status"`
	RunID    string    `json:"runId"`
	Duration *int64    `json:"duration,omitempty"`
}

// ErrorEvent is published once when a run fails.
type ErrorEvent struct {
	Error string `json:"error"`
}
