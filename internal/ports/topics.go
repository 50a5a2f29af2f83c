package ports

import (
	"fmt"
	"strings"
)

// StatusTopic carries domain.StatusEvent for a run.
func StatusTopic(runID string) string { return fmt.Sprintf("run:%s", runID) }

// LogTopic carries one domain.LogEntry per appended log line.
func LogTopic(runID string) string { return fmt.Sprintf("run:%s:log", runID) }

// ErrorTopic carries the terminal domain.ErrorEvent of a failed run.
func ErrorTopic(runID string) string { return fmt.Sprintf("run:%s:error", runID) }

// RunTopics returns every topic published for a run.
func RunTopics(runID string) []string {
	return []string{StatusTopic(runID), LogTopic(runID), ErrorTopic(runID)}
}

// RunIDFromTopic extracts the run id from any of the run topics.
func RunIDFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, "run:")
	if !ok || rest == "" {
		return "", false
	}
	rest = strings.TrimSuffix(rest, ":log")
	rest = strings.TrimSuffix(rest, ":error")
	return rest, rest != ""
}
