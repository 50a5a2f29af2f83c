// Package workers implements the pool that executes runs in the background.
//
// The worker pool manages a fixed number of goroutines that:
//   - Take run jobs handed over by Submit
//   - Execute each job to completion, never cancelling it
//   - Recover a panicking job so the worker keeps serving
//
// When every worker is busy a job starts on an overflow goroutine, so runs
// never wait for each other. The health monitor tracks worker status and
// records it as metrics.
package workers
