// Package workflow coordinates queue processing across the pipeline stages.
//
// A single runner goroutine drains the queue in status order: it claims the
// next actionable item, transitions it to the stage's processing status,
// executes the stage handler with a heartbeat loop running alongside, and
// promotes the item to the stage's done status. Items whose heartbeats go
// stale (for example after a crash) are rolled back to the preceding stable
// status and picked up again on the next pass.
package workflow
