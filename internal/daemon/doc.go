// Package daemon ties the workflow manager and the ingest watcher into a
// single lifecycle with flock-based locking to prevent multiple concurrent
// daemon instances against the same queue database.
package daemon
