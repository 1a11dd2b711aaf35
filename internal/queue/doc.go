// Package queue persists pipeline items and their lifecycle in SQLite.
//
// Each item is one telemetry dataset moving through the staged workflow
// (preprocess, upload, train, evaluate, compile, package, deploy). The store
// owns status transitions, heartbeat bookkeeping for in-flight stages, and
// the reclamation of items whose stage died mid-flight. All writes retry on
// SQLITE_BUSY so the daemon and CLI can share the database.
package queue
