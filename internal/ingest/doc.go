// Package ingest watches the incoming directory for telemetry dumps and
// enqueues them for the pipeline. Filesystem events cover dumps dropped while
// the daemon runs; a periodic rescan picks up anything that arrived before
// the watcher started or during an event gap.
package ingest
