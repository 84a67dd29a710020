// Package ingest turns operator requests into queued jobs.
//
// Paths arrive either one at a time (mediaconv enqueue) or as lines of the
// ingestion file. Each path is guarded against the configured roots,
// classified, has its season folders renamed, and is enqueued once per movie
// or episode. The ingestion file is consumed under a file lock; the Watcher
// re-consumes it whenever it changes, with a poll as a safety net for
// filesystems that do not deliver inotify events.
package ingest
