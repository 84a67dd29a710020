// Package daemon coordinates the long-running mediaconv process.
//
// It wires the queue store, the workflow manager, and the ingestion file
// watcher into a single lifecycle with flock-based locking to prevent multiple
// instances from draining the same queue. Orphaned claims left by a crashed
// predecessor are reset while the lock is held, before any worker starts.
//
// Keep orchestration logic here: individual pipeline steps live in their
// respective packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
