// Package main hosts the mediaconv operator CLI and its command graph.
//
// Commands open the SQLite queue directly: the daemon and the CLI coordinate
// through the database, so enqueue, cancel and requeue work whether or not
// mediaconvd is running. The run command starts the daemon in the
// foreground.
package main
