// Package notifications tells the operator about finished jobs.
//
// Two transports are supported: ntfy push messages over HTTP and plain-text
// mail over SMTP. Failures carry the source path, the attempt history and
// the tail of each attempt's transcoder log so the operator can act without
// opening the host. NewService fans out to every configured transport and
// degrades to a no-op when none is configured. Delivery errors are returned
// for logging and never affect job state.
package notifications
