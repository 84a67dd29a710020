// Package logs reads the daemon log and per-attempt transcoder logs for the
// CLI.
//
// Last reads the final N lines with bounded memory and reports the offset it
// stopped at. Follow streams lines appended after an offset, waking on
// filesystem events and falling back to a slow poll when the directory cannot
// be watched. Truncation (log rotation) restarts reading from the top.
package logs
