// Package preflight provides readiness checks for the binaries, devices and
// filesystem paths mediaconv depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to start workers when a
//     required check fails, so no job is claimed against a broken host.
//   - The CLI "mediaconv preflight" command renders every Result as a table.
//
// MemorySnapshot is also used by the workflow to attach host memory figures
// to hardware-memory failures.
package preflight
