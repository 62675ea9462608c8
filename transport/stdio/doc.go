// Package stdio exposes the execution pipeline over a newline-delimited
// JSON framing on stdin/stdout.
//
// Each tools/call request line names a callable; every enabled tool is one
// callable, and a tools/list request returns them all.
// The callable table is rebuilt from scratch whenever the registry's
// enabled set changes, so a disabled tool disappears from the surface
// atomically rather than lingering until its next call.
package stdio
