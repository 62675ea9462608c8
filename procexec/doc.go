// Package procexec spawns and supervises a single child process on behalf
// of one tool execution request.
//
// The child runs in its own process group with a minimal, replaced
// environment and (on POSIX platforms) best-effort resource caps applied
// immediately after Start. Output is captured concurrently on stdout and
// stderr with a per-stream byte cap; bytes past the cap are discarded but
// the stream keeps draining so the child never blocks writing to a full
// pipe. A timeout triggers a whole-process-group kill before Execute
// returns.
//
// procexec never touches the circuit breaker, the concurrency gate, or
// metrics. It is pure process I/O and supervision.
package procexec
