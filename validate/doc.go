// Package validate checks a tool execution request against the target and
// argument allow-list policy before anything is scheduled.
//
// Validate is a pure function: it never touches the filesystem, the network,
// or a child process, and it never mutates the request it is given. A
// request that fails validation never reaches the executor. The pipeline
// calls Validate after acquiring the tool's concurrency gate, inside the
// breaker call, so a rejected request has briefly held a gate slot.
package validate
