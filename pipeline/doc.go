// Package pipeline wires the validator, concurrency gate, circuit breaker,
// process executor, result builder, metrics sink, and tool registry into the
// single orchestrated Execute call a transport invokes per request.
package pipeline
