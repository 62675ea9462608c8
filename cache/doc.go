// Package cache holds results of recent tool executions so the pipeline
// can answer a repeat of the same request without re-running the binary.
//
// Entries are keyed by the request triple (tool, target, extra arguments)
// and bounded by a short TTL: a port scan's output describes live network
// state, so the cache is an idempotency buffer against retrying callers,
// not a source of truth. Tools whose definitions carry the unsafe flag are
// excluded by default for the same reason. Storage is in-memory only and
// dies with the process.
package cache
