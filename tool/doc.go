// Package tool holds the catalog of registered external command-line
// utilities a tool execution service is permitted to run.
//
// A Definition is immutable once registered. Registry tracks which
// definitions exist and which of those are currently enabled; GateManager
// hands out a per-tool counting semaphore so simultaneous executions of the
// same tool never exceed its declared concurrency.
package tool
