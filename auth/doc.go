// Package auth gates the HTTP transport of the tool execution service.
//
// Callers authenticate with a provisioned API key and are mapped to an
// Operator whose roles decide which registered tools they may list,
// execute, or manage. The package is ingress-only: nothing in the
// execution pipeline depends on it, and the stdio transport (always a
// direct child of the calling process) runs without it.
package auth
