// Package httpserver exposes the execution pipeline over HTTP: tool
// listing, execution, enable/disable, health probes, a Server-Sent Events
// health stream, and a metrics readout.
//
// The transport is a thin adapter. It translates HTTP requests into
// pipeline calls and pipeline results into status codes; it holds no tool
// state of its own and never reaches around the pipeline's contract.
package httpserver
