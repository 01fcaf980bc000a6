// Package progress carries run telemetry for worker executions. Clients emit
// Events describing run lifecycle and each progress notification; a Hub
// batches them on a background goroutine and fans them out to pluggable sinks
// such as structured logs or Prometheus collectors. Emitting never blocks the
// synchronous notification path.
package progress
