// Package sinks implements concrete run event consumers: structured logging
// and Prometheus metrics. Each sink satisfies progress.Sink.
package sinks
