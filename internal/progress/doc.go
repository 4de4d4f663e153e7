// Package progress carries run telemetry: the events a worker emits while it
// fetches, a non-blocking hub that batches them on a background goroutine, and
// the Sink interface that log and Prometheus exporters implement.
//
// The hub is lossy under backpressure. Callers that need every per-item
// notification read the worker's own progress channel instead.
package progress
