// Package otel exposes selfauth counters as OpenTelemetry observable
// instruments. The caller owns the MeterProvider and passes a Meter in.
package otel
