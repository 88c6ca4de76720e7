// Package prometheus renders selfauth counters in Prometheus text exposition
// format. Counters are named selfauth_*_total; the single histogram is
// selfauth_authenticate_latency_seconds. Nothing is registered globally; the
// caller mounts [Exporter.Handler].
package prometheus
