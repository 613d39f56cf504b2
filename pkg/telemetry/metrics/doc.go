// Package metrics provides the Prometheus metrics collector for the relay:
// request counters and latencies, stream chunk counts, credential pool
// gauges, and login session counters, exposed over a /metrics handler.
package metrics
