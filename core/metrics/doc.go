// Package metrics defines the sink contracts used to observe the assignment
// flow. A MetricsSink records ranked recommendations; optional recorder
// interfaces cover assignment outcomes, unit acknowledgments, fallbacks and
// unit state snapshots. The factory helpers build sinks from configuration and
// return a MultiSink automatically when several are configured.
package metrics
