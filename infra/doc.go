// Package infra holds the adapters around the assignment core: the Paho
// MQTT notifier and incident intake, unit telemetry, the Prometheus and
// InfluxDB sinks, Sentry and the zerolog logger. Adapters implement
// interfaces declared under core and never import each other's internals.
package infra
