// Package prometheus exports engine counters through
// github.com/prometheus/client_golang.
//
// [Exporter] is a [prometheus.Collector] that reads a fresh snapshot on every
// scrape. [Exporter.Handler] serves it from a private registry, so nothing is
// registered globally.
package prometheus
