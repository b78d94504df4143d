// Package internaldefs holds the metric names, help strings and histogram
// bounds used when engine counters are exported.
//
// It must not import an exporter package or perform I/O.
package internaldefs
