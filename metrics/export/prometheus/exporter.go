package prometheus

import (
	"net/http"

	sias "github.com/MrEthical07/sias"
	"github.com/MrEthical07/sias/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() sias.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter collects engine metrics on demand.
type Exporter struct {
	source   metricsSource
	counters map[sias.MetricID]*prometheus.Desc
	hists    map[sias.MetricID]*prometheus.Desc
	dropped  *prometheus.Desc
	registry *prometheus.Registry
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter returns an exporter reading from engine.
func NewExporter(engine *sias.Engine) *Exporter {
	return NewExporterFromSource(engine)
}

// NewExporterFromSource returns an exporter over any snapshot source.
func NewExporterFromSource(source metricsSource) *Exporter {
	e := &Exporter{
		source:   source,
		counters: make(map[sias.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs)),
		hists:    make(map[sias.MetricID]*prometheus.Desc, len(internaldefs.HistogramDefs)),
		dropped:  prometheus.NewDesc(internaldefs.AuditDroppedName, "Audit events dropped under backpressure.", nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for _, def := range internaldefs.HistogramDefs {
		e.hists[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}

	e.registry = prometheus.NewRegistry()
	e.registry.MustRegister(e)
	return e
}

// Registry returns the private registry the exporter is registered with.
// Callers may add their own collectors to it.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Describe implements [prometheus.Collector].
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range internaldefs.CounterDefs {
		ch <- e.counters[def.ID]
	}
	for _, def := range internaldefs.HistogramDefs {
		ch <- e.hists[def.ID]
	}
	ch <- e.dropped
}

// Collect implements [prometheus.Collector]. A disabled engine yields only
// the audit drop counter.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()

	for _, def := range internaldefs.CounterDefs {
		v, ok := snapshot.Counters[def.ID]
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(e.counters[def.ID], prometheus.CounterValue, float64(v))
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, bound := range internaldefs.HistogramBounds {
			buckets[bound] = cumulative[i]
		}
		// Observations are bucketed only, so the sum is not tracked.
		ch <- prometheus.MustNewConstHistogram(e.hists[def.ID], cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(e.dropped, prometheus.CounterValue, float64(e.source.AuditDropped()))
}
