package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry       *prometheus.Registry
	exportsTotal   *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	activeExports  prometheus.Gauge
	itemsTotal     *prometheus.CounterVec
	itemDuration   *prometheus.HistogramVec
	archiveBytes   prometheus.Histogram
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgrade_worker_exports_total",
			Help: "Batch exports handled by the worker, by final status.",
		}, []string{"status"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelgrade_worker_export_duration_seconds",
			Help:    "Wall time of each batch export including archive upload.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		activeExports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelgrade_worker_active_exports",
			Help: "Batch exports currently running.",
		}),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgrade_worker_items_total",
			Help: "Assets attempted by batch exports, by outcome.",
		}, []string{"format", "status"}),
		itemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelgrade_worker_item_duration_seconds",
			Help:    "Time to fetch, render and encode one asset.",
			Buckets: prometheus.DefBuckets,
		}, []string{"format"}),
		archiveBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixelgrade_worker_archive_bytes",
			Help:    "Size of uploaded export archives.",
			Buckets: prometheus.ExponentialBuckets(64<<10, 4, 10),
		}),
	}

	registry.MustRegister(
		m.exportsTotal,
		m.exportDuration,
		m.activeExports,
		m.itemsTotal,
		m.itemDuration,
		m.archiveBytes,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
