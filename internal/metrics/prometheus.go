package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exposes the pipeline's counters as Prometheus metrics on a
// dedicated registry (not the global default), with per-subsystem
// CounterVec/Gauge fields and the exposition format owned by promhttp.HandlerFor.
type Exporter struct {
	registry *prometheus.Registry

	eventsProcessed   prometheus.Counter
	anomaliesDetected prometheus.Counter
	activeAlerts      prometheus.Gauge
	avgERI            prometheus.Gauge
	uptimeSeconds     prometheus.Gauge
	latencyP50        prometheus.Gauge
	latencyP99        prometheus.Gauge
	tamperDetections  *prometheus.CounterVec
}

// NewExporter constructs an Exporter with a fresh, isolated registry.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	e := &Exporter{
		registry: reg,
		eventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cetp_monitor_events_processed_total",
			Help: "Total readings processed across all sensors.",
		}),
		anomaliesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cetp_monitor_anomalies_detected_total",
			Help: "Total confirmed anomalies forwarded past the persistence gate.",
		}),
		activeAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cetp_monitor_active_alerts_count",
			Help: "Alerts emitted by the alert router in the current run.",
		}),
		avgERI: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cetp_monitor_avg_eri_last_5min",
			Help: "Rolling 5-minute average Environmental Risk Index.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cetp_monitor_pipeline_uptime_seconds",
			Help: "Seconds since the pipeline process started.",
		}),
		latencyP50: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cetp_monitor_latency_p50_ms",
			Help: "Rolling p50 alert processing latency in milliseconds.",
		}),
		latencyP99: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cetp_monitor_latency_p99_ms",
			Help: "Rolling p99 alert processing latency in milliseconds.",
		}),
		tamperDetections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cetp_monitor_tamper_detections_total",
			Help: "Anti-cheat detections by tamper_type.",
		}, []string{"tamper_type"}),
	}

	reg.MustRegister(
		e.eventsProcessed, e.anomaliesDetected, e.activeAlerts, e.avgERI,
		e.uptimeSeconds, e.latencyP50, e.latencyP99, e.tamperDetections,
	)
	return e
}

// Update mirrors the current Snapshot and latency percentiles into the
// registered gauges/counters.
func (e *Exporter) Update(snap Snapshot, p50, p99 float64) {
	e.activeAlerts.Set(float64(snap.ActiveAlertsCount))
	e.avgERI.Set(snap.AvgERILast5Min)
	e.uptimeSeconds.Set(snap.PipelineUptimeSeconds)
	e.latencyP50.Set(p50)
	e.latencyP99.Set(p99)
}

// IncEventsProcessed increments the events counter by one.
func (e *Exporter) IncEventsProcessed() { e.eventsProcessed.Inc() }

// IncAnomaliesDetected increments the anomalies counter by one.
func (e *Exporter) IncAnomaliesDetected() { e.anomaliesDetected.Inc() }

// IncTamperDetection increments the tamper counter for the given type.
func (e *Exporter) IncTamperDetection(tamperType string) {
	e.tamperDetections.WithLabelValues(tamperType).Inc()
}

// Handler returns an http.Handler exposing the registry in Prometheus
// text exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
