// Package metrics exposes the daemon's Prometheus collectors. All methods are
// safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"envmon-go/types"
)

const namespace = "envmon"

type Metrics struct {
	gatherer prometheus.Gatherer

	tickDuration prometheus.Histogram
	ticks        prometheus.Counter
	tickAborts   prometheus.Counter
	counter      prometheus.Gauge

	sensorErrors *prometheus.CounterVec
	published    prometheus.Counter
	publishFails prometheus.Counter
	ntpSyncs     *prometheus.CounterVec
	brokerEvents *prometheus.CounterVec

	reading *prometheus.GaugeVec
}

// New registers the collectors on reg. Passing prometheus.NewRegistry() keeps
// tests isolated from the default registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one loop tick body.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Loop ticks started.",
		}),
		tickAborts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_aborts_total",
			Help:      "Ticks whose remaining steps were skipped after a sensor failure.",
		}),
		counter: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cadence_counter",
			Help:      "Current cadence counter value.",
		}),
		sensorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_errors_total",
			Help:      "Failed sensor reads by sensor.",
		}, []string{"sensor"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_published_total",
			Help:      "Telemetry messages handed to the broker.",
		}),
		publishFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_publish_failures_total",
			Help:      "Telemetry publishes rejected by the broker client.",
		}),
		ntpSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ntp_syncs_total",
			Help:      "Clock resync attempts by result.",
		}, []string{"result"}),
		brokerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_events_total",
			Help:      "Messaging events drained by the pump, by kind.",
		}, []string{"kind"}),
		reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading",
			Help:      "Last sampled value by quantity.",
		}, []string{"quantity"}),
	}

	reg.MustRegister(
		m.tickDuration, m.ticks, m.tickAborts, m.counter,
		m.sensorErrors, m.published, m.publishFails,
		m.ntpSyncs, m.brokerEvents, m.reading,
	)
	return m
}

func (m *Metrics) Tick(start time.Time, counter uint32) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.counter.Set(float64(counter))
	m.tickDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) TickAborted() {
	if m == nil {
		return
	}
	m.tickAborts.Inc()
}

func (m *Metrics) SensorError(sensor string) {
	if m == nil {
		return
	}
	m.sensorErrors.WithLabelValues(sensor).Inc()
}

func (m *Metrics) Published(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.published.Inc()
		return
	}
	m.publishFails.Inc()
}

func (m *Metrics) NTPSync(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.ntpSyncs.WithLabelValues(result).Inc()
}

func (m *Metrics) BrokerEvent(kind string) {
	if m == nil {
		return
	}
	m.brokerEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) Snapshot(s types.Snapshot) {
	if m == nil {
		return
	}
	m.reading.WithLabelValues("air_temp_c").Set(s.AirTemp)
	m.reading.WithLabelValues("air_humidity_pct").Set(s.AirHumidity)
	m.reading.WithLabelValues("light_lux").Set(s.Illuminance)
	m.reading.WithLabelValues("earth_raw").Set(float64(s.MoistureRaw))
	m.reading.WithLabelValues("earth_volts").Set(s.MoistureVolts())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
