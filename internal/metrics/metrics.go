// Package metrics exposes controller telemetry to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kiln_controller/internal/models"
)

const namespace = "kiln"

// Metrics holds the controller collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	temperature  *prometheus.GaugeVec
	setpoint     prometheus.Gauge
	duty         prometheus.Gauge
	relay        prometheus.Gauge
	alarm        prometheus.Gauge
	state        *prometheus.GaugeVec
	sensorFaults *prometheus.CounterVec
	aborts       *prometheus.CounterVec
	segments     prometheus.Counter
	tickDuration prometheus.Histogram
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last accepted temperature per probe.",
		}, []string{"probe"}),
		setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "setpoint_celsius",
			Help:      "Commanded setpoint.",
		}),
		duty: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duty_ratio",
			Help:      "PID output duty fraction.",
		}),
		relay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_on",
			Help:      "1 while the heating relay is energised.",
		}),
		alarm: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alarm_on",
			Help:      "1 while the alarm output is active.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_state",
			Help:      "1 for the current run state, 0 otherwise.",
		}, []string{"state"}),
		sensorFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_faults_total",
			Help:      "Failed thermocouple reads by channel and kind.",
		}, []string{"channel", "kind"}),
		aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aborts_total",
			Help:      "Aborted runs by error code.",
		}, []string{"reason"}),
		segments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_started_total",
			Help:      "Program segments entered.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Control loop tick duration.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1},
		}),
	}
	m.registry.MustRegister(
		m.temperature, m.setpoint, m.duty, m.relay, m.alarm, m.state,
		m.sensorFaults, m.aborts, m.segments, m.tickDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSnapshot updates the gauges from one tick's snapshot.
func (m *Metrics) ObserveSnapshot(s models.RunSnapshot) {
	m.temperature.WithLabelValues("kiln").Set(s.KilnTempC)
	m.temperature.WithLabelValues("housing").Set(s.HousingTempC)
	m.temperature.WithLabelValues("internal").Set(s.InternalTempC)
	m.setpoint.Set(s.SetpointC)
	m.duty.Set(s.Duty)
	m.relay.Set(boolToFloat(s.RelayOn))
	m.alarm.Set(boolToFloat(s.AlarmOn))
	for _, st := range models.AllRunStates() {
		m.state.WithLabelValues(st.String()).Set(boolToFloat(st.String() == s.State))
	}
}

// ObserveEvent counts aborts and segment entries.
func (m *Metrics) ObserveEvent(ev models.KilnEvent) {
	switch ev.Type {
	case models.EventAborted:
		reason := "unknown"
		if meta, ok := ev.Metadata.(map[string]any); ok {
			if code, ok := meta["error_code"].(string); ok {
				reason = code
			}
		}
		m.aborts.WithLabelValues(reason).Inc()
	case models.EventSegmentAdvanced:
		m.segments.Inc()
	}
}

// SensorFault counts one failed read.
func (m *Metrics) SensorFault(channel, kind string) {
	m.sensorFaults.WithLabelValues(channel, kind).Inc()
}

// ObserveTick records how long one tick took.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
