package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "capdabd"

// Prometheus is the real Metrics implementation, registered against its
// own registry so cmd/capdabd controls exactly what the /metrics
// endpoint serves instead of relying on the global default registry.
type Prometheus struct {
	registry *prometheus.Registry

	alertsReceived   prometheus.Counter
	alertsDropped    prometheus.Counter
	activeAlerts     prometheus.Gauge
	tickDuration     prometheus.Histogram
	muxCommandLat    prometheus.Histogram
	muxCommandFailed prometheus.Counter
	streamRestarts   *prometheus.CounterVec
	streamState      *prometheus.GaugeVec
}

// NewPrometheus constructs and registers every collector.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		alertsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_received_total",
			Help: "Total number of CAP bulletins accepted by the intake server.",
		}),
		alertsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_dropped_total",
			Help: "Total number of CAP bulletins dropped because the intake queue was full.",
		}),
		activeAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_alerts",
			Help: "Number of alerts currently in the scheduler's active set.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "scheduler_tick_duration_seconds",
			Help:    "Duration of one scheduler tick.",
			Buckets: prometheus.DefBuckets,
		}),
		muxCommandLat: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "mux_command_duration_seconds",
			Help:    "Duration of a mux control channel round trip.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		muxCommandFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "mux_command_failures_total",
			Help: "Total number of mux control channel commands that failed.",
		}),
		streamRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stream_restarts_total",
			Help: "Total number of encoder restarts, by stream.",
		}, []string{"stream"}),
		streamState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "stream_state",
			Help: "1 if the stream is currently in the given state, 0 otherwise.",
		}, []string{"stream", "state"}),
	}

	reg.MustRegister(
		p.alertsReceived,
		p.alertsDropped,
		p.activeAlerts,
		p.tickDuration,
		p.muxCommandLat,
		p.muxCommandFailed,
		p.streamRestarts,
		p.streamState,
	)
	return p
}

func (p *Prometheus) AlertReceived()         { p.alertsReceived.Inc() }
func (p *Prometheus) AlertDropped()          { p.alertsDropped.Inc() }
func (p *Prometheus) SetActiveAlertCount(n int) { p.activeAlerts.Set(float64(n)) }

func (p *Prometheus) ObserveTickDuration(d time.Duration) {
	p.tickDuration.Observe(d.Seconds())
}

func (p *Prometheus) ObserveMuxCommandLatency(d time.Duration) {
	p.muxCommandLat.Observe(d.Seconds())
}

func (p *Prometheus) MuxCommandFailed() { p.muxCommandFailed.Inc() }

func (p *Prometheus) StreamRestarted(stream string) {
	p.streamRestarts.WithLabelValues(stream).Inc()
}

var knownStates = []string{"Running", "Stopped", "Misconfigured", "FailedToStart"}

func (p *Prometheus) SetStreamState(stream, state string) {
	for _, s := range knownStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		p.streamState.WithLabelValues(stream, s).Set(value)
	}
}

// Handler returns the promhttp handler bound to this registry, for
// mounting at the --metrics-listen address.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
