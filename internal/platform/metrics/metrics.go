package metrics

import (
	"net/http"

	"cdn-sim/internal/playback"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the CDN simulator.
// It implements playback.Recorder.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    prometheus.Counter
	errorsTotal      prometheus.Counter
	sourcesAssigned  *prometheus.CounterVec
	stallsConfirmed  *prometheus.CounterVec
	stepDownsTotal   *prometheus.CounterVec
	playFailures     *prometheus.CounterVec
	connectedViewers prometheus.Gauge
	activePlayers    prometheus.Gauge
}

var _ playback.Recorder = (*Metrics)(nil)

// New creates and registers Prometheus metrics for the simulator.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cdnsim_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cdnsim_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		sourcesAssigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdnsim_sources_assigned_total",
			Help: "Total number of sources assigned to a player",
		}, []string{"player_id"}),
		stallsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdnsim_stalls_confirmed_total",
			Help: "Total number of confirmed stalls by policy outcome",
		}, []string{"player_id", "reason"}),
		stepDownsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdnsim_step_downs_total",
			Help: "Total number of switches to the low-quality rendition",
		}, []string{"player_id"}),
		playFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdnsim_play_failures_total",
			Help: "Total number of play requests rejected by the media",
		}, []string{"player_id"}),
		connectedViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cdnsim_connected_viewers",
			Help: "Number of websocket clients attached to the simulator",
		}),
		activePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cdnsim_active_players",
			Help: "Number of players with an assigned source",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.sourcesAssigned,
		m.stallsConfirmed,
		m.stepDownsTotal,
		m.playFailures,
		m.connectedViewers,
		m.activePlayers,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SourceAssigned implements playback.Recorder.
func (m *Metrics) SourceAssigned(playerID string) {
	m.sourcesAssigned.WithLabelValues(playerID).Inc()
}

// StallConfirmed implements playback.Recorder. A stepped-down stall also
// counts as a step-down.
func (m *Metrics) StallConfirmed(playerID string, reason playback.StallReason) {
	m.stallsConfirmed.WithLabelValues(playerID, string(reason)).Inc()
	if reason == playback.ReasonSteppedDown {
		m.stepDownsTotal.WithLabelValues(playerID).Inc()
	}
}

// PlayFailed implements playback.Recorder.
func (m *Metrics) PlayFailed(playerID string) {
	m.playFailures.WithLabelValues(playerID).Inc()
}

// SetConnectedViewers sets the connected viewers gauge.
func (m *Metrics) SetConnectedViewers(n int) {
	m.connectedViewers.Set(float64(n))
}

// SetActivePlayers sets the active players gauge.
func (m *Metrics) SetActivePlayers(n int) {
	m.activePlayers.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
