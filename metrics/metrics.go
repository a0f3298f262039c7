// Package metrics exposes controller telemetry to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/vpn"
)

const namespace = "vpnpanel"

var _ vpn.Recorder = (*Metrics)(nil)

// Metrics collects Prometheus counters and histograms for the VPN section.
type Metrics struct {
	registry          *prometheus.Registry
	transitionsTotal  *prometheus.CounterVec
	state             *prometheus.GaugeVec
	backendCallsTotal *prometheus.CounterVec
	backendSeconds    *prometheus.HistogramVec
	discardedTotal    *prometheus.CounterVec
}

var allStates = []vpn.State{
	vpn.StateWaiting, vpn.StateDown, vpn.StateConnecting, vpn.StateUp,
	vpn.StateDisconnecting, vpn.StateFailed, vpn.StateDisabled,
	vpn.StateNoHelpers, vpn.StateNoPolicyAgent,
}

// New constructs a metrics registry and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	transitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vpn",
			Name:      "transitions_total",
			Help:      "Total number of VPN state transitions.",
		},
		[]string{"from", "to"},
	)
	state := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vpn",
			Name:      "state",
			Help:      "1 for the current VPN state, 0 otherwise.",
		},
		[]string{"state"},
	)
	backendCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "calls_total",
			Help:      "Total backend calls by operation and result.",
		},
		[]string{"op", "result"},
	)
	backendSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "call_duration_seconds",
			Help:      "Time spent in backend calls.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"op"},
	)
	discardedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vpn",
			Name:      "discarded_total",
			Help:      "Backend results dropped because they no longer applied.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(
		transitionsTotal,
		state,
		backendCallsTotal,
		backendSeconds,
		discardedTotal,
	)

	for _, s := range allStates {
		state.WithLabelValues(s.String()).Set(0)
	}
	state.WithLabelValues(vpn.StateWaiting.String()).Set(1)

	return &Metrics{
		registry:          registry,
		transitionsTotal:  transitionsTotal,
		state:             state,
		backendCallsTotal: backendCallsTotal,
		backendSeconds:    backendSeconds,
		discardedTotal:    discardedTotal,
	}
}

// Handler returns an HTTP handler that serves the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Transition counts a state change and moves the state gauge.
func (m *Metrics) Transition(from, to vpn.State) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	m.state.WithLabelValues(from.String()).Set(0)
	m.state.WithLabelValues(to.String()).Set(1)
}

// BackendCall records one backend call.
func (m *Metrics) BackendCall(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.backendCallsTotal.WithLabelValues(op, result(err)).Inc()
	m.backendSeconds.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Discarded counts a dropped completion.
func (m *Metrics) Discarded(reason string) {
	if m == nil {
		return
	}
	m.discardedTotal.WithLabelValues(reason).Inc()
}

// result labels err by its kind.
func result(err error) string {
	kinds := []struct {
		err   error
		label string
	}{
		{common.ErrMissingCertificate, "missing_certificate"},
		{common.ErrPolicyAgentMissing, "no_policy_agent"},
		{common.ErrNotRunning, "not_running"},
		{common.ErrUnknownStatus, "unknown_status"},
		{common.ErrAuth, "auth"},
		{common.ErrStart, "start"},
		{common.ErrInstall, "install"},
		{common.ErrEnable, "enable"},
		{common.ErrNetwork, "network"},
	}
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.label
		}
	}
	return "error"
}
