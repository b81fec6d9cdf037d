// Package metrics exposes Prometheus collectors for the sampler, the
// dashboard shell and the web layer.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	ticks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proxtrend",
			Subsystem: "sampler",
			Name:      "ticks_total",
			Help:      "Number of samples taken while running.",
		},
	)
	readFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proxtrend",
			Subsystem: "sampler",
			Name:      "read_failures_total",
			Help:      "Number of samples that fell back to (false, false).",
		},
	)
	historySamples = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "proxtrend",
			Subsystem: "sampler",
			Name:      "history_samples",
			Help:      "Entries retained in the active history, step duplicates included.",
		},
	)
	paused = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "proxtrend",
			Subsystem: "sampler",
			Name:      "paused",
			Help:      "1 while the active bed is paused.",
		},
	)
	edgesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proxtrend",
			Subsystem: "sampler",
			Name:      "edges_total",
			Help:      "Debounced transitions per channel and direction.",
		}, []string{"channel", "direction"},
	)
	bedSwitches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proxtrend",
			Subsystem: "dashboard",
			Name:      "bed_switches_total",
			Help:      "Number of bed selections, by outcome of the source connection.",
		}, []string{"outcome"},
	)
	renderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "proxtrend",
			Subsystem: "web",
			Name:      "chart_render_seconds",
			Help:      "Time to render the chart PNG.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		},
	)
	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "proxtrend",
			Subsystem: "web",
			Name:      "websocket_clients",
			Help:      "Connected websocket status clients.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{ticks, readFailures, historySamples, paused, edgesTotal, bedSwitches, renderDuration, wsClients}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the metrics collected by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncTick(failed bool) {
	if regOK.Load() {
		ticks.Inc()
		if failed {
			readFailures.Inc()
		}
	}
}

func SetHistorySamples(n int) {
	if regOK.Load() {
		historySamples.Set(float64(n))
	}
}

func SetPaused(p bool) {
	if regOK.Load() {
		var v float64
		if p {
			v = 1
		}
		paused.Set(v)
	}
}

func IncEdge(channel, direction string) {
	if regOK.Load() {
		edgesTotal.WithLabelValues(channel, direction).Inc()
	}
}

// IncBedSwitch counts a bed selection. connected reports whether the source
// opened.
func IncBedSwitch(connected bool) {
	if regOK.Load() {
		outcome := "connected"
		if !connected {
			outcome = "fallback"
		}
		bedSwitches.WithLabelValues(outcome).Inc()
	}
}

func ObserveRender(seconds float64) {
	if regOK.Load() {
		renderDuration.Observe(seconds)
	}
}

func SetWSClients(n int) {
	if regOK.Load() {
		wsClients.Set(float64(n))
	}
}
