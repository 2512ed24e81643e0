// Package metrics exposes probe and restart counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fgeck/hldswatch/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "hldswatch"

// Metrics holds the collectors of a monitor. Each instance owns its registry.
type Metrics struct {
	registry      *prometheus.Registry
	probes        *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	up            *prometheus.GaugeVec
	transitions   *prometheus.CounterVec
	restarts      *prometheus.CounterVec
}

// New creates and registers the monitor collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probes_total",
				Help:      "Liveness probes by target and outcome.",
			},
			[]string{"target", "result"},
		),
		probeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "probe_duration_seconds",
				Help:      "Time spent probing a target, retries included.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"target"},
		),
		up: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "target_up",
				Help:      "1 if the last probe of the target succeeded.",
			},
			[]string{"target"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "target_state_total",
				Help:      "States entered, by target.",
			},
			[]string{"target", "state"},
		),
		restarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restarts_total",
				Help:      "Restart attempts by target and whether the commands were issued.",
			},
			[]string{"target", "issued"},
		),
	}

	m.registry.MustRegister(m.probes, m.probeDuration, m.up, m.transitions, m.restarts)
	return m
}

// ObserveProbe records the outcome of a probe.
func (m *Metrics) ObserveProbe(target string, result *models.ProbeResult) {
	outcome := "down"
	up := 0.0
	if result.Alive {
		outcome = "alive"
		up = 1
	}

	m.probes.WithLabelValues(target, outcome).Inc()
	m.probeDuration.WithLabelValues(target).Observe(result.Duration.Seconds())
	m.up.WithLabelValues(target).Set(up)
}

// ObserveRestart records a restart attempt.
func (m *Metrics) ObserveRestart(target string, issued bool) {
	label := "false"
	if issued {
		label = "true"
	}
	m.restarts.WithLabelValues(target, label).Inc()
}

// ObserveState records a state the target entered.
func (m *Metrics) ObserveState(target string, state models.TargetState) {
	m.transitions.WithLabelValues(target, string(state)).Inc()
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Debug().Str("addr", addr).Msg("metrics listener starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
