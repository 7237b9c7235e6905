// ABOUTME: Prometheus collectors for agent requests, subprocess exits and sessions
// ABOUTME: Collectors implements relay.Observer and serves /metrics over HTTP

package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/coven-operator/internal/relay"
)

// Collectors holds the operator's metrics on their own registry.
type Collectors struct {
	registry *prometheus.Registry

	// RequestsTotal counts finished requests by provider and outcome
	RequestsTotal *prometheus.CounterVec
	// RequestDuration tracks wall time per request
	RequestDuration *prometheus.HistogramVec
	// RequestsInFlight tracks agent turns currently running
	RequestsInFlight *prometheus.GaugeVec
	// BusyRejections counts prompts rejected because the conversation was busy
	BusyRejections prometheus.Counter
	// ProcessExits counts agent subprocess exits by exit code
	ProcessExits *prometheus.CounterVec
	// SessionsCaptured counts session ids reported by agents
	SessionsCaptured *prometheus.CounterVec
}

var _ relay.Observer = (*Collectors)(nil)

// New registers the operator collectors plus the Go and process collectors
// on a fresh registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collectors{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coven_operator_requests_total",
				Help: "Total number of agent requests by outcome",
			},
			[]string{"provider", "outcome"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coven_operator_request_duration_seconds",
				Help:    "Agent request duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"provider", "outcome"},
		),
		RequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coven_operator_requests_in_flight",
				Help: "Number of agent requests currently running",
			},
			[]string{"provider"},
		),
		BusyRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "coven_operator_busy_rejections_total",
				Help: "Total number of prompts rejected because a request was already running",
			},
		),
		ProcessExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coven_operator_process_exits_total",
				Help: "Total number of agent subprocess exits by exit code",
			},
			[]string{"provider", "code"},
		),
		SessionsCaptured: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coven_operator_sessions_captured_total",
				Help: "Total number of resumable session ids reported by agents",
			},
			[]string{"provider"},
		),
	}
}

// RequestStarted increments the in-flight gauge.
func (c *Collectors) RequestStarted(provider string) {
	c.RequestsInFlight.WithLabelValues(provider).Inc()
}

// RequestFinished decrements the in-flight gauge and records the outcome.
func (c *Collectors) RequestFinished(provider string, outcome relay.Outcome, duration time.Duration) {
	c.RequestsInFlight.WithLabelValues(provider).Dec()
	c.RequestsTotal.WithLabelValues(provider, string(outcome)).Inc()
	c.RequestDuration.WithLabelValues(provider, string(outcome)).Observe(duration.Seconds())
}

// BusyRejected counts a rejected prompt.
func (c *Collectors) BusyRejected() {
	c.BusyRejections.Inc()
}

// SessionCaptured counts a session id.
func (c *Collectors) SessionCaptured(provider string) {
	c.SessionsCaptured.WithLabelValues(provider).Inc()
}

// ProcessExited records a subprocess exit. Signalled exits report -1.
func (c *Collectors) ProcessExited(provider string, exitCode int) {
	c.ProcessExits.WithLabelValues(provider, strconv.Itoa(exitCode)).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes the metrics handler at path on addr until ctx is done.
func (c *Collectors) Serve(ctx context.Context, addr, path string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", "addr", addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
