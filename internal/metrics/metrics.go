// Package metrics exposes Prometheus counters for listing fetches, mirror
// probes and playback sessions. A nil *Metrics is valid and records nothing,
// so components can take one optionally.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ListingFetches *prometheus.CounterVec
	ProbeResults   *prometheus.CounterVec
	ProbeLatency   prometheus.Histogram
	Resolutions    *prometheus.CounterVec
	SessionEvents  *prometheus.CounterVec
	Credentials    *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ListingFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livetv",
			Name:      "listing_fetches_total",
			Help:      "Listing fetches by kind (channels, events, base_url) and result.",
		}, []string{"kind", "result"}),
		ProbeResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livetv",
			Name:      "mirror_probes_total",
			Help:      "Mirror probe outcomes by status.",
		}, []string{"status"}),
		ProbeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "livetv",
			Name:      "mirror_probe_seconds",
			Help:      "Mirror probe latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 4, 8},
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livetv",
			Name:      "stream_resolutions_total",
			Help:      "Stream URL resolutions by source (candidate, fallback, guess).",
		}, []string{"source"}),
		SessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livetv",
			Name:      "playback_session_events_total",
			Help:      "Playback session lifecycle events (started, failed, stopped).",
		}, []string{"event"}),
		Credentials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livetv",
			Name:      "credential_acquisitions_total",
			Help:      "Browser cookie harvests by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.ListingFetches, m.ProbeResults, m.ProbeLatency, m.Resolutions, m.SessionEvents, m.Credentials)
	}
	return m
}

func (m *Metrics) ListingFetch(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ListingFetches.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Probe(status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.ProbeResults.WithLabelValues(status).Inc()
	m.ProbeLatency.Observe(latency.Seconds())
}

func (m *Metrics) Resolution(source string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(source).Inc()
}

func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) Credential(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "none"
	}
	m.Credentials.WithLabelValues(result).Inc()
}

// Serve exposes g on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
