package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lamim/paperforge/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records API and pipeline metrics into its own registry
type Collector struct {
	logger   *slog.Logger
	registry *prometheus.Registry

	apiRequestDuration      *prometheus.HistogramVec
	rateLimiterWaitDuration *prometheus.HistogramVec
	sectionDuration         *prometheus.HistogramVec
	sectionsTotal           *prometheus.CounterVec
	sectionsByStatus        *prometheus.GaugeVec
	sectionInFlight         prometheus.Gauge
}

// NewCollector creates a new metrics collector backed by a fresh registry
func NewCollector(logger *slog.Logger) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		logger:   logger,
		registry: reg,
		apiRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paperforge_api_request_duration_seconds",
				Help:    "API request duration in seconds by model and status",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~200s
			},
			[]string{"model", "status"},
		),
		rateLimiterWaitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paperforge_rate_limiter_wait_duration_seconds",
				Help:    "Rate limiter wait duration in seconds by model",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			},
			[]string{"model"},
		),
		sectionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paperforge_section_generation_duration_seconds",
				Help:    "Time from selecting a section to recording its result",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~512s
			},
			[]string{"status"},
		),
		sectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperforge_sections_total",
				Help: "Sections resolved by the pipeline, by resulting status",
			},
			[]string{"status"},
		),
		sectionsByStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "paperforge_sections",
				Help: "Current number of sections in each status",
			},
			[]string{"status"},
		),
		sectionInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "paperforge_section_in_flight",
				Help: "1 while a section generation call is outstanding",
			},
		),
	}
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveAPIRequest records an API request duration
func (c *Collector) ObserveAPIRequest(model, status string, duration time.Duration) {
	c.apiRequestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
}

// ObserveRateLimitWait records rate limiter wait time
func (c *Collector) ObserveRateLimitWait(model string, wait time.Duration) {
	c.rateLimiterWaitDuration.WithLabelValues(model).Observe(wait.Seconds())
}

// SectionStarted marks a section as in flight
func (c *Collector) SectionStarted(models.Section) {
	c.sectionInFlight.Set(1)
}

// SectionFinished records the outcome of one pipeline step
func (c *Collector) SectionFinished(section models.Section, duration time.Duration, _ error) {
	status := string(section.Status)
	if section.Status == models.StatusPending {
		status = "interrupted"
	}
	c.sectionDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.sectionsTotal.WithLabelValues(status).Inc()
	c.sectionInFlight.Set(0)
}

// SetSectionCounts publishes the current status distribution
func (c *Collector) SetSectionCounts(counts map[models.SectionStatus]int) {
	for _, status := range []models.SectionStatus{
		models.StatusPending, models.StatusInProgress, models.StatusCompleted, models.StatusFailed,
	} {
		c.sectionsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// Serve exposes /metrics on addr until ctx is cancelled
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}()

	c.logger.Info("Serving metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
