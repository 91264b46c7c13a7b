package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammad-safakhou/seeker/config"
)

// Telemetry exposes the engine's operational counters over Prometheus.
// A nil *Telemetry is valid and records nothing, so tests can pass nil.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	providerCalls  *prometheus.CounterVec // provider, outcome
	rotations      *prometheus.CounterVec // pool
	exhaustions    *prometheus.CounterVec // pool
	searchLayers   *prometheus.CounterVec // outcome
	rerankChunks   *prometheus.CounterVec // outcome
	phaseDurations *prometheus.HistogramVec
}

// NewTelemetry registers collectors on the default registerer.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	return NewTelemetryWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewTelemetryWithRegistry registers collectors on the given registerer;
// tests pass a private registry to avoid duplicate registration.
func NewTelemetryWithRegistry(cfg config.TelemetryConfig, reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seeker_provider_calls_total",
			Help: "Outbound provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seeker_credential_rotations_total",
			Help: "Credential rotations per pool.",
		}, []string{"pool"}),
		exhaustions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seeker_pool_exhaustions_total",
			Help: "Requests that exhausted every credential in a pool.",
		}, []string{"pool"}),
		searchLayers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seeker_search_layers_total",
			Help: "Executed search layers by outcome.",
		}, []string{"outcome"}),
		rerankChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seeker_rerank_chunks_total",
			Help: "Rerank chunk calls by outcome.",
		}, []string{"outcome"}),
		phaseDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seeker_phase_duration_seconds",
			Help:    "Duration of orchestration phases.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
	}
	reg.MustRegister(t.providerCalls, t.rotations, t.exhaustions, t.searchLayers, t.rerankChunks, t.phaseDurations)
	return t
}

func (t *Telemetry) RecordProviderCall(provider string, ok bool) {
	if t == nil {
		return
	}
	t.providerCalls.WithLabelValues(provider, outcome(ok)).Inc()
}

func (t *Telemetry) RecordRotation(pool string) {
	if t == nil {
		return
	}
	t.rotations.WithLabelValues(pool).Inc()
}

func (t *Telemetry) RecordExhaustion(pool string) {
	if t == nil {
		return
	}
	t.exhaustions.WithLabelValues(pool).Inc()
	if t.config.PeriodicLogs {
		t.logger.Printf("credential pool exhausted: %s", pool)
	}
}

func (t *Telemetry) RecordSearchLayer(ok bool) {
	if t == nil {
		return
	}
	t.searchLayers.WithLabelValues(outcome(ok)).Inc()
}

func (t *Telemetry) RecordRerankChunk(ok bool) {
	if t == nil {
		return
	}
	t.rerankChunks.WithLabelValues(outcome(ok)).Inc()
}

func (t *Telemetry) ObservePhase(phase string, d time.Duration) {
	if t == nil {
		return
	}
	t.phaseDurations.WithLabelValues(phase).Observe(d.Seconds())
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
