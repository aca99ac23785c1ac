package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Generation outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// GenerationMetrics records LLM generation activity.
//
// Metrics:
//   - tesis_generations_started_total{provider}
//   - tesis_generations_finished_total{provider,outcome}
//   - tesis_generation_duration_seconds{provider,outcome}
//   - tesis_generation_streamed_bytes_total{provider}
//   - tesis_generation_section_errors_total{provider}
type GenerationMetrics struct {
	started       *prometheus.CounterVec
	finished      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	streamedBytes *prometheus.CounterVec
	sectionErrors *prometheus.CounterVec
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewGenerationMetrics registers the generation metrics on reg.
func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	f := promauto.With(reg)
	return &GenerationMetrics{
		started: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tesis_generations_started_total",
			Help: "Generations started, by provider",
		}, []string{"provider"}),
		finished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tesis_generations_finished_total",
			Help: "Generations finished, by provider and outcome",
		}, []string{"provider", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tesis_generation_duration_seconds",
			Help:    "Wall time of a generation stream",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 60, 120, 240},
		}, []string{"provider", "outcome"}),
		streamedBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tesis_generation_streamed_bytes_total",
			Help: "Bytes of model output received",
		}, []string{"provider"}),
		sectionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tesis_generation_section_errors_total",
			Help: "Error blocks reported by the model",
		}, []string{"provider"}),
	}
}

// Started counts a new generation.
func (m *GenerationMetrics) Started(provider string) {
	if m == nil {
		return
	}
	m.started.WithLabelValues(provider).Inc()
}

// Finished records the outcome and duration of a generation.
func (m *GenerationMetrics) Finished(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(provider, outcome).Inc()
	m.duration.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

// Streamed adds n bytes of model output.
func (m *GenerationMetrics) Streamed(provider string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.streamedBytes.WithLabelValues(provider).Add(float64(n))
}

// SectionError counts one error block.
func (m *GenerationMetrics) SectionError(provider string) {
	if m == nil {
		return
	}
	m.sectionErrors.WithLabelValues(provider).Inc()
}

// MaintenanceMetrics records background maintenance jobs.
//
// Metrics:
//   - tesis_maintenance_jobs_total{kind,status}
//   - tesis_maintenance_affected_total{kind}
type MaintenanceMetrics struct {
	jobs     *prometheus.CounterVec
	affected *prometheus.CounterVec
}

// NewMaintenanceMetrics registers the maintenance metrics on reg.
func NewMaintenanceMetrics(reg prometheus.Registerer) *MaintenanceMetrics {
	f := promauto.With(reg)
	return &MaintenanceMetrics{
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tesis_maintenance_jobs_total",
			Help: "Maintenance job attempts, by kind and final status",
		}, []string{"kind", "status"}),
		affected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tesis_maintenance_affected_total",
			Help: "Theses reset or exports removed by maintenance jobs",
		}, []string{"kind"}),
	}
}

// JobFinished counts one attempt
func (m *MaintenanceMetrics) JobFinished(kind, status string, affected int) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(kind, status).Inc()
	if affected > 0 {
		m.affected.WithLabelValues(kind).Add(float64(affected))
	}
}
