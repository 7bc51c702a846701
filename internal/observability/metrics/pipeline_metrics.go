package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	JobIngest       = "ro_ingest"
	JobSnapshots    = "ro_snapshots"
	JobDailyMetrics = "daily_metrics"
)

const (
	ResultCreated = "created"
	ResultUpdated = "updated"
	ResultSkipped = "skipped"
	ResultError   = "error"
)

// Config carries service identity labels for the pipeline metrics.
type Config struct {
	ServiceName string
	Environment string
}

// PipelineMetrics captures batch run health for the GP pipeline.
type PipelineMetrics struct {
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	unitsTotal  *prometheus.CounterVec
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics registry.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the singleton pipeline metrics registry using
// config labels.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest resets the pipeline metrics singleton for tests.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "shopledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "shopledger_pipeline_runs_total",
		Help:        "Pipeline batch runs by job and status.",
		ConstLabels: constLabels,
	}, []string{"job", "status"})
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "shopledger_pipeline_run_duration_seconds",
		Help:        "Pipeline batch run latency to keep rebuild windows bounded.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		ConstLabels: constLabels,
	}, []string{"job"})
	unitsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "shopledger_pipeline_units_total",
		Help:        "Per-unit outcomes (RO or day) by job and result.",
		ConstLabels: constLabels,
	}, []string{"job", "result"})

	registerer.MustRegister(runs, runDuration, unitsTotal)

	return &PipelineMetrics{
		runs:        runs,
		runDuration: runDuration,
		unitsTotal:  unitsTotal,
	}
}

// IncRun increments the run counter for a pipeline job.
func (m *PipelineMetrics) IncRun(job, status string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(job, status).Inc()
}

// ObserveRunDuration records batch run latency in seconds.
func (m *PipelineMetrics) ObserveRunDuration(job string, duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// AddUnits increments the per-unit outcome counter by count.
func (m *PipelineMetrics) AddUnits(job, result string, count int) {
	if m == nil || m.unitsTotal == nil || count <= 0 {
		return
	}
	m.unitsTotal.WithLabelValues(job, result).Add(float64(count))
}
