package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pipelineInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recruitsql_pipeline_invocations_total",
			Help: "Question answering invocations by outcome (ok or failure kind).",
		},
		[]string{"operation", "outcome"},
	)
	pipelineDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recruitsql_pipeline_duration_ms",
			Help:    "End-to-end question answering latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		},
		[]string{"operation"},
	)
	pipelineStageDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recruitsql_pipeline_stage_duration_ms",
			Help:    "Latency of a single pipeline stage in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000, 60000},
		},
		[]string{"stage"},
	)
	modelLockWaitMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recruitsql_model_lock_wait_ms",
			Help:    "Time spent waiting for the shared model handle in milliseconds.",
			Buckets: []float64{0, 1, 10, 100, 500, 1000, 5000, 10000, 30000, 60000},
		},
	)
	modelGenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recruitsql_model_generations_total",
			Help: "Model generations by model and outcome.",
		},
		[]string{"model", "outcome"},
	)
	modelGenerationDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recruitsql_model_generation_duration_ms",
			Help:    "Model generation latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		},
		[]string{"model"},
	)
	synthesisCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recruitsql_synthesis_cache_total",
			Help: "Synthesis cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)
	resultRowsTruncatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recruitsql_result_rows_truncated_total",
			Help: "Total number of results cut at the configured row cap.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		pipelineInvocationsTotal,
		pipelineDurationMs,
		pipelineStageDurationMs,
		modelLockWaitMs,
		modelGenerationsTotal,
		modelGenerationDurationMs,
		synthesisCacheTotal,
		resultRowsTruncatedTotal,
	)
}

func ObservePipeline(operation, outcome string, elapsed time.Duration) {
	pipelineInvocationsTotal.WithLabelValues(operation, outcome).Inc()
	pipelineDurationMs.WithLabelValues(operation).Observe(float64(elapsed.Milliseconds()))
}

func ObserveStage(stage string, elapsed time.Duration) {
	pipelineStageDurationMs.WithLabelValues(stage).Observe(float64(elapsed.Milliseconds()))
}

func ObserveModelLockWait(elapsed time.Duration) {
	modelLockWaitMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveGeneration(model, outcome string, elapsed time.Duration) {
	modelGenerationsTotal.WithLabelValues(model, outcome).Inc()
	modelGenerationDurationMs.WithLabelValues(model).Observe(float64(elapsed.Milliseconds()))
}

func ObserveSynthesisCache(result string) {
	synthesisCacheTotal.WithLabelValues(result).Inc()
}

func IncrementResultTruncated() {
	resultRowsTruncatedTotal.Inc()
}
