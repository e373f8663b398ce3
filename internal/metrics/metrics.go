// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the pipeline collectors.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// Pipeline metrics
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camgw_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"pipeline", "outcome"}, // outcome: "success" or the error type
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "camgw_pipeline_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline", "stage"},
	)

	RemoteOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camgw_remote_operations_total",
			Help: "Total number of remote operations (camera calls, ffmpeg runs) by result",
		},
		[]string{"pipeline", "result"},
	)

	StagedResources = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "camgw_staged_resources",
			Help: "Number of scratch resources currently allocated",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camgw_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "camgw_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)
)

// RecordPipelineRun counts a finished pipeline run.
func RecordPipelineRun(pipeline, outcome string) {
	PipelineRuns.WithLabelValues(pipeline, outcome).Inc()
}

// RecordStage observes how long a stage took.
func RecordStage(pipeline, stage string, d time.Duration) {
	StageDuration.WithLabelValues(pipeline, stage).Observe(d.Seconds())
}

// RecordRemoteOperation counts one remote operation, failed when err is non-nil.
func RecordRemoteOperation(pipeline string, err error) {
	result := OutcomeSuccess
	if err != nil {
		result = OutcomeFailure
	}
	RemoteOperations.WithLabelValues(pipeline, result).Inc()
}

// TrackStagedResource adjusts the staged resource gauge.
func TrackStagedResource(acquired bool) {
	if acquired {
		StagedResources.Inc()
	} else {
		StagedResources.Dec()
	}
}

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
