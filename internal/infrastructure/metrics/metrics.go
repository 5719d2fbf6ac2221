package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// pipeline runs by outcome
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_pipeline_runs_total",
			Help: "Evidence pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	LoanRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_loan_rejections_total",
			Help: "Loans rejected by validation reason",
		},
		[]string{"reason"},
	)

	OracleCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_oracle_calls_total",
			Help: "Verification oracle invocations by result",
		},
		[]string{"result"},
	)

	OracleLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evidence_oracle_duration_seconds",
			Help:    "Verification oracle latency in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 300},
		},
	)
)

func init() {
	prometheus.MustRegister(
		PipelineRuns,
		LoanRejections,
		OracleCalls,
		OracleLatency,
	)
}
