package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JudgeTotal counts finished judge calls by final verdict or error kind.
	JudgeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_judge_total",
			Help: "Total number of judge calls by outcome",
		},
		[]string{"outcome"},
	)

	// JudgeDuration tracks the wall time of whole judge calls in seconds.
	JudgeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_judge_duration_seconds",
			Help:    "Duration of judge calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"language"},
	)

	// CompileDuration tracks compilations by kind (submission or spj) and result.
	CompileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_compile_duration_seconds",
			Help:    "Duration of compilations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"kind", "result"},
	)

	// SPJCacheLookups counts SPJ cache resolutions by result (hit, miss, error).
	SPJCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_spj_cache_lookups_total",
			Help: "Total number of SPJ cache lookups",
		},
		[]string{"result"},
	)

	// SignatureFailures counts rejected requests by reason.
	SignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_signature_failures_total",
			Help: "Total number of requests rejected by signature verification",
		},
		[]string{"reason"},
	)

	// WorkersActive tracks the number of judge pool workers busy with a task.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_workers_active",
			Help: "Number of currently active judge pool workers",
		},
	)

	// SandboxFailures counts sandbox infrastructure failures (not user code errors).
	SandboxFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_sandbox_failures_total",
			Help: "Total number of sandbox infrastructure failures",
		},
	)

	// WorkspacesSwept counts workspaces removed by the janitor.
	WorkspacesSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_workspaces_swept_total",
			Help: "Total number of workspaces removed by the janitor",
		},
	)
)
