package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docsmith_builds_total",
		Help: "Builds executed, labelled by final status.",
	}, []string{"status"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docsmith_build_duration_seconds",
		Help:    "End-to-end build duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	})

	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docsmith_steps_total",
		Help: "Plan steps executed, labelled by phase and outcome.",
	}, []string{"phase", "status"})
)
