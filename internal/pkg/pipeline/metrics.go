package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "talkback",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})
	runTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talkback",
		Name:      "runs_total",
		Help:      "Pipeline runs by failed stage and result",
	}, []string{"stage", "result"})
)
