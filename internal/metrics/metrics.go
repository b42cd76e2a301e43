package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/forPelevin/lipsync/internal/types"
)

var (
	Renders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lipsync_renders_total",
			Help: "Finished renders by result",
		},
		[]string{"result"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lipsync_stage_duration_seconds",
			Help:    "Time spent in each render stage",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 10),
		},
		[]string{"stage"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lipsync_cue_cache_lookups_total",
			Help: "Cue cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)

func ObserveStage(stage types.Stage, d time.Duration) {
	StageDuration.WithLabelValues(stage.String()).Observe(d.Seconds())
}

func CacheLookup(result string) {
	CacheLookups.WithLabelValues(result).Inc()
}

func RenderFinished(err error) {
	if err != nil {
		Renders.WithLabelValues("failed").Inc()
		return
	}
	Renders.WithLabelValues("ok").Inc()
}
