package query

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zetsubou/tagstore/internal/build"
)

var (
	chainedSubqueriesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "query_chained_subqueries_total",
		Help:      "The total number of search_after queries issued to reach pages beyond the result window.",
	})

	queryDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:                       build.ProjectName,
		Name:                            "query_duration_ms",
		Help:                            "The duration (in ms) of a paged query including every chained subquery.",
		Buckets:                         []float64{1, 5, 10, 25, 50, 100, 200, 500, 1000, 5000},
		NativeHistogramBucketFactor:     1.1,
		NativeHistogramMaxBucketNumber:  100,
		NativeHistogramMinResetDuration: time.Hour,
	}, []string{"operation"})
)

func observeDuration(operation string, start time.Time) {
	queryDurationHistogram.WithLabelValues(operation).Observe(float64(time.Since(start).Milliseconds()))
}
