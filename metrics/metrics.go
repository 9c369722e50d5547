// Package metrics exports adapter activity to prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blockberries/abcistate/server"
)

// Result labels of the diff write counter.
const (
	ResultOK      = "ok"
	ResultEmpty   = "empty"
	ResultError   = "error"
	ResultDropped = "dropped"
)

var (
	_diffWriteMtc = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "abcistate_diff_writes_total",
		Help: "Diff journal writes by result.",
	}, []string{"result"})

	_diffDurationMtc = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "abcistate_diff_duration_seconds",
		Help:    "Time to compute and append one diff.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	_heightMtc = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "abcistate_committed_height",
		Help: "Last committed block height.",
	})

	_commitDurationMtc = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "abcistate_commit_duration_seconds",
		Help:    "Commit latency including the durable snapshot promotion.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
)

func init() {
	prometheus.MustRegister(_diffWriteMtc, _diffDurationMtc, _heightMtc, _commitDurationMtc)
}

// Compile-time interface check.
var _ server.Observer = Observer{}

// Observer records adapter events in the default prometheus registry.
type Observer struct{}

// ObserveDiff counts the outcome of a diff job.
func (Observer) ObserveDiff(out server.DiffOutcome) {
	_diffWriteMtc.WithLabelValues(diffResult(out)).Inc()
	if out.Duration > 0 {
		_diffDurationMtc.Observe(out.Duration.Seconds())
	}
}

// ObserveCommit records the committed height and commit latency.
func (Observer) ObserveCommit(height int64, d time.Duration) {
	_heightMtc.Set(float64(height))
	_commitDurationMtc.Observe(d.Seconds())
}

func diffResult(out server.DiffOutcome) string {
	switch {
	case errors.Is(out.Err, server.ErrDiffQueueFull), errors.Is(out.Err, server.ErrDiffWorkerClosed):
		return ResultDropped
	case out.Err != nil:
		return ResultError
	case out.Empty:
		return ResultEmpty
	default:
		return ResultOK
	}
}

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
