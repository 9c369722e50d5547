package server

import (
	"time"

	"go.uber.org/zap"
)

// DiffOutcome reports the result of one background diff job.
type DiffOutcome struct {
	Height int64
	// Err is nil on success.
	Err error
	// Empty is true when the committed state did not change.
	Empty    bool
	Duration time.Duration
}

// Observer receives adapter events. Implementations must be safe for
// concurrent use: ObserveDiff is called from the diff worker.
type Observer interface {
	ObserveDiff(DiffOutcome)
	ObserveCommit(height int64, d time.Duration)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) ObserveDiff(DiffOutcome)            {}
func (NopObserver) ObserveCommit(int64, time.Duration) {}

// LogObserver logs events. Failed diff writes are warnings.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver creates a LogObserver writing to l.
func NewLogObserver(l *zap.Logger) *LogObserver {
	return &LogObserver{logger: l}
}

func (o *LogObserver) ObserveDiff(out DiffOutcome) {
	if out.Err != nil {
		o.logger.Warn("Failed to write diff", zap.Int64("height", out.Height), zap.Error(out.Err))
		return
	}
	o.logger.Debug("Wrote diff",
		zap.Int64("height", out.Height),
		zap.Bool("empty", out.Empty),
		zap.Duration("duration", out.Duration))
}

func (o *LogObserver) ObserveCommit(height int64, d time.Duration) {
	o.logger.Debug("Committed block", zap.Int64("height", height), zap.Duration("duration", d))
}

// MultiObserver fans events out to every member.
type MultiObserver []Observer

func (m MultiObserver) ObserveDiff(out DiffOutcome) {
	for _, o := range m {
		o.ObserveDiff(out)
	}
}

func (m MultiObserver) ObserveCommit(height int64, d time.Duration) {
	for _, o := range m {
		o.ObserveCommit(height, d)
	}
}
