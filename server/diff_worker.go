package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/blockberries/abcistate/diffdb"
)

var (
	// ErrDiffQueueFull is reported when a diff job is dropped because the
	// worker is saturated.
	ErrDiffQueueFull = errors.New("diff queue full")
	// ErrDiffWorkerClosed is reported for jobs enqueued after Close.
	ErrDiffWorkerClosed = errors.New("diff worker closed")
)

type diffJob struct {
	height int64
	prev   []byte
	next   []byte
	// sync is closed by the worker when every earlier job is done. Set
	// only on flush markers.
	sync chan struct{}
}

// diffWorker computes and appends diffs off the commit path. Jobs are
// processed one at a time in enqueue order.
type diffWorker struct {
	journal  DiffJournal
	observer Observer

	commands chan diffJob   // < jobs and flush markers
	done     chan struct{} // < closed when the worker exits

	mu     sync.RWMutex
	closed bool
}

func newDiffWorker(journal DiffJournal, observer Observer, queueSize int) *diffWorker {
	w := &diffWorker{
		journal:  journal,
		observer: observer,
		commands: make(chan diffJob, queueSize),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *diffWorker) run() {
	defer close(w.done)
	for job := range w.commands {
		if job.sync != nil {
			close(job.sync)
			continue
		}
		w.process(job)
	}
}

func (w *diffWorker) process(job diffJob) {
	start := time.Now()
	out := DiffOutcome{Height: job.height}
	patch, err := diffdb.Compute(job.prev, job.next)
	if err == nil {
		out.Empty = patch.Len() == 0
		err = w.journal.Append(job.height, patch)
	}
	out.Err = err
	out.Duration = time.Since(start)
	w.observer.ObserveDiff(out)
}

// enqueue never blocks. A full queue or a closed worker is reported to
// the observer as a failed outcome.
func (w *diffWorker) enqueue(job diffJob) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.observer.ObserveDiff(DiffOutcome{Height: job.height, Err: ErrDiffWorkerClosed})
		return
	}
	select {
	case w.commands <- job:
	default:
		w.observer.ObserveDiff(DiffOutcome{Height: job.height, Err: ErrDiffQueueFull})
	}
}

// flush waits until every job enqueued before the call has finished.
func (w *diffWorker) flush(ctx context.Context) error {
	marker := make(chan struct{})
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return nil
	}
	select {
	case w.commands <- diffJob{sync: marker}:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains pending jobs and stops the worker. Safe to call twice.
func (w *diffWorker) close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.commands)
	}
	w.mu.Unlock()
	<-w.done
}
