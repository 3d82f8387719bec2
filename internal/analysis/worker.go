package analysis

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrAnalysisUnavailable reports a failed or malformed analysis call. The
// pipeline treats it as "no new insight this cycle" and keeps the previous
// result.
var ErrAnalysisUnavailable = errors.New("analysis unavailable")

// Analyzer is the external language-model collaborator. It may be slow
// (network-bound) and must never be invoked more than once concurrently —
// the Worker enforces that.
type Analyzer interface {
	Analyze(ctx context.Context, summaries []TrackSummary) (string, error)
}

// Result is one completed analysis cycle.
type Result struct {
	Text string
	At   time.Time
	Seq  uint64 // increments per successful publish; lets consumers detect new results
}

// Worker runs analysis calls on a background goroutine and publishes
// results into a single-slot mailbox. Submit never blocks: while a call is
// in flight further submissions are dropped, mirroring the one-outstanding-
// request contract of the analysis service. Latest never blocks either and
// keeps returning the most recent good result when newer calls fail.
type Worker struct {
	analyzer Analyzer
	timeout  time.Duration

	mu       sync.Mutex
	inflight bool
	latest   Result
	hasValue bool
	seq      uint64

	wg sync.WaitGroup
}

// NewWorker creates a worker around the given analyzer. timeout bounds each
// analysis call.
func NewWorker(analyzer Analyzer, timeout time.Duration) *Worker {
	return &Worker{analyzer: analyzer, timeout: timeout}
}

// Submit starts an analysis call for the given summaries unless one is
// already in flight, in which case the submission is dropped and false is
// returned. The summaries slice must be an immutable copy: the worker reads
// it on another goroutine.
func (w *Worker) Submit(ctx context.Context, summaries []TrackSummary) bool {
	w.mu.Lock()
	if w.inflight {
		w.mu.Unlock()
		return false
	}
	w.inflight = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()

		text, err := w.analyzer.Analyze(callCtx, summaries)

		w.mu.Lock()
		defer w.mu.Unlock()
		w.inflight = false
		if err != nil {
			// Keep the previous result; the failure is logged and the
			// pipeline carries on.
			log.Printf("analysis call failed: %v", err)
			return
		}
		w.seq++
		w.latest = Result{Text: text, At: time.Now(), Seq: w.seq}
		w.hasValue = true
	}()
	return true
}

// Latest returns the most recent successful result without blocking. The
// second return is false until the first success.
func (w *Worker) Latest() (Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest, w.hasValue
}

// Wait blocks until any in-flight call has finished. Used during shutdown;
// callers cancel the context first so an abandoned call returns promptly.
func (w *Worker) Wait() {
	w.wg.Wait()
}
