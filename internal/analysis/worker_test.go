package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingAnalyzer counts concurrent calls and blocks until released.
type blockingAnalyzer struct {
	mu         sync.Mutex
	inCall     int32
	maxInCall  int32
	release    chan struct{}
	text       string
	err        error
	callsTotal atomic.Int32
}

func (a *blockingAnalyzer) Analyze(ctx context.Context, summaries []TrackSummary) (string, error) {
	cur := atomic.AddInt32(&a.inCall, 1)
	defer atomic.AddInt32(&a.inCall, -1)
	a.mu.Lock()
	if cur > a.maxInCall {
		a.maxInCall = cur
	}
	a.mu.Unlock()
	a.callsTotal.Add(1)

	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return a.text, a.err
}

func TestWorkerSingleFlight(t *testing.T) {
	t.Parallel()
	a := &blockingAnalyzer{release: make(chan struct{}), text: "ok"}
	w := NewWorker(a, time.Second)

	require.True(t, w.Submit(context.Background(), nil))
	// Give the goroutine a moment to enter the call.
	time.Sleep(20 * time.Millisecond)

	// Every overlapping submission is dropped.
	for i := 0; i < 5; i++ {
		assert.False(t, w.Submit(context.Background(), nil))
	}

	close(a.release)
	w.Wait()

	assert.Equal(t, int32(1), a.callsTotal.Load())
	a.mu.Lock()
	assert.Equal(t, int32(1), a.maxInCall)
	a.mu.Unlock()

	res, ok := w.Latest()
	require.True(t, ok)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, uint64(1), res.Seq)
}

func TestWorkerFailureKeepsPreviousResult(t *testing.T) {
	t.Parallel()
	a := &blockingAnalyzer{text: "first"}
	w := NewWorker(a, time.Second)

	require.True(t, w.Submit(context.Background(), nil))
	w.Wait()
	res, ok := w.Latest()
	require.True(t, ok)
	require.Equal(t, "first", res.Text)

	a.err = errors.New("service down")
	a.text = "should not surface"
	require.True(t, w.Submit(context.Background(), nil))
	w.Wait()

	res, ok = w.Latest()
	require.True(t, ok)
	assert.Equal(t, "first", res.Text, "failed call must not replace the last good result")
	assert.Equal(t, uint64(1), res.Seq, "failed call must not bump the sequence")
}

func TestWorkerNoResultBeforeFirstSuccess(t *testing.T) {
	t.Parallel()
	a := &blockingAnalyzer{err: errors.New("down")}
	w := NewWorker(a, time.Second)

	_, ok := w.Latest()
	assert.False(t, ok)

	require.True(t, w.Submit(context.Background(), nil))
	w.Wait()
	_, ok = w.Latest()
	assert.False(t, ok)
}

func TestWorkerTimeoutCancelsCall(t *testing.T) {
	t.Parallel()
	a := &blockingAnalyzer{release: make(chan struct{})} // never released
	w := NewWorker(a, 30*time.Millisecond)

	require.True(t, w.Submit(context.Background(), nil))
	w.Wait()

	_, ok := w.Latest()
	assert.False(t, ok, "a timed-out call publishes nothing")

	// The slot is free again after the timeout.
	assert.True(t, w.Submit(context.Background(), nil))
	w.Wait()
}
