package pipeline

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyward-data/groundtrack/internal/analysis"
	"github.com/skyward-data/groundtrack/internal/detlog"
	"github.com/skyward-data/groundtrack/internal/geom"
	"github.com/skyward-data/groundtrack/internal/track"
)

// memorySource serves scripted frames with per-frame detections.
type memorySource struct {
	frames []scriptedFrame
	pos    int
}

type scriptedFrame struct {
	dets      []track.Detection
	detectErr error
}

func (s *memorySource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := &Frame{Index: int64(s.pos), TSUnixNanos: int64(s.pos+1) * 1000}
	s.pos++
	return f, nil
}

func (s *memorySource) Detect(ctx context.Context, f *Frame) ([]track.Detection, error) {
	sf := s.frames[f.Index]
	if sf.detectErr != nil {
		return nil, sf.detectErr
	}
	return sf.dets, nil
}

type staticAnalyzer struct {
	text  string
	calls int
}

func (a *staticAnalyzer) Analyze(ctx context.Context, summaries []analysis.TrackSummary) (string, error) {
	a.calls++
	return a.text, nil
}

func carDet(x float64) track.Detection {
	return track.Detection{
		Class:      "car",
		Box:        geom.Box{X: x, Y: 100, Width: 40, Height: 80},
		Confidence: 0.9,
	}
}

func testPipelineDeps(t *testing.T, src *memorySource) Deps {
	t.Helper()
	store := track.NewStore(track.StoreConfig{
		HitsToConfirm:      3,
		MaxMisses:          3,
		MaxMissesConfirmed: 5,
		LostGraceFrames:    30,
		MaxHistoryLength:   10,
		MaxTracks:          200,
	})
	return Deps{
		Source:   src,
		Detector: src,
		Estimator: geom.NewDistanceEstimator(geom.DistanceEstimatorConfig{
			ReferenceHeights:       map[string]float64{"car": 1.5},
			DefaultReferenceHeight: 1.0,
			FocalLengthPixels:      1000,
			MaxPlausibleDistance:   1000,
		}),
		Associator: track.NewAssociator(store, track.AssociatorConfig{MaxCost: 0.7, HighConfidence: 0.5}),
		Store:      store,
		Summarizer: &analysis.Summarizer{MovingSpeedPx: 2.0},
	}
}

func TestCoordinatorRunToCompletion(t *testing.T) {
	t.Parallel()
	src := &memorySource{}
	for i := 0; i < 6; i++ {
		src.frames = append(src.frames, scriptedFrame{dets: []track.Detection{carDet(float64(i * 3))}})
	}

	var published int
	deps := testPipelineDeps(t, src)
	deps.Publish = func(track.Snapshot) { published++ }

	coord, err := NewCoordinator(deps)
	require.NoError(t, err)
	require.NoError(t, coord.Run(context.Background()))

	assert.Equal(t, int64(6), coord.FramesProcessed())
	assert.Equal(t, 6, published)

	snap, ok := coord.Latest()
	require.True(t, ok)
	require.Len(t, snap.Tracks, 1)
	tr := snap.Tracks[0]
	assert.Equal(t, track.StateConfirmed, tr.State)
	// 1.5m reference * 1000px focal / 80px height = 18.75m.
	require.True(t, tr.DistanceKnown)
	assert.InDelta(t, 18.75, tr.Distance, 1e-9)
}

func TestCoordinatorSkipsDetectorFailures(t *testing.T) {
	t.Parallel()
	src := &memorySource{frames: []scriptedFrame{
		{dets: []track.Detection{carDet(0)}},
		{detectErr: errors.New("decode failed")},
		{dets: []track.Detection{carDet(3)}},
	}}

	coord, err := NewCoordinator(testPipelineDeps(t, src))
	require.NoError(t, err)
	require.NoError(t, coord.Run(context.Background()))

	// The failed frame is skipped entirely, including the snapshot: the
	// last published snapshot comes from frame 2.
	assert.Equal(t, int64(3), coord.FramesProcessed())
	snap, ok := coord.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(2), snap.Frame)
	require.Len(t, snap.Tracks, 1)
}

func TestCoordinatorDegenerateBoxLeavesDistanceUnknown(t *testing.T) {
	t.Parallel()
	bad := carDet(0)
	bad.Box.Height = 0
	src := &memorySource{frames: []scriptedFrame{{dets: []track.Detection{bad}}}}

	coord, err := NewCoordinator(testPipelineDeps(t, src))
	require.NoError(t, err)
	require.NoError(t, coord.Run(context.Background()))

	snap, ok := coord.Latest()
	require.True(t, ok)
	require.Len(t, snap.Tracks, 1)
	assert.False(t, snap.Tracks[0].DistanceKnown, "tracking proceeds without a range estimate")
}

func TestCoordinatorAnalysisCadence(t *testing.T) {
	t.Parallel()
	src := &memorySource{}
	for i := 0; i < 7; i++ {
		src.frames = append(src.frames, scriptedFrame{dets: []track.Detection{carDet(float64(i * 3))}})
	}

	az := &staticAnalyzer{text: "无异常情况。"}
	deps := testPipelineDeps(t, src)
	deps.Worker = analysis.NewWorker(az, time.Second)
	deps.AnalyzeEveryFrames = 3

	coord, err := NewCoordinator(deps)
	require.NoError(t, err)
	require.NoError(t, coord.Run(context.Background()))

	// Frames 0, 3, and 6 are submission points; a submission is dropped
	// only while a call is in flight, so at least one call completed.
	assert.GreaterOrEqual(t, az.calls, 1)
	assert.LessOrEqual(t, az.calls, 3)

	res, ok := deps.Worker.Latest()
	require.True(t, ok)
	assert.Equal(t, "无异常情况。", res.Text)
}

func TestCoordinatorWritesDetectionLog(t *testing.T) {
	t.Parallel()
	src := &memorySource{}
	for i := 0; i < 5; i++ {
		src.frames = append(src.frames, scriptedFrame{dets: []track.Detection{carDet(float64(i * 3))}})
	}

	dlog, err := detlog.Open(filepath.Join(t.TempDir(), "run.db"), "test", 1000, 100)
	require.NoError(t, err)
	defer dlog.Close(9000)

	deps := testPipelineDeps(t, src)
	deps.Log = dlog

	coord, err := NewCoordinator(deps)
	require.NoError(t, err)
	require.NoError(t, coord.Run(context.Background()))

	// Run flushes on termination even below the flush threshold. The
	// track confirms on frame 2, so frames 2-4 have confirmed rows.
	counts, err := dlog.ConfirmedCounts()
	require.NoError(t, err)
	require.Len(t, counts, 3)
	assert.Equal(t, int64(2), counts[0].Frame)
}

func TestCoordinatorSourceFailureEndsRun(t *testing.T) {
	t.Parallel()
	deps := testPipelineDeps(t, &memorySource{})
	deps.Source = &failingSource{}
	coord, err := NewCoordinator(deps)
	require.NoError(t, err)

	err = coord.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame source failed")
}

type failingSource struct{}

func (f *failingSource) Next(ctx context.Context) (*Frame, error) {
	return nil, errors.New("capture device unplugged")
}
