package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyward-data/groundtrack/internal/geom"
	"github.com/skyward-data/groundtrack/internal/track"
)

func confirmedTrack(id int64, class string, history ...geom.Box) track.Track {
	t := track.Track{
		ID:         id,
		Class:      class,
		State:      track.StateConfirmed,
		Confidence: 0.9,
		History:    history,
	}
	if len(history) > 0 {
		t.Box = history[len(history)-1]
	}
	return t
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	s := &Summarizer{MovingSpeedPx: 2.0}

	t.Run("ignores tentative tracks", func(t *testing.T) {
		t.Parallel()
		snap := track.Snapshot{Tracks: []track.Track{
			{ID: 1, Class: "car", State: track.StateTentative},
			confirmedTrack(2, "bus", geom.Box{X: 0, Y: 0, Width: 40, Height: 80}),
		}}
		out := s.Summarize(snap)
		require.Len(t, out, 1)
		assert.Equal(t, int64(2), out[0].ID)
	})

	t.Run("slow track is static", func(t *testing.T) {
		t.Parallel()
		snap := track.Snapshot{Tracks: []track.Track{
			confirmedTrack(1, "car",
				geom.Box{X: 0, Y: 0, Width: 40, Height: 80},
				geom.Box{X: 1, Y: 0, Width: 40, Height: 80},
				geom.Box{X: 2, Y: 0, Width: 40, Height: 80},
			),
		}}
		out := s.Summarize(snap)
		require.Len(t, out, 1)
		assert.Equal(t, BehaviourStatic, out[0].Behaviour)
	})

	t.Run("fast track is moving", func(t *testing.T) {
		t.Parallel()
		snap := track.Snapshot{Tracks: []track.Track{
			confirmedTrack(1, "car",
				geom.Box{X: 0, Y: 0, Width: 40, Height: 80},
				geom.Box{X: 5, Y: 0, Width: 40, Height: 80},
				geom.Box{X: 10, Y: 0, Width: 40, Height: 80},
			),
		}}
		out := s.Summarize(snap)
		require.Len(t, out, 1)
		assert.Equal(t, BehaviourMoving, out[0].Behaviour)
		assert.InDelta(t, 5.0, out[0].SpeedPx, 1e-9)
	})

	t.Run("empty snapshot yields empty summaries", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, s.Summarize(track.Snapshot{}))
	})
}

func TestFormatSummaries(t *testing.T) {
	t.Parallel()

	t.Run("known distance", func(t *testing.T) {
		t.Parallel()
		got := FormatSummaries([]TrackSummary{{
			ID:            3,
			Class:         "car",
			Confidence:    0.92,
			Distance:      45.32,
			DistanceKnown: true,
			Behaviour:     BehaviourMoving,
		}})
		assert.Equal(t, "ID3: car (置信度0.92, 距离45.3米, 移动)", got)
	})

	t.Run("unknown distance", func(t *testing.T) {
		t.Parallel()
		got := FormatSummaries([]TrackSummary{{
			ID:         7,
			Class:      "pedestrian",
			Confidence: 0.55,
			Behaviour:  BehaviourStatic,
		}})
		assert.Contains(t, got, "距离未知米")
	})

	t.Run("one line per target", func(t *testing.T) {
		t.Parallel()
		got := FormatSummaries([]TrackSummary{
			{ID: 1, Class: "car", Behaviour: BehaviourStatic},
			{ID: 2, Class: "bus", Behaviour: BehaviourStatic},
		})
		assert.Len(t, strings.Split(got, "\n"), 2)
	})
}
