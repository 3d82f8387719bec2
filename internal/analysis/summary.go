// Package analysis builds compact track summaries for the language-model
// collaborator and runs the analysis call on a background worker so frame
// processing never blocks on the network.
package analysis

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/skyward-data/groundtrack/internal/track"
)

// Behaviour cues reported to the analysis service. Chinese, matching the
// directive grammar the service answers in.
const (
	BehaviourStatic = "静止"
	BehaviourMoving = "移动"
)

// TrackSummary is the per-target line item sent to the analysis service.
type TrackSummary struct {
	ID            int64   `json:"id"`
	Class         string  `json:"class_name"`
	Confidence    float64 `json:"conf"`
	Distance      float64 `json:"distance"`
	DistanceKnown bool    `json:"distance_known"`
	SpeedPx       float64 `json:"speed_px"`
	Behaviour     string  `json:"behaviour"`
}

// Summarizer converts frame snapshots into track summaries.
type Summarizer struct {
	// MovingSpeedPx is the mean per-frame centre displacement (pixels)
	// above which a track is reported as moving.
	MovingSpeedPx float64
}

// Summarize builds summaries for every confirmed track in the snapshot.
// The behaviour cue comes from the mean displacement magnitude over the
// track's box history.
func (s *Summarizer) Summarize(snap track.Snapshot) []TrackSummary {
	confirmed := snap.Confirmed()
	out := make([]TrackSummary, 0, len(confirmed))
	for _, t := range confirmed {
		speed := meanDisplacement(t)
		behaviour := BehaviourStatic
		if speed > s.MovingSpeedPx {
			behaviour = BehaviourMoving
		}
		out = append(out, TrackSummary{
			ID:            t.ID,
			Class:         t.Class,
			Confidence:    t.Confidence,
			Distance:      t.Distance,
			DistanceKnown: t.DistanceKnown,
			SpeedPx:       speed,
			Behaviour:     behaviour,
		})
	}
	return out
}

// meanDisplacement returns the mean per-frame centre displacement over the
// track's history, 0 when there are fewer than two entries.
func meanDisplacement(t track.Track) float64 {
	if len(t.History) < 2 {
		return 0
	}
	steps := make([]float64, 0, len(t.History)-1)
	for i := 1; i < len(t.History); i++ {
		ax, ay := t.History[i-1].Center()
		bx, by := t.History[i].Center()
		steps = append(steps, math.Hypot(bx-ax, by-ay))
	}
	return stat.Mean(steps, nil)
}

// FormatSummaries renders summaries as the line format the analysis prompt
// expects, one target per line:
//
//	ID3: car (置信度0.92, 距离45.3米, 移动)
//
// Unknown distances render as 未知.
func FormatSummaries(summaries []TrackSummary) string {
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		dist := "未知"
		if s.DistanceKnown {
			dist = fmt.Sprintf("%.1f", s.Distance)
		}
		lines = append(lines, fmt.Sprintf("ID%d: %s (置信度%.2f, 距离%s米, %s)",
			s.ID, s.Class, s.Confidence, dist, s.Behaviour))
	}
	return strings.Join(lines, "\n")
}
