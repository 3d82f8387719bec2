// Package track implements the multi-object track store and the
// detection-to-track association engine. Tracks carry a persistent integer
// identity across frames with an explicit tentative/confirmed/lost
// lifecycle; association is solved per frame with IoU costs and a
// Hungarian assignment.
package track

import (
	"math"

	"github.com/skyward-data/groundtrack/internal/geom"
)

// State represents the lifecycle state of a track.
type State string

const (
	StateTentative State = "tentative" // New track, needs confirmation
	StateConfirmed State = "confirmed" // Stable track with sufficient consecutive hits
	StateLost      State = "lost"      // Track missed too many frames, awaiting purge
)

// Detection is a single per-frame observation produced by the external
// detector, annotated with an estimated range by the pipeline. Detections
// are consumed once and never retained.
type Detection struct {
	Class         string
	Box           geom.Box
	Confidence    float64
	Distance      float64 // metres; valid only when DistanceKnown
	DistanceKnown bool
}

// Track is a persistent identity assigned to a physical object across
// frames. Owned exclusively by the Store; mutated only by the Associator
// during frame processing.
type Track struct {
	// Identity. IDs increase monotonically and are never reused: a target
	// that vanishes and reappears gets a fresh identity.
	ID    int64
	Class string

	// Latest observation.
	Box           geom.Box
	Distance      float64
	DistanceKnown bool
	Confidence    float64

	// Lifecycle.
	State  State
	Hits   int // Consecutive successful associations
	Misses int // Consecutive missed associations

	// Bounded history of recent boxes (most recent last) for velocity
	// estimation and behaviour cues.
	History []geom.Box

	// Frame bookkeeping.
	FirstFrame     int64
	LastFrame      int64
	FirstUnixNanos int64
	LastUnixNanos  int64

	// Frames spent in StateLost; drives grace-period purging.
	lostAge int
}

// SpeedPx returns the per-frame displacement of the box centre in pixels,
// computed from the last two history entries. Zero when the track has fewer
// than two observations.
func (t *Track) SpeedPx() float64 {
	if len(t.History) < 2 {
		return 0
	}
	ax, ay := t.History[len(t.History)-2].Center()
	bx, by := t.History[len(t.History)-1].Center()
	dx := bx - ax
	dy := by - ay
	return math.Sqrt(dx*dx + dy*dy)
}

// PredictedBox returns the expected box for the next frame by linear
// extrapolation of the centre from the last two history entries. Size is
// carried forward unchanged. With fewer than two observations the current
// box is returned as-is.
func (t *Track) PredictedBox() geom.Box {
	if len(t.History) < 2 {
		return t.Box
	}
	prev := t.History[len(t.History)-2]
	last := t.History[len(t.History)-1]
	px, py := prev.Center()
	lx, ly := last.Center()
	cx := lx + (lx - px)
	cy := ly + (ly - py)
	return geom.Box{
		X:      cx - last.Width/2,
		Y:      cy - last.Height/2,
		Width:  last.Width,
		Height: last.Height,
	}
}

// clone returns a deep copy safe for readers outside the store lock.
func (t *Track) clone() Track {
	copied := *t
	if len(t.History) > 0 {
		copied.History = make([]geom.Box, len(t.History))
		copy(copied.History, t.History)
	}
	return copied
}
