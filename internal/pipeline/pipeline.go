// Package pipeline pulls frames from a source, runs detection and
// association over them, and fans the per-frame results out to the
// analysis worker, the detection log, and the monitor.
package pipeline

import (
	"context"

	"github.com/skyward-data/groundtrack/internal/track"
)

// Frame is one unit of input. Image carries the raw frame payload for
// sources that have one; replay sources leave it nil since their
// detections are precomputed.
type Frame struct {
	Index       int64
	TSUnixNanos int64
	Image       []byte
}

// Source supplies frames in strict capture order. Next returns io.EOF
// when a finite playback is exhausted; live sources block until the next
// frame or the context ends.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
}

// Resettable is implemented by file playback sources that can rewind for
// another pass. Live sources do not implement it.
type Resettable interface {
	Reset() error
}

// Detector produces detections for a frame. Implementations are expected
// to be deterministic and side-effect free; the external neural detector
// sits behind this interface.
type Detector interface {
	Detect(ctx context.Context, f *Frame) ([]track.Detection, error)
}
