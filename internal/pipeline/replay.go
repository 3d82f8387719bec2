package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/skyward-data/groundtrack/internal/geom"
	"github.com/skyward-data/groundtrack/internal/track"
)

// replayRecord is one JSONL line of a recorded detection file.
type replayRecord struct {
	Frame       int64             `json:"frame"`
	TSUnixNanos int64             `json:"ts_unix_nanos"`
	Detections  []replayDetection `json:"detections"`
}

type replayDetection struct {
	Class      string   `json:"class_name"`
	Confidence float64  `json:"conf"`
	Box        geom.Box `json:"box"`
}

// Replay plays back a JSONL detection recording. It is both a Source and
// a Detector: each Next yields the next recorded frame, and Detect
// returns the detections recorded for it. Replay is restartable via
// Reset and intended for offline review and tests, not concurrent use.
type Replay struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner

	// detections for the frame most recently returned by Next, keyed by
	// frame index so Detect can reject out-of-order calls.
	currentFrame int64
	current      []track.Detection
	started      bool
}

// OpenReplay opens a JSONL detection recording for playback.
func OpenReplay(path string) (*Replay, error) {
	r := &Replay{path: path}
	if err := r.Reset(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reset rewinds the playback to the first frame.
func (r *Replay) Reset() error {
	if r.file != nil {
		r.file.Close()
	}
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open detection recording: %w", err)
	}
	r.file = f
	r.scanner = bufio.NewScanner(f)
	r.scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	r.currentFrame = -1
	r.current = nil
	r.started = false
	return nil
}

// Close releases the underlying file.
func (r *Replay) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Next returns the next recorded frame, or io.EOF at end of recording.
// Blank lines are skipped; a malformed line fails the playback since a
// corrupt recording is not recoverable mid-stream.
func (r *Replay) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec replayRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("malformed detection record: %w", err)
		}

		dets := make([]track.Detection, 0, len(rec.Detections))
		for _, d := range rec.Detections {
			dets = append(dets, track.Detection{
				Class:      d.Class,
				Box:        d.Box,
				Confidence: d.Confidence,
			})
		}
		r.currentFrame = rec.Frame
		r.current = dets
		r.started = true

		ts := rec.TSUnixNanos
		if ts == 0 {
			ts = time.Now().UnixNano()
		}
		return &Frame{Index: rec.Frame, TSUnixNanos: ts}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read detection recording: %w", err)
	}
	return nil, io.EOF
}

// Detect returns the detections recorded for the frame most recently
// returned by Next.
func (r *Replay) Detect(ctx context.Context, f *Frame) ([]track.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.started || f.Index != r.currentFrame {
		return nil, fmt.Errorf("replay detect out of order: frame %d, playback at %d", f.Index, r.currentFrame)
	}
	return r.current, nil
}
