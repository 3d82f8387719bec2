package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"github.com/skyward-data/groundtrack/internal/analysis"
	"github.com/skyward-data/groundtrack/internal/decision"
	"github.com/skyward-data/groundtrack/internal/detlog"
	"github.com/skyward-data/groundtrack/internal/geom"
	"github.com/skyward-data/groundtrack/internal/track"
)

// Deps are the collaborators a Coordinator drives. Worker, Parser,
// Interpreter, Log, and Publish are optional; a nil value disables that
// leg of the fan-out.
type Deps struct {
	Source     Source
	Detector   Detector
	Estimator  *geom.DistanceEstimator
	Associator *track.Associator
	Store      *track.Store
	Summarizer *analysis.Summarizer
	Worker     *analysis.Worker
	Parser     *decision.Parser
	Interp     *decision.Interpreter
	Log        *detlog.Store

	// Publish is called with each new snapshot, after it is visible via
	// Latest. Used by the monitor's websocket push. Must not block.
	Publish func(track.Snapshot)

	// AnalyzeEveryFrames is the analysis submission cadence; 0 selects 30.
	AnalyzeEveryFrames int
}

// Coordinator runs the per-frame loop. One Run per Coordinator.
type Coordinator struct {
	deps         Deps
	analyzeEvery int64

	latest  atomic.Pointer[track.Snapshot]
	lastSeq uint64

	framesProcessed atomic.Int64
}

// NewCoordinator validates the required collaborators and builds a
// coordinator.
func NewCoordinator(deps Deps) (*Coordinator, error) {
	if deps.Source == nil || deps.Detector == nil {
		return nil, fmt.Errorf("pipeline needs a frame source and a detector")
	}
	if deps.Estimator == nil || deps.Associator == nil || deps.Store == nil {
		return nil, fmt.Errorf("pipeline needs an estimator, associator, and track store")
	}
	every := int64(deps.AnalyzeEveryFrames)
	if every <= 0 {
		every = 30
	}
	return &Coordinator{deps: deps, analyzeEvery: every}, nil
}

// Latest returns the most recently published snapshot. ok is false until
// the first frame completes.
func (c *Coordinator) Latest() (track.Snapshot, bool) {
	p := c.latest.Load()
	if p == nil {
		return track.Snapshot{}, false
	}
	return *p, true
}

// FramesProcessed reports the number of frames completed so far.
func (c *Coordinator) FramesProcessed() int64 {
	return c.framesProcessed.Load()
}

// Run pulls frames until the source is exhausted or the context ends.
// Per-frame failures (detector errors, log write errors) are logged and
// the loop continues; only a frame-source failure ends the run. The
// detection log is flushed before Run returns.
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.finish()

	for {
		frame, err := c.deps.Source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Printf("frame source exhausted after %d frames", c.framesProcessed.Load())
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("frame source failed: %w", err)
		}

		c.processFrame(ctx, frame)
		c.framesProcessed.Add(1)
	}
}

func (c *Coordinator) processFrame(ctx context.Context, frame *Frame) {
	dets, err := c.deps.Detector.Detect(ctx, frame)
	if err != nil {
		log.Printf("detect failed on frame %d, skipping: %v", frame.Index, err)
		return
	}

	c.annotateDistances(dets)

	c.deps.Associator.Associate(dets, frame.Index, frame.TSUnixNanos)

	snap := c.deps.Store.Snapshot(frame.Index, frame.TSUnixNanos)
	c.latest.Store(&snap)
	if c.deps.Publish != nil {
		c.deps.Publish(snap)
	}

	if c.deps.Log != nil {
		if err := c.deps.Log.AppendSnapshot(snap); err != nil {
			log.Printf("detection log append failed on frame %d: %v", frame.Index, err)
		}
	}

	if c.deps.Worker != nil && frame.Index%c.analyzeEvery == 0 {
		summaries := c.deps.Summarizer.Summarize(snap)
		if c.deps.Worker.Submit(ctx, summaries) {
			log.Printf("frame %d: submitted %d track summaries for analysis", frame.Index, len(summaries))
		}
	}

	c.pollAnalysis(ctx, frame, snap)
}

// annotateDistances fills in range estimates in place. Degenerate boxes
// and implausible ranges leave the detection unannotated; tracking still
// proceeds on the box alone.
func (c *Coordinator) annotateDistances(dets []track.Detection) {
	for i := range dets {
		d, err := c.deps.Estimator.Estimate(dets[i].Class, dets[i].Box)
		if err != nil {
			continue
		}
		dets[i].Distance = d
		dets[i].DistanceKnown = true
	}
}

// pollAnalysis drains the worker mailbox. A result is acted on exactly
// once: its text is persisted, parsed, and dispatched against the current
// snapshot.
func (c *Coordinator) pollAnalysis(ctx context.Context, frame *Frame, snap track.Snapshot) {
	if c.deps.Worker == nil {
		return
	}
	res, ok := c.deps.Worker.Latest()
	if !ok || res.Seq == c.lastSeq {
		return
	}
	c.lastSeq = res.Seq

	log.Printf("frame %d: analysis result: %s", frame.Index, res.Text)
	if c.deps.Log != nil {
		if err := c.deps.Log.AppendAnalysis(frame.Index, int64(res.Seq), res.Text, res.At.UnixNano()); err != nil {
			log.Printf("analysis log append failed: %v", err)
		}
	}

	if c.deps.Parser == nil || c.deps.Interp == nil {
		return
	}
	cmds := c.deps.Parser.Parse(res.Text)
	if len(cmds) == 0 {
		return
	}
	c.deps.Interp.Execute(ctx, cmds, snap)
}

// finish drains the analysis worker and flushes the detection log. The
// run is over; a slow in-flight analysis call is abandoned via the
// already-cancelled context rather than waited out.
func (c *Coordinator) finish() {
	if c.deps.Worker != nil {
		c.deps.Worker.Wait()
	}
	if c.deps.Log != nil {
		if err := c.deps.Log.Flush(); err != nil {
			log.Printf("detection log flush failed: %v", err)
		}
	}
}
