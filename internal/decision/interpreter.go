package decision

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/skyward-data/groundtrack/internal/track"
	"github.com/skyward-data/groundtrack/internal/vehicle"
)

// Movement constants for target approach and retreat, in metres. Taken
// from the flight controller's standoff policy: never close below the
// standoff, never cover more than the max step in one move, back off a
// fixed distance on move-away.
const (
	approachStandoffMeters = 5.0
	approachMaxStepMeters  = 50.0
	retreatMeters          = 20.0
	actuationRetryBackoff  = 500 * time.Millisecond
)

// Interpreter dispatches parsed commands to the vehicle-control
// collaborator. When the control-enable flag is off, commands are logged
// but never dispatched.
type Interpreter struct {
	ctrl    vehicle.Control
	bounds  AltitudeBounds
	enabled atomic.Bool
}

// NewInterpreter creates an interpreter over the given vehicle control.
func NewInterpreter(ctrl vehicle.Control, bounds AltitudeBounds, enabled bool) *Interpreter {
	i := &Interpreter{ctrl: ctrl, bounds: bounds}
	i.enabled.Store(enabled)
	return i
}

// SetEnabled flips the global control-enable flag.
func (i *Interpreter) SetEnabled(enabled bool) {
	i.enabled.Store(enabled)
	status := "disabled"
	if enabled {
		status = "enabled"
	}
	log.Printf("vehicle control %s", status)
}

// Enabled reports the control-enable flag.
func (i *Interpreter) Enabled() bool {
	return i.enabled.Load()
}

// Execute dispatches each command in order against the given frame
// snapshot. Every failure is logged and the remaining commands still run:
// an unknown target drops its command, an actuation failure is retried
// once and then abandoned. Execute never returns an error to the pipeline.
func (i *Interpreter) Execute(ctx context.Context, cmds []Command, snap track.Snapshot) {
	for _, cmd := range cmds {
		if !i.enabled.Load() {
			log.Printf("control disabled, skipping command %s", cmd)
			continue
		}
		if err := i.execute(ctx, cmd, snap); err != nil {
			log.Printf("command %s failed: %v", cmd, err)
		}
	}
}

func (i *Interpreter) execute(ctx context.Context, cmd Command, snap track.Snapshot) error {
	switch cmd.Kind {
	case KindMoveToTarget:
		return i.moveToTarget(ctx, cmd.TargetID, snap)
	case KindMoveAway:
		return i.moveAway(ctx)
	case KindHoldAltitude:
		alt, clamped := i.bounds.Clamp(cmd.Meters)
		if clamped {
			log.Printf("hold altitude %.1fm clamped to %.1fm", cmd.Meters, alt)
		}
		return i.actuate(ctx, func(ctx context.Context) error {
			return i.ctrl.SetAltitude(ctx, alt)
		})
	case KindChangeAltitude:
		return i.changeAltitude(ctx, cmd.Meters)
	case KindHover:
		return i.actuate(ctx, i.ctrl.Hover)
	default:
		return fmt.Errorf("unrecognised command kind %q", cmd.Kind)
	}
}

// moveToTarget closes on the named track, holding the approach standoff.
// A target absent from the snapshot fails with ErrUnknownTarget and the
// command is dropped.
func (i *Interpreter) moveToTarget(ctx context.Context, id int64, snap track.Snapshot) error {
	t, ok := snap.Find(id)
	if !ok {
		return fmt.Errorf("%w: track %d not in current snapshot", ErrUnknownTarget, id)
	}

	state, err := i.ctrl.GetState(ctx)
	if err != nil {
		return fmt.Errorf("%w: get state: %v", ErrActuation, err)
	}

	if !t.DistanceKnown {
		log.Printf("target %d (%s) has unknown distance, holding position", id, t.Class)
		return nil
	}
	step := t.Distance - approachStandoffMeters
	if step <= 0 {
		log.Printf("target %d (%s) within standoff, holding position", id, t.Class)
		return nil
	}
	if step > approachMaxStepMeters {
		step = approachMaxStepMeters
	}

	// Forward approach along the camera axis: the vehicle faces what it
	// films, so closing the range maps to +X in the body frame.
	log.Printf("approaching target %d (%s), range %.1fm, step %.1fm", id, t.Class, t.Distance, step)
	return i.actuate(ctx, func(ctx context.Context) error {
		return i.ctrl.MoveTo(ctx, state.X+step, state.Y, state.Z)
	})
}

func (i *Interpreter) moveAway(ctx context.Context) error {
	state, err := i.ctrl.GetState(ctx)
	if err != nil {
		return fmt.Errorf("%w: get state: %v", ErrActuation, err)
	}
	log.Printf("retreating %.0fm", retreatMeters)
	return i.actuate(ctx, func(ctx context.Context) error {
		return i.ctrl.MoveTo(ctx, state.X-retreatMeters, state.Y, state.Z)
	})
}

func (i *Interpreter) changeAltitude(ctx context.Context, delta float64) error {
	state, err := i.ctrl.GetState(ctx)
	if err != nil {
		return fmt.Errorf("%w: get state: %v", ErrActuation, err)
	}
	target, clamped := i.bounds.Clamp(state.Z + delta)
	if clamped {
		log.Printf("altitude change %+.1fm from %.1fm clamped to %.1fm", delta, state.Z, target)
	}
	return i.actuate(ctx, func(ctx context.Context) error {
		return i.ctrl.SetAltitude(ctx, target)
	})
}

// actuate runs one control call, retrying once after a short backoff on
// failure. A second failure is reported (and logged by the caller), never
// escalated.
func (i *Interpreter) actuate(ctx context.Context, call func(context.Context) error) error {
	err := call(ctx)
	if err == nil {
		return nil
	}
	log.Printf("actuation failed, retrying once: %v", err)

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrActuation, ctx.Err())
	case <-time.After(actuationRetryBackoff):
	}

	if err := call(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrActuation, err)
	}
	return nil
}
