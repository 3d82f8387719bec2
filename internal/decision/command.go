// Package decision parses free-form analysis text into a bounded set of
// flight commands, applies safety clamping, and dispatches them to the
// vehicle-control collaborator.
package decision

import (
	"errors"
	"fmt"
)

// Interpreter errors. Both are log-and-continue conditions; neither ever
// halts the pipeline.
var (
	// ErrUnknownTarget reports a command referencing a track identity
	// absent from the current frame snapshot.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrActuation reports a failed vehicle-control call.
	ErrActuation = errors.New("actuation failed")
)

// Kind enumerates the closed set of recognised flight commands.
type Kind string

const (
	KindMoveToTarget   Kind = "move_to_target"
	KindMoveAway       Kind = "move_away"
	KindHoldAltitude   Kind = "hold_altitude"
	KindChangeAltitude Kind = "change_altitude"
	KindHover          Kind = "hover"
)

// Command is one validated directive extracted from analysis text.
// Commands are ephemeral: constructed from one text, dispatched, then
// discarded.
type Command struct {
	Kind     Kind
	TargetID int64   // KindMoveToTarget only
	Meters   float64 // hold: absolute altitude; change: signed delta
	Clamped  bool    // true when Meters was rewritten to a safety boundary
}

func (c Command) String() string {
	switch c.Kind {
	case KindMoveToTarget:
		return fmt.Sprintf("move_to_target(id=%d)", c.TargetID)
	case KindHoldAltitude:
		return fmt.Sprintf("hold_altitude(%.1fm)", c.Meters)
	case KindChangeAltitude:
		return fmt.Sprintf("change_altitude(%+.1fm)", c.Meters)
	default:
		return string(c.Kind)
	}
}
