// Package vehicle defines the flight-control collaborator contract and an
// in-process simulated vehicle used by the binary and tests when no real
// RPC endpoint is configured.
package vehicle

import "context"

// State is the vehicle's reported kinematic state. Z is altitude in metres
// above ground, positive up.
type State struct {
	X, Y, Z float64
}

// Control is the vehicle-control collaborator. Calls may fail with
// decision.ErrActuation-wrapped errors; callers treat failures as
// log-and-continue, never fatal to the pipeline.
type Control interface {
	// MoveTo commands a move to an absolute position.
	MoveTo(ctx context.Context, x, y, z float64) error
	// SetAltitude commands a climb or descent to an absolute altitude.
	SetAltitude(ctx context.Context, meters float64) error
	// Hover holds the current position.
	Hover(ctx context.Context) error
	// GetState reports the current vehicle state.
	GetState(ctx context.Context) (State, error)
}
