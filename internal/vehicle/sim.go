package vehicle

import (
	"context"
	"log"
	"sync"
)

// Sim is an in-process vehicle that applies commands to its own state
// immediately. It stands in for the simulator RPC client during replay
// playback and in tests.
type Sim struct {
	mu    sync.Mutex
	state State
}

// NewSim creates a simulated vehicle at the given starting position.
func NewSim(x, y, z float64) *Sim {
	return &Sim{state: State{X: x, Y: y, Z: z}}
}

// MoveTo moves the simulated vehicle to the target position.
func (s *Sim) MoveTo(_ context.Context, x, y, z float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{X: x, Y: y, Z: z}
	log.Printf("sim vehicle moved to (%.1f, %.1f, %.1f)", x, y, z)
	return nil
}

// SetAltitude changes only the altitude.
func (s *Sim) SetAltitude(_ context.Context, meters float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Z = meters
	log.Printf("sim vehicle altitude set to %.1fm", meters)
	return nil
}

// Hover is a no-op for the simulated vehicle.
func (s *Sim) Hover(context.Context) error {
	log.Printf("sim vehicle hovering")
	return nil
}

// GetState reports the current simulated state.
func (s *Sim) GetState(context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}
