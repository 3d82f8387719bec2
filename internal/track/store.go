package track

import (
	"fmt"
	"sort"
	"sync"

	"github.com/skyward-data/groundtrack/internal/config"
	"github.com/skyward-data/groundtrack/internal/geom"
)

// StoreConfig holds the lifecycle thresholds for the track store.
type StoreConfig struct {
	HitsToConfirm      int // Consecutive hits needed for tentative -> confirmed
	MaxMisses          int // Consecutive misses before a tentative track is lost
	MaxMissesConfirmed int // Consecutive misses before a confirmed track is lost
	LostGraceFrames    int // Frames a lost track is retained before purging
	MaxHistoryLength   int // Maximum box history length per track
	MaxTracks          int // Maximum number of concurrent tracks
}

// StoreConfigFromTuning builds a StoreConfig from a loaded TuningConfig.
func StoreConfigFromTuning(cfg *config.TuningConfig) StoreConfig {
	return StoreConfig{
		HitsToConfirm:      cfg.GetHitsToConfirm(),
		MaxMisses:          cfg.GetMaxMisses(),
		MaxMissesConfirmed: cfg.GetMaxMissesConfirmed(),
		LostGraceFrames:    cfg.GetLostGraceFrames(),
		MaxHistoryLength:   cfg.GetMaxHistoryLength(),
		MaxTracks:          cfg.GetMaxTracks(),
	}
}

// Store holds the set of live and recently-lost tracks. All mutation is
// single-writer: only the Associator calls the mutating methods during a
// frame's processing. The mutex exists for concurrent readers (snapshot
// consumers on other goroutines), not for concurrent writers.
type Store struct {
	mu     sync.RWMutex
	tracks map[int64]*Track
	nextID int64
	cfg    StoreConfig

	// Lifetime counters.
	TracksCreated   int
	TracksConfirmed int
}

// NewStore creates an empty track store.
func NewStore(cfg StoreConfig) *Store {
	return &Store{
		tracks: make(map[int64]*Track),
		nextID: 1,
		cfg:    cfg,
	}
}

// Create spawns a new tentative track from an unmatched detection and
// returns it. Returns nil when the store is at capacity.
func (s *Store) Create(det Detection, frame int64, nowNanos int64) *Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tracks) >= s.cfg.MaxTracks {
		return nil
	}

	t := &Track{
		ID:             s.nextID,
		Class:          det.Class,
		Box:            det.Box,
		Distance:       det.Distance,
		DistanceKnown:  det.DistanceKnown,
		Confidence:     det.Confidence,
		State:          StateTentative,
		Hits:           1,
		Misses:         0,
		History:        []geom.Box{det.Box},
		FirstFrame:     frame,
		LastFrame:      frame,
		FirstUnixNanos: nowNanos,
		LastUnixNanos:  nowNanos,
	}
	s.nextID++
	s.tracks[t.ID] = t
	s.TracksCreated++
	return t
}

// Update applies a matched detection to a track: appends to history, resets
// the miss streak, increments the hit streak, and promotes tentative tracks
// that reach the confirmation threshold.
func (s *Store) Update(id int64, det Detection, frame int64, nowNanos int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracks[id]
	if !ok {
		return fmt.Errorf("update: no track with id %d", id)
	}
	if t.State == StateLost {
		return fmt.Errorf("update: track %d is lost and cannot be matched", id)
	}

	t.Box = det.Box
	t.Distance = det.Distance
	t.DistanceKnown = det.DistanceKnown
	t.Confidence = det.Confidence
	t.LastFrame = frame
	t.LastUnixNanos = nowNanos
	t.Hits++
	t.Misses = 0

	t.History = append(t.History, det.Box)
	if len(t.History) > s.cfg.MaxHistoryLength {
		t.History = t.History[len(t.History)-s.cfg.MaxHistoryLength:]
	}

	if t.State == StateTentative && t.Hits >= s.cfg.HitsToConfirm {
		t.State = StateConfirmed
		s.TracksConfirmed++
	}
	return nil
}

// MarkMissed records a frame with no matching detection: increments the
// miss streak, resets the hit streak, and demotes the track to lost when
// its miss budget is exhausted. Confirmed tracks are allowed a larger miss
// budget than tentative ones.
func (s *Store) MarkMissed(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracks[id]
	if !ok || t.State == StateLost {
		return
	}
	t.Misses++
	t.Hits = 0

	maxMisses := s.cfg.MaxMisses
	if t.State == StateConfirmed {
		maxMisses = s.cfg.MaxMissesConfirmed
	}
	if t.Misses > maxMisses {
		t.State = StateLost
		t.lostAge = 0
	}
}

// Predict returns the expected box for a track via linear extrapolation
// from its history. The second return is false when the track is unknown.
func (s *Store) Predict(id int64) (geom.Box, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tracks[id]
	if !ok {
		return geom.Box{}, false
	}
	return t.PredictedBox(), true
}

// Prune advances the age of every lost track and purges those past the
// grace period. Called exactly once per processed frame. Purged identities
// are returned and never reassigned.
func (s *Store) Prune() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []int64
	for id, t := range s.tracks {
		if t.State != StateLost {
			continue
		}
		t.lostAge++
		if t.lostAge > s.cfg.LostGraceFrames {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(s.tracks, id)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return removed
}

// Get returns a deep copy of a track, or false when it does not exist.
func (s *Store) Get(id int64) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tracks[id]
	if !ok {
		return Track{}, false
	}
	return t.clone(), true
}

// liveIDs returns the IDs of matchable (tentative or confirmed) tracks in
// ascending order. Ascending ID order is the deterministic tie-break basis
// for association.
func (s *Store) liveIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.tracks))
	for id, t := range s.tracks {
		if t.State != StateLost {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Count returns track counts by state.
func (s *Store) Count() (total, tentative, confirmed, lost int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tracks {
		total++
		switch t.State {
		case StateTentative:
			tentative++
		case StateConfirmed:
			confirmed++
		case StateLost:
			lost++
		}
	}
	return
}

// Snapshot returns an immutable copy of all tentative and confirmed tracks
// tagged with the frame index and timestamp, ordered by ascending ID. Safe
// to hand to readers on other goroutines.
func (s *Store) Snapshot(frame int64, nowNanos int64) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Frame:       frame,
		TSUnixNanos: nowNanos,
	}
	for _, t := range s.tracks {
		if t.State == StateLost {
			continue
		}
		snap.Tracks = append(snap.Tracks, t.clone())
	}
	sort.Slice(snap.Tracks, func(i, j int) bool { return snap.Tracks[i].ID < snap.Tracks[j].ID })
	return snap
}

// Snapshot is the set of displayable tracks and their attributes at one
// instant. It is a value type: the pipeline publishes a fresh snapshot per
// frame and readers never touch live track objects.
type Snapshot struct {
	Frame       int64
	TSUnixNanos int64
	Tracks      []Track
}

// Confirmed returns only the confirmed tracks from the snapshot.
func (s Snapshot) Confirmed() []Track {
	var out []Track
	for _, t := range s.Tracks {
		if t.State == StateConfirmed {
			out = append(out, t)
		}
	}
	return out
}

// Find returns the track with the given ID, or false when absent.
func (s Snapshot) Find(id int64) (Track, bool) {
	for _, t := range s.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}
