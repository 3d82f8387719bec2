package track

import (
	"github.com/skyward-data/groundtrack/internal/config"
	"github.com/skyward-data/groundtrack/internal/geom"
)

// AssociatorConfig holds the matching parameters for the association engine.
type AssociatorConfig struct {
	// MaxCost is the association rejection threshold on 1 - IoU. Pairs
	// above it are rejected even when globally optimal, so spatially close
	// but unrelated targets are never merged.
	MaxCost float64
	// HighConfidence splits detections into the two matching tiers and
	// gates class mismatches: a detection at or above it never matches a
	// track of a different class.
	HighConfidence float64
}

// AssociatorConfigFromTuning builds an AssociatorConfig from a loaded TuningConfig.
func AssociatorConfigFromTuning(cfg *config.TuningConfig) AssociatorConfig {
	return AssociatorConfig{
		MaxCost:        cfg.GetAssociationMaxCost(),
		HighConfidence: cfg.GetHighConfidence(),
	}
}

// Associator matches each frame's detections against the store's predicted
// track positions and drives track creation, update, and termination. It is
// the store's single writer: no other component mutates tracks.
type Associator struct {
	store *Store
	cfg   AssociatorConfig
}

// NewAssociator creates an association engine over the given store.
func NewAssociator(store *Store, cfg AssociatorConfig) *Associator {
	return &Associator{store: store, cfg: cfg}
}

// Result reports the outcome of one frame's association.
type Result struct {
	// Matched maps detection index to the track ID it updated.
	Matched map[int]int64
	// Created lists track IDs spawned from unmatched confident detections,
	// in detection index order.
	Created []int64
	// Missed lists live track IDs that went unmatched this frame.
	Missed []int64
	// Removed lists track IDs purged after the lost grace period.
	Removed []int64
}

// Associate runs the per-frame association cycle: predict, match in two
// confidence tiers, update matched tracks, mark the rest missed, spawn
// tentative tracks from unmatched confident detections, and prune expired
// tracks. Given identical detections and track state the result is
// reproducible: tracks are considered in ascending ID order, detections in
// input order, and equal-cost ties resolve to the lowest detection index.
func (a *Associator) Associate(dets []Detection, frame int64, nowNanos int64) Result {
	res := Result{Matched: make(map[int]int64, len(dets))}

	liveIDs := a.store.liveIDs()
	predicted := make([]geom.Box, len(liveIDs))
	classes := make(map[int64]string, len(liveIDs))
	for i, id := range liveIDs {
		predicted[i], _ = a.store.Predict(id)
		if t, ok := a.store.Get(id); ok {
			classes[id] = t.Class
		}
	}

	// Partition detection indices by confidence tier.
	var highIdx, lowIdx []int
	for i, d := range dets {
		if d.Confidence >= a.cfg.HighConfidence {
			highIdx = append(highIdx, i)
		} else {
			lowIdx = append(lowIdx, i)
		}
	}

	matchedTracks := make(map[int64]bool, len(liveIDs))

	// Tier 1: high-confidence detections against all live tracks, with
	// class gating.
	a.matchTier(dets, highIdx, liveIDs, predicted, classes, matchedTracks, true, res.Matched)

	// Tier 2: low-confidence detections against the tracks left unmatched.
	// Class gating is off — a half-occluded target often comes back with a
	// shaky label, and tier 2 exists to recover exactly those.
	var leftIDs []int64
	var leftBoxes []geom.Box
	for i, id := range liveIDs {
		if !matchedTracks[id] {
			leftIDs = append(leftIDs, id)
			leftBoxes = append(leftBoxes, predicted[i])
		}
	}
	a.matchTier(dets, lowIdx, leftIDs, leftBoxes, classes, matchedTracks, false, res.Matched)

	// Apply matches.
	for di, id := range res.Matched {
		if err := a.store.Update(id, dets[di], frame, nowNanos); err != nil {
			// Should not happen: matched IDs come from the live set.
			delete(res.Matched, di)
		}
	}

	// Unmatched live tracks miss this frame.
	for _, id := range liveIDs {
		if !matchedTracks[id] {
			a.store.MarkMissed(id)
			res.Missed = append(res.Missed, id)
		}
	}

	// Unmatched high-confidence detections spawn new tentative tracks.
	// Low-confidence leftovers are dropped: seeding tracks from weak
	// detections floods the store with noise.
	for _, di := range highIdx {
		if _, ok := res.Matched[di]; ok {
			continue
		}
		if t := a.store.Create(dets[di], frame, nowNanos); t != nil {
			res.Created = append(res.Created, t.ID)
		}
	}

	res.Removed = a.store.Prune()
	return res
}

// matchTier builds the cost matrix for one tier and applies the Hungarian
// assignment. detIdx maps matrix rows back to detection indices; trackIDs
// maps columns back to track identities.
func (a *Associator) matchTier(dets []Detection, detIdx []int, trackIDs []int64, predicted []geom.Box, classes map[int64]string, matchedTracks map[int64]bool, gateClass bool, matched map[int]int64) {
	if len(detIdx) == 0 || len(trackIDs) == 0 {
		return
	}

	cost := make([][]float64, len(detIdx))
	for r, di := range detIdx {
		cost[r] = make([]float64, len(trackIDs))
		det := dets[di]
		for c, id := range trackIDs {
			if gateClass && det.Class != classes[id] {
				cost[r][c] = forbiddenCost
				continue
			}
			pairCost := 1 - det.Box.IoU(predicted[c])
			if pairCost > a.cfg.MaxCost {
				cost[r][c] = forbiddenCost
				continue
			}
			cost[r][c] = pairCost
		}
	}

	assign := hungarianAssign(cost)
	for r, c := range assign {
		if c < 0 {
			continue
		}
		id := trackIDs[c]
		matched[detIdx[r]] = id
		matchedTracks[id] = true
	}
}
