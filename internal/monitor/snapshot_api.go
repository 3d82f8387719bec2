package monitor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/skyward-data/groundtrack/internal/track"
)

// trackJSON is the wire form of a track. The snapshot endpoint and the
// websocket stream share it.
type trackJSON struct {
	ID         int64    `json:"id"`
	Class      string   `json:"class_name"`
	State      string   `json:"state"`
	Confidence float64  `json:"conf"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	W          float64  `json:"w"`
	H          float64  `json:"h"`
	Distance   *float64 `json:"distance_m,omitempty"`
	Hits       int      `json:"hits"`
	Misses     int      `json:"misses"`
}

type snapshotJSON struct {
	Frame       int64       `json:"frame"`
	TSUnixNanos int64       `json:"ts_unix_nanos"`
	Tracks      []trackJSON `json:"tracks"`
}

func snapshotToJSON(snap track.Snapshot) snapshotJSON {
	out := snapshotJSON{
		Frame:       snap.Frame,
		TSUnixNanos: snap.TSUnixNanos,
		Tracks:      make([]trackJSON, 0, len(snap.Tracks)),
	}
	for _, t := range snap.Tracks {
		tj := trackJSON{
			ID:         t.ID,
			Class:      t.Class,
			State:      string(t.State),
			Confidence: t.Confidence,
			X:          t.Box.X,
			Y:          t.Box.Y,
			W:          t.Box.Width,
			H:          t.Box.Height,
			Hits:       t.Hits,
			Misses:     t.Misses,
		}
		if t.DistanceKnown {
			d := t.Distance
			tj.Distance = &d
		}
		out.Tracks = append(out.Tracks, tj)
	}
	return out
}

// handleSnapshot returns the current frame snapshot as JSON.
func (ws *WebServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	snap, ok := ws.pipe.Latest()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no frames processed yet")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshotToJSON(snap))
}

// handleAnalysis returns the latest scene-analysis result as JSON.
func (ws *WebServer) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.worker == nil {
		ws.writeJSONError(w, http.StatusNotFound, "analysis disabled")
		return
	}
	res, ok := ws.worker.Latest()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no analysis result yet")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"text": res.Text,
		"at":   res.At.Format(time.RFC3339),
		"seq":  res.Seq,
	})
}
