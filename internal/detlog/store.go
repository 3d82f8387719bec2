// Package detlog persists per-frame detection records and analysis results
// to sqlite. Writes are buffered and flushed in batches so the hot frame
// loop never blocks on disk.
package detlog

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/skyward-data/groundtrack/internal/track"
)

// frameRow is one buffered track observation.
type frameRow struct {
	frame         int64
	capturedAtNS  int64
	trackID       int64
	className     string
	state         string
	confidence    float64
	x, y, w, h    float64
	distance      float64
	distanceKnown bool
}

// analysisRow is one buffered scene-analysis result.
type analysisRow struct {
	frame        int64
	seq          int64
	text         string
	receivedAtNS int64
}

// Store writes detection records for a single run. Safe for concurrent use.
type Store struct {
	db    *sql.DB
	runID string

	mu         sync.Mutex
	frames     []frameRow
	analyses   []analysisRow
	flushEvery int
	pending    int // frames appended since last flush
	closed     bool
}

// Open opens (creating if needed) the sqlite database at path, applies
// pending schema migrations, and registers a new run. flushEvery is the
// number of appended snapshots after which the buffer is written out; 0
// selects a default of 30.
func Open(path, source string, startedAtNS int64, flushEvery int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open detection log: %w", err)
	}
	// modernc sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY churn under concurrent readers.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	runID := uuid.New().String()
	_, err = db.Exec(
		`INSERT INTO runs (run_id, started_at_ns, source) VALUES (?, ?, ?)`,
		runID, startedAtNS, source,
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("register run: %w", err)
	}

	if flushEvery <= 0 {
		flushEvery = 30
	}
	log.Printf("detection log open at %s, run %s", path, runID)
	return &Store{db: db, runID: runID, flushEvery: flushEvery}, nil
}

// RunID returns the identity of the run this store writes.
func (s *Store) RunID() string { return s.runID }

// AppendSnapshot buffers one row per live track in the snapshot. The
// buffer is flushed after every flushEvery appended snapshots.
func (s *Store) AppendSnapshot(snap track.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("detection log already closed")
	}

	for _, t := range snap.Tracks {
		s.frames = append(s.frames, frameRow{
			frame:         snap.Frame,
			capturedAtNS:  snap.TSUnixNanos,
			trackID:       t.ID,
			className:     t.Class,
			state:         string(t.State),
			confidence:    t.Confidence,
			x:             t.Box.X,
			y:             t.Box.Y,
			w:             t.Box.Width,
			h:             t.Box.Height,
			distance:      t.Distance,
			distanceKnown: t.DistanceKnown,
		})
	}

	s.pending++
	if s.pending >= s.flushEvery {
		return s.flushLocked()
	}
	return nil
}

// AppendAnalysis buffers one scene-analysis result, flushed with the next
// snapshot batch.
func (s *Store) AppendAnalysis(frame, seq int64, text string, receivedAtNS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("detection log already closed")
	}
	s.analyses = append(s.analyses, analysisRow{
		frame: frame, seq: seq, text: text, receivedAtNS: receivedAtNS,
	})
	return nil
}

// Flush writes all buffered rows in one transaction.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if len(s.frames) == 0 && len(s.analyses) == 0 {
		s.pending = 0
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin flush: %w", err)
	}
	defer tx.Rollback()

	if len(s.frames) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO frame_records
				(run_id, frame, captured_at_ns, track_id, class_name, state, confidence, x, y, w, h, distance_m)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare frame insert: %w", err)
		}
		for _, r := range s.frames {
			var dist interface{}
			if r.distanceKnown {
				dist = r.distance
			}
			if _, err := stmt.Exec(
				s.runID, r.frame, r.capturedAtNS, r.trackID, r.className,
				r.state, r.confidence, r.x, r.y, r.w, r.h, dist,
			); err != nil {
				stmt.Close()
				return fmt.Errorf("insert frame record: %w", err)
			}
		}
		stmt.Close()
	}

	for _, a := range s.analyses {
		_, err := tx.Exec(
			`INSERT INTO analysis_log (run_id, frame, seq, analysis_text, received_at_ns)
			 VALUES (?, ?, ?, ?, ?)`,
			s.runID, a.frame, a.seq, a.text, a.receivedAtNS,
		)
		if err != nil {
			return fmt.Errorf("insert analysis record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flush: %w", err)
	}
	s.frames = s.frames[:0]
	s.analyses = s.analyses[:0]
	s.pending = 0
	return nil
}

// Close flushes remaining rows, stamps the run end time, and closes the
// database.
func (s *Store) Close(finishedAtNS int64) error {
	s.mu.Lock()
	flushErr := s.flushLocked()
	s.closed = true
	s.mu.Unlock()

	if _, err := s.db.Exec(
		`UPDATE runs SET finished_at_ns = ? WHERE run_id = ?`, finishedAtNS, s.runID,
	); err != nil && flushErr == nil {
		flushErr = fmt.Errorf("stamp run end: %w", err)
	}
	if err := s.db.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	return flushErr
}

// FrameCount is the number of confirmed tracks recorded at one frame.
type FrameCount struct {
	Frame int64
	Count int
}

// ConfirmedCounts returns the per-frame confirmed-track counts for this
// run, ascending by frame. Buffered rows not yet flushed are not visible.
func (s *Store) ConfirmedCounts() ([]FrameCount, error) {
	rows, err := s.db.Query(
		`SELECT frame, COUNT(*) FROM frame_records
		 WHERE run_id = ? AND state = 'confirmed'
		 GROUP BY frame ORDER BY frame`,
		s.runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query confirmed counts: %w", err)
	}
	defer rows.Close()

	var out []FrameCount
	for rows.Next() {
		var fc FrameCount
		if err := rows.Scan(&fc.Frame, &fc.Count); err != nil {
			return nil, fmt.Errorf("scan confirmed count: %w", err)
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// DistancePoint is one recorded range estimate for a track.
type DistancePoint struct {
	Frame    int64
	TrackID  int64
	Class    string
	Distance float64
}

// Distances returns every recorded range estimate for this run, ascending
// by frame then track ID. Rows without a range estimate are omitted.
func (s *Store) Distances() ([]DistancePoint, error) {
	rows, err := s.db.Query(
		`SELECT frame, track_id, class_name, distance_m FROM frame_records
		 WHERE run_id = ? AND distance_m IS NOT NULL
		 ORDER BY frame, track_id`,
		s.runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query distances: %w", err)
	}
	defer rows.Close()

	var out []DistancePoint
	for rows.Next() {
		var dp DistancePoint
		if err := rows.Scan(&dp.Frame, &dp.TrackID, &dp.Class, &dp.Distance); err != nil {
			return nil, fmt.Errorf("scan distance: %w", err)
		}
		out = append(out, dp)
	}
	return out, rows.Err()
}

// TrailPoint is one recorded box center for a track.
type TrailPoint struct {
	TrackID int64
	Class   string
	X, Y    float64
}

// Trails returns every recorded box center for this run, grouped by track
// in frame order, for plotting track trajectories.
func (s *Store) Trails() ([]TrailPoint, error) {
	rows, err := s.db.Query(
		`SELECT track_id, class_name, x + w/2, y + h/2 FROM frame_records
		 WHERE run_id = ? ORDER BY track_id, frame`,
		s.runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query trails: %w", err)
	}
	defer rows.Close()

	var out []TrailPoint
	for rows.Next() {
		var tp TrailPoint
		if err := rows.Scan(&tp.TrackID, &tp.Class, &tp.X, &tp.Y); err != nil {
			return nil, fmt.Errorf("scan trail point: %w", err)
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}
