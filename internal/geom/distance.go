package geom

import "errors"

// Estimation errors. Both are local, skip-and-continue conditions: callers
// leave the detection without a distance annotation instead of failing the
// frame.
var (
	// ErrInvalidGeometry reports a degenerate box (height <= 0 px).
	ErrInvalidGeometry = errors.New("invalid bounding box geometry")
	// ErrOutOfRange reports an estimate beyond the plausible sensor range.
	ErrOutOfRange = errors.New("distance estimate out of plausible range")
)

// MinDistanceMeters is the floor applied to all estimates. Boxes tall enough
// to imply a nearer range are reported at this floor.
const MinDistanceMeters = 0.1

// DistanceEstimatorConfig holds the calibration constants for distance
// estimation. Reference heights are per-class average physical heights in
// metres.
type DistanceEstimatorConfig struct {
	ReferenceHeights       map[string]float64
	DefaultReferenceHeight float64
	FocalLengthPixels      float64
	MaxPlausibleDistance   float64
}

// DistanceEstimator converts bounding-box geometry into a physical range
// estimate using a pinhole-camera approximation:
//
//	distance = referenceHeight * focalLength / pixelHeight
//
// It is stateless; a single instance is shared across the pipeline.
type DistanceEstimator struct {
	cfg DistanceEstimatorConfig
}

// NewDistanceEstimator creates an estimator from calibration config.
func NewDistanceEstimator(cfg DistanceEstimatorConfig) *DistanceEstimator {
	return &DistanceEstimator{cfg: cfg}
}

// ReferenceHeight returns the configured physical height for a class, or the
// default height when the class is unlisted.
func (e *DistanceEstimator) ReferenceHeight(class string) float64 {
	if h, ok := e.cfg.ReferenceHeights[class]; ok {
		return h
	}
	return e.cfg.DefaultReferenceHeight
}

// Estimate returns the estimated range in metres for a detection of the
// given class. A degenerate box yields ErrInvalidGeometry; an estimate
// beyond MaxPlausibleDistance yields ErrOutOfRange. In both cases the
// caller should treat the distance as unknown.
func (e *DistanceEstimator) Estimate(class string, box Box) (float64, error) {
	if box.Height <= 0 {
		return 0, ErrInvalidGeometry
	}
	d := e.ReferenceHeight(class) * e.cfg.FocalLengthPixels / box.Height
	if d > e.cfg.MaxPlausibleDistance {
		return 0, ErrOutOfRange
	}
	if d < MinDistanceMeters {
		d = MinDistanceMeters
	}
	return d, nil
}
