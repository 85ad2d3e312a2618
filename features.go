package fallsense

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/sentinelcare/go-fallsense/pose"
)

// Feature indices within a FeatureTuple
const (
	FeatHipY = iota
	FeatHipVelocity
	FeatSpineAngle
	FeatBBoxAspectRatio
	FeatKPVariance
)

// FeatureCount is the number of scalar features computed per frame
const FeatureCount = 5

// epsilon guards divisions and atan2 arguments against degenerate poses
const epsilon = 1e-6

// FeatureTuple holds the per frame scalar features in index order: hip
// height, hip velocity, spine angle, bounding box aspect ratio and keypoint
// variance
type FeatureTuple [FeatureCount]float64

// EngineerParams defines the configuration for the FeatureEngineer
type EngineerParams struct {
	// WindowSize is the number of frames per sliding window.  At 15fps the
	// default of 50 covers roughly 3 seconds of motion
	WindowSize int
	// VarianceWindow is the length of the shorter trailing window the
	// keypoint variance feature is computed over
	VarianceWindow int
}

// DefaultEngineerParams returns an instance of EngineerParams configured
// with default values of:
// - Window Size: 50
// - Variance Window: 10
func DefaultEngineerParams() EngineerParams {
	return EngineerParams{
		WindowSize:     50,
		VarianceWindow: 10,
	}
}

// FeatureEngineer turns each keypoint frame into a FeatureTuple and
// maintains the sliding window the classifier consumes.  Call Compute every
// frame; it returns a flattened window vector once the window is full and
// nil while warming up.  Not safe for concurrent use.
type FeatureEngineer struct {
	// Params are the feature extraction configuration parameters
	Params EngineerParams
	// window is the main sliding window of per frame features
	window *tupleRing
	// yHistory is the trailing mean landmark height window used for the
	// keypoint variance feature
	yHistory *floatRing
	// prevHipY is the hip height of the previous detected frame
	prevHipY float64
	// hasPrevHipY indicates prevHipY holds a value
	hasPrevHipY bool
}

// NewFeatureEngineer returns an instance of the FeatureEngineer
func NewFeatureEngineer(p EngineerParams) *FeatureEngineer {
	return &FeatureEngineer{
		Params:   p,
		window:   newTupleRing(p.WindowSize),
		yHistory: newFloatRing(p.VarianceWindow),
	}
}

// Compute processes one frame of keypoints and advances the sliding window.
// A nil frame is a detection gap: a zero tuple is pushed so the window keeps
// sliding and the velocity memory is cleared.  The returned vector is nil
// until the window has filled, afterwards it holds WindowSize*FeatureCount
// values in feature major order: all time samples of feature 0, then all of
// feature 1 and so on.  That ordering is the contract with the scorer
// artifact and must not change.
func (e *FeatureEngineer) Compute(frame pose.Frame) []float64 {

	if frame == nil {
		// gap in detection, add zeros as a placeholder so the window
		// still slides
		e.window.Push(FeatureTuple{})
		e.hasPrevHipY = false
		return nil
	}

	hipY := frame.HipY()
	hipX := frame.HipX()

	hipVelocity := 0.0
	if e.hasPrevHipY {
		hipVelocity = hipY - e.prevHipY
	}
	e.prevHipY = hipY
	e.hasPrevHipY = true

	// angle of the shoulder-hip line from vertical, in degrees
	dy := hipY - frame.ShoulderY()
	dx := hipX - frame.ShoulderX()
	spineAngle := degrees(math.Atan2(math.Abs(dx), math.Abs(dy)+epsilon))

	minX, minY, maxX, maxY := frame.Bounds()
	bboxAspectRatio := (maxY - minY) / (maxX - minX + epsilon)

	e.yHistory.Push(frame.MeanY())
	kpVariance := stat.PopVariance(e.yHistory.Slice(), nil)

	e.window.Push(FeatureTuple{
		FeatHipY:            hipY,
		FeatHipVelocity:     hipVelocity,
		FeatSpineAngle:      spineAngle,
		FeatBBoxAspectRatio: bboxAspectRatio,
		FeatKPVariance:      kpVariance,
	})

	if !e.window.Full() {
		// still warming up
		return nil
	}

	return e.flatten()
}

// flatten converts the window into the feature major vector layout expected
// by the scorer
func (e *FeatureEngineer) flatten() []float64 {

	tuples := e.window.Slice()
	flat := make([]float64, 0, len(tuples)*FeatureCount)

	for feat := 0; feat < FeatureCount; feat++ {
		for _, tuple := range tuples {
			flat = append(flat, tuple[feat])
		}
	}

	return flat
}

// WindowLen returns the current fill level of the sliding window
func (e *FeatureEngineer) WindowLen() int {
	return e.window.Len()
}

// Reset clears the sliding window and all frame to frame memory, call it
// between monitoring sessions or video clips
func (e *FeatureEngineer) Reset() {
	e.window.Clear()
	e.yHistory.Clear()
	e.hasPrevHipY = false
}

// degrees converts radians to degrees
func degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
