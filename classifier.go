package fallsense

import (
	"fmt"
)

// RFStatus represents the classifier decision for a single frame
type RFStatus int

const (
	// No fall activity detected
	RFNoFall RFStatus = 0
	// Positive scores are accumulating but the confirmation window has not
	// been met yet, or a fall was already declared earlier in the streak
	RFConfirming RFStatus = 1
	// Fall confirmed, returned exactly once per qualifying streak
	RFFall RFStatus = 2
)

// String returns the status name as used in logs and the event store
func (s RFStatus) String() string {
	switch s {
	case RFConfirming:
		return "confirming"
	case RFFall:
		return "fall"
	default:
		return "no_fall"
	}
}

// Scorer is the narrow interface to the trained statistical model.  Score
// takes a flattened feature window vector and returns the positive class
// probability in [0,1].  The serialization format of the model artifact is
// an external concern, see the forest subpackage for the implementation
// shipped with this module.
type Scorer interface {
	Score(vector []float64) (float64, error)
}

// ClassifierParams defines the configuration for the FallClassifier
type ClassifierParams struct {
	// Threshold is the minimum probability score counted as a positive
	// frame
	Threshold float64
	// ConfirmationWindows is how many consecutive positive frames are
	// required before a fall is declared.  At 15fps a value of 3 is about
	// 0.2 seconds
	ConfirmationWindows int
}

// DefaultClassifierParams returns an instance of ClassifierParams configured
// with default values of:
// - Threshold: 0.5
// - Confirmation Windows: 3
func DefaultClassifierParams() ClassifierParams {
	return ClassifierParams{
		Threshold:           0.5,
		ConfirmationWindows: 3,
	}
}

// FallClassifier wraps the trained scorer with a debounce policy: a fall is
// only declared after ConfirmationWindows consecutive positive scores, and
// only once per streak.  A single score below threshold resets the counter
// and re-arms the declaration latch.  Not safe for concurrent use.
type FallClassifier struct {
	// Params are the classifier configuration parameters
	Params ClassifierParams
	// scorer is the trained model
	scorer Scorer
	// consecutivePositives counts scores at or above threshold in a row
	consecutivePositives int
	// fallDeclared latches once a fall has been returned for the current
	// streak
	fallDeclared bool
}

// NewFallClassifier returns an instance of the FallClassifier wrapping the
// given scorer
func NewFallClassifier(scorer Scorer, p ClassifierParams) *FallClassifier {
	return &FallClassifier{
		Params: p,
		scorer: scorer,
	}
}

// Predict scores one flattened feature window and applies the confirmation
// policy.  A nil vector means the feature window is still warming up or a
// detection gap occurred; it resets the positive counter and returns
// RFNoFall.  A scorer error is propagated as it signals a corrupt model
// rather than a transient condition.
func (c *FallClassifier) Predict(vector []float64) (RFStatus, error) {

	if vector == nil {
		c.consecutivePositives = 0
		return RFNoFall, nil
	}

	proba, err := c.scorer.Score(vector)

	if err != nil {
		return RFNoFall, fmt.Errorf("error scoring feature vector: %w", err)
	}

	if proba >= c.Params.Threshold {
		c.consecutivePositives++
	} else {
		c.consecutivePositives = 0
		c.fallDeclared = false
	}

	if c.consecutivePositives >= c.Params.ConfirmationWindows && !c.fallDeclared {
		c.fallDeclared = true
		return RFFall, nil
	}

	if c.consecutivePositives > 0 {
		return RFConfirming, nil
	}

	return RFNoFall, nil
}

// Reset clears the confirmation counter and declaration latch
func (c *FallClassifier) Reset() {
	c.consecutivePositives = 0
	c.fallDeclared = false
}
