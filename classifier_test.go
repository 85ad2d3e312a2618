package fallsense

import (
	"errors"
	"testing"
)

// scriptedScorer replays a fixed list of probabilities, one per call
type scriptedScorer struct {
	scores []float64
	calls  int
}

func (s *scriptedScorer) Score(vector []float64) (float64, error) {
	if s.calls >= len(s.scores) {
		return 0, errors.New("scripted scorer exhausted")
	}
	p := s.scores[s.calls]
	s.calls++
	return p, nil
}

// failingScorer always returns an error, standing in for a corrupt model
type failingScorer struct{}

func (failingScorer) Score(vector []float64) (float64, error) {
	return 0, errors.New("model file corrupt")
}

// dummyVector is a non-nil vector of the right shape, the scripted scorer
// ignores its contents
func dummyVector() []float64 {
	return make([]float64, 50*FeatureCount)
}

// TestClassifierConfirmation walks a probability stream through the
// confirmation policy and checks the status at every frame
func TestClassifierConfirmation(t *testing.T) {

	scorer := &scriptedScorer{scores: []float64{
		0.9, 0.8, 0.7, // ramp up to confirmation
		0.9, 0.9, // continuing streak after declaration
		0.1,      // streak broken, latch re-armed
		0.6, 0.7, // second ramp
		0.8,      // second declaration
		0.2, 0.2, // quiet
	}}

	c := NewFallClassifier(scorer, ClassifierParams{
		Threshold:           0.5,
		ConfirmationWindows: 3,
	})

	expected := []RFStatus{
		RFConfirming, RFConfirming, RFFall,
		RFConfirming, RFConfirming,
		RFNoFall,
		RFConfirming, RFConfirming,
		RFFall,
		RFNoFall, RFNoFall,
	}

	for i, want := range expected {
		got, err := c.Predict(dummyVector())

		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}

		if got != want {
			t.Errorf("frame %d: status = %v, want %v", i, got, want)
		}
	}
}

// TestClassifierNilVector verifies a warm-up or gap frame resets the
// counter without touching the declaration latch
func TestClassifierNilVector(t *testing.T) {

	scorer := &scriptedScorer{scores: []float64{0.9, 0.9, 0.9, 0.9, 0.9}}

	c := NewFallClassifier(scorer, ClassifierParams{
		Threshold:           0.5,
		ConfirmationWindows: 2,
	})

	if status, _ := c.Predict(nil); status != RFNoFall {
		t.Errorf("nil vector status = %v, want no_fall", status)
	}

	// one positive then a gap, the streak must restart from zero
	c.Predict(dummyVector())

	if status, _ := c.Predict(nil); status != RFNoFall {
		t.Errorf("nil vector status = %v, want no_fall", status)
	}

	if status, _ := c.Predict(dummyVector()); status != RFConfirming {
		t.Errorf("first frame after gap = %v, want confirming", status)
	}

	if status, _ := c.Predict(dummyVector()); status != RFFall {
		t.Errorf("second frame after gap = %v, want fall", status)
	}
}

// TestClassifierScorerError verifies a scorer failure propagates to the
// caller instead of being swallowed
func TestClassifierScorerError(t *testing.T) {

	c := NewFallClassifier(failingScorer{}, DefaultClassifierParams())

	if _, err := c.Predict(dummyVector()); err == nil {
		t.Errorf("expected error from failing scorer, got nil")
	}
}

// TestClassifierReset verifies Reset re-arms both the counter and the latch
func TestClassifierReset(t *testing.T) {

	scorer := &scriptedScorer{scores: []float64{0.9, 0.9, 0.9, 0.9}}

	c := NewFallClassifier(scorer, ClassifierParams{
		Threshold:           0.5,
		ConfirmationWindows: 2,
	})

	c.Predict(dummyVector())
	if status, _ := c.Predict(dummyVector()); status != RFFall {
		t.Fatalf("setup failed, expected fall")
	}

	c.Reset()

	c.Predict(dummyVector())
	if status, _ := c.Predict(dummyVector()); status != RFFall {
		t.Errorf("no fall declared after reset, latch not re-armed")
	}
}
