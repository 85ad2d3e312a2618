package fallsense

import (
	"fmt"

	"github.com/sentinelcare/go-fallsense/pose"
)

// FrameResult is everything the pipeline produces for a single frame
type FrameResult struct {
	// RFStatus is the windowed classifier decision
	RFStatus RFStatus
	// NearFallStatus is the rule machine emission
	NearFallStatus NearFallStatus
	// Alert is true when either decision path fires a positive result
	Alert bool
	// FiredRules are the near fall rule names that fired this frame
	FiredRules []string
}

// FallTrigger receives confirmed fall notifications, the clip recorder
// implements it.  Duplicate notifications must be tolerated.
type FallTrigger interface {
	OnFallDetected()
}

// PipelineParams defines the configuration for the detection Pipeline
type PipelineParams struct {
	// Engineer are the feature extraction parameters
	Engineer EngineerParams
	// Classifier are the windowed classifier parameters
	Classifier ClassifierParams
	// NearFall are the rule machine parameters
	NearFall NearFallParams
}

// DefaultPipelineParams returns an instance of PipelineParams with each
// component's defaults
func DefaultPipelineParams() PipelineParams {
	return PipelineParams{
		Engineer:   DefaultEngineerParams(),
		Classifier: DefaultClassifierParams(),
		NearFall:   DefaultNearFallParams(),
	}
}

// Pipeline composes the two detection paths over one keypoint stream.  Each
// frame runs the feature window classifier and the near fall rule machine
// independently, then merges them into a single alert signal and notifies
// the fall trigger when a fall is confirmed.
//
// Processing is synchronous and single threaded: one call handles one frame
// and must return before the next is accepted.  The recovery and
// confirmation windows count frames, not wall clock time, so the caller is
// expected to supply frames at a roughly constant rate.
type Pipeline struct {
	// Params are the pipeline configuration parameters
	Params PipelineParams
	// engineer builds the sliding feature window
	engineer *FeatureEngineer
	// classifier is the windowed statistical decision path
	classifier *FallClassifier
	// nearFall is the rule based decision path
	nearFall *NearFallDetector
	// trigger receives confirmed fall notifications, may be nil
	trigger FallTrigger
}

// NewPipeline returns an instance of the detection Pipeline wrapping the
// given scorer.  The trigger may be nil when no clip recording is wanted.
func NewPipeline(scorer Scorer, trigger FallTrigger, p PipelineParams) *Pipeline {
	return &Pipeline{
		Params:     p,
		engineer:   NewFeatureEngineer(p.Engineer),
		classifier: NewFallClassifier(scorer, p.Classifier),
		nearFall:   NewNearFallDetector(p.NearFall),
		trigger:    trigger,
	}
}

// Process runs both detection paths over one frame of keypoints.  A nil
// frame means no person was detected and flows through both paths as a
// normal gap.  An error only occurs when the scorer fails, which signals a
// corrupt model.
func (p *Pipeline) Process(frame pose.Frame) (FrameResult, error) {

	// path A, sliding feature window into the classifier
	vector := p.engineer.Compute(frame)

	rfStatus, err := p.classifier.Predict(vector)

	if err != nil {
		return FrameResult{}, fmt.Errorf("classifier error: %w", err)
	}

	// path B, kinematic rules, fully independent of path A
	nearFallStatus := p.nearFall.Update(frame)

	alert := rfStatus == RFFall || rfStatus == RFConfirming ||
		nearFallStatus == NearFall

	if p.trigger != nil && (rfStatus == RFFall || nearFallStatus == NearFall) {
		p.trigger.OnFallDetected()
	}

	return FrameResult{
		RFStatus:       rfStatus,
		NearFallStatus: nearFallStatus,
		Alert:          alert,
		FiredRules:     p.nearFall.FiredRules(),
	}, nil
}

// NearFallState returns the current rule machine state for display and
// threshold tuning
func (p *Pipeline) NearFallState() DetectorState {
	return p.nearFall.State()
}

// StandingBaseline returns the rule machine's derived standing baseline and
// whether it has been established yet
func (p *Pipeline) StandingBaseline() (float64, bool) {
	return p.nearFall.StandingBaseline()
}

// Reset clears all sub component state, call it between monitoring sessions
func (p *Pipeline) Reset() {
	p.engineer.Reset()
	p.classifier.Reset()
	p.nearFall.Reset()
}

// Close releases the pipeline.  Processing holds no external resources so
// this simply resets, it exists so callers can treat the pipeline like the
// other components in a session teardown.
func (p *Pipeline) Close() {
	p.Reset()
}
