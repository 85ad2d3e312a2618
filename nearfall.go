package fallsense

import (
	"gonum.org/v1/gonum/stat"

	"github.com/sentinelcare/go-fallsense/pose"
)

// NearFallStatus represents the rule machine emission for a single frame
type NearFallStatus int

const (
	// Nothing to report
	NoEvent NearFallStatus = 0
	// The motion resolved as the person sitting down
	Sitting NearFallStatus = 1
	// A stumble with recovery was detected
	NearFall NearFallStatus = 2
)

// String returns the status name as used in logs and the event store
func (s NearFallStatus) String() string {
	switch s {
	case Sitting:
		return "sitting"
	case NearFall:
		return "near_fall"
	default:
		return "no_event"
	}
}

// DetectorState represents the state of the near fall rule machine
type DetectorState int

const (
	// Watching for a velocity spike
	StateIdle DetectorState = 0
	// A spike occurred, next frame disambiguates sit from fall
	StateTriggered DetectorState = 1
	// Watching whether the hip returns toward baseline
	StateRecovery DetectorState = 2
)

// String returns the state name
func (s DetectorState) String() string {
	switch s {
	case StateTriggered:
		return "TRIGGERED"
	case StateRecovery:
		return "RECOVERY"
	default:
		return "IDLE"
	}
}

// Rule names reported through FrameResult.FiredRules when the corresponding
// transition fires
const (
	RuleVelocitySpike    = "velocity_spike_below_baseline"
	RuleActivityRatioSit = "activity_ratio_sit"
	RuleEnteringRecovery = "entering_recovery"
	RuleRecoveryDetected = "recovery_detected"
)

// NearFallParams defines the configuration for the NearFallDetector.  All
// position thresholds are on the body height normalised hip scale where
// standing is roughly 1.0, making them invariant to how far the person is
// from the camera.
type NearFallParams struct {
	// VelocityTrigger is the normalised hip drop per frame that triggers
	// the machine
	VelocityTrigger float64
	// VelocityCalm is the peak velocity below which the person counts as
	// calmly standing, used for baseline collection
	VelocityCalm float64
	// ActivityRatioSit is the leg to torso ratio below which a calm
	// motion resolves as sitting
	ActivityRatioSit float64
	// RecoveryFrames is the number of frames to watch for recovery after
	// a trigger
	RecoveryFrames int
	// MinDropToQualify is the normalised drop below baseline required for
	// a motion to count as a real event
	MinDropToQualify float64
	// RecoveryTolerance is how close to baseline the hip must return for
	// the event to count as recovered
	RecoveryTolerance float64
	// BaselineFrames is the number of calm frames needed to establish the
	// standing baseline
	BaselineFrames int
	// MaxActivityRatio is the sanity limit above which a frame is treated
	// as a broken pose, usually a lost knee landmark
	MaxActivityRatio float64
}

// DefaultNearFallParams returns an instance of NearFallParams configured
// with default values of:
// - Velocity Trigger: 0.025
// - Velocity Calm: 0.012
// - Activity Ratio Sit: 0.55
// - Recovery Frames: 30
// - Min Drop To Qualify: 0.04
// - Recovery Tolerance: 0.05
// - Baseline Frames: 45
// - Max Activity Ratio: 5.0
func DefaultNearFallParams() NearFallParams {
	return NearFallParams{
		VelocityTrigger:   0.025,
		VelocityCalm:      0.012,
		ActivityRatioSit:  0.55,
		RecoveryFrames:    30,
		MinDropToQualify:  0.04,
		RecoveryTolerance: 0.05,
		BaselineFrames:    45,
		MaxActivityRatio:  5.0,
	}
}

// hipNorm bounds outside which a frame is rejected as a broken pose
const (
	minSaneHipNorm = -0.2
	maxSaneHipNorm = 2.5
)

// velocityRingSize smooths single frame noise when looking for a spike
const velocityRingSize = 3

// NearFallDetector is the rule based kinematic state machine.  It works on
// the hip position normalised by shoulder to knee body height:
//
//	hip_norm = (hip_y - shoulder_y) / body_height
//
// where 0 is the hip collapsed to shoulder level, roughly 1.0 is standing
// and values above 1 mean the hip has dropped below the knee line.  Knees
// rather than ankles anchor the body height because feet are often out of
// frame.
//
// The machine runs a triple check: a velocity spike on the normalised hip
// arms it, the leg to torso activity ratio disambiguates a slow sit from a
// fall, and a bounded recovery window decides whether the drop was a
// near fall (returned near baseline) or not.  Not safe for concurrent use.
type NearFallDetector struct {
	// Params are the rule machine configuration parameters
	Params NearFallParams

	// baselineBuf collects hip_norm samples while the person is calm
	baselineBuf *floatRing
	// standingNorm is the derived normalised hip position when standing
	standingNorm float64
	// hasBaseline indicates standingNorm holds a value
	hasBaseline bool

	// prevNorm is the previous frame's hip_norm used for velocity
	prevNorm float64
	// hasPrevNorm indicates prevNorm holds a value
	hasPrevNorm bool
	// velocityBuf smooths velocity over the last few frames
	velocityBuf *floatRing

	// state is the current machine state
	state DetectorState
	// recoveryFramesLeft counts down the recovery window
	recoveryFramesLeft int
	// lowestNormInRecovery tracks the deepest body position seen during
	// recovery.  Deeper means a larger hip_norm, so this is a numeric
	// maximum despite the name referring to the lowest body position.
	lowestNormInRecovery float64
	// hasLowestNorm indicates lowestNormInRecovery holds a value
	hasLowestNorm bool

	// firedRules are the rule names that fired on the current frame
	firedRules []string
}

// NewNearFallDetector returns an instance of the NearFallDetector
func NewNearFallDetector(p NearFallParams) *NearFallDetector {
	return &NearFallDetector{
		Params:      p,
		baselineBuf: newFloatRing(p.BaselineFrames),
		velocityBuf: newFloatRing(velocityRingSize),
		state:       StateIdle,
	}
}

// Update processes one frame of keypoints and returns the rule machine
// emission.  A nil frame is a detection gap: the velocity memory and fired
// rule list are cleared but the machine state is left untouched, so a short
// gap cannot reset accumulated progress.
func (d *NearFallDetector) Update(frame pose.Frame) NearFallStatus {

	if frame == nil {
		d.hasPrevNorm = false
		d.firedRules = nil
		return NoEvent
	}

	d.firedRules = nil

	hipY := frame.HipY()
	kneeY := frame.KneeY()
	shoulderY := frame.ShoulderY()

	// shoulder to knee body height, knees are used because they stay in
	// frame more reliably than ankles
	bodyHeight := abs(kneeY-shoulderY) + epsilon

	// normalised hip position, increases as the hip drops
	hipNorm := (hipY - shoulderY) / bodyHeight

	legHeight := abs(kneeY-hipY) + epsilon
	torsoHeight := abs(hipY-shoulderY) + epsilon
	activityRatio := legHeight / torsoHeight

	// sanity check, reject broken pose frames without touching the state
	// machine so a single bad frame cannot reset progress
	if activityRatio > d.Params.MaxActivityRatio ||
		hipNorm < minSaneHipNorm || hipNorm > maxSaneHipNorm {
		d.hasPrevNorm = false
		return NoEvent
	}

	// velocity on the normalised position
	velocity := 0.0
	if d.hasPrevNorm {
		velocity = hipNorm - d.prevNorm
	}
	d.prevNorm = hipNorm
	d.hasPrevNorm = true

	d.velocityBuf.Push(velocity)
	peakVelocity := d.velocityBuf.Max()

	// baseline collection runs in any state whenever the motion looks
	// calm, so it keeps tracking slow posture drift
	if abs(peakVelocity) < d.Params.VelocityCalm {
		d.baselineBuf.Push(hipNorm)
		if d.baselineBuf.Full() {
			d.standingNorm = stat.Mean(d.baselineBuf.Slice(), nil)
			d.hasBaseline = true
		}
	}

	switch d.state {
	case StateIdle:
		// the spike must exceed the trigger threshold
		velocitySpike := peakVelocity >= d.Params.VelocityTrigger

		// and the hip must be physically below the standing baseline,
		// which ignores jumps where the hip goes higher than normal
		isBelowBaseline := true
		if d.hasBaseline {
			isBelowBaseline = hipNorm > d.standingNorm+0.01
		}

		if velocitySpike && isBelowBaseline {
			d.firedRules = append(d.firedRules, RuleVelocitySpike)
			d.state = StateTriggered
		}

	case StateTriggered:
		isSitting := activityRatio < d.Params.ActivityRatioSit &&
			abs(peakVelocity) < d.Params.VelocityTrigger

		if isSitting {
			d.firedRules = append(d.firedRules, RuleActivityRatioSit)
			d.state = StateIdle
			return Sitting
		}

		d.firedRules = append(d.firedRules, RuleEnteringRecovery)
		d.state = StateRecovery
		d.recoveryFramesLeft = d.Params.RecoveryFrames
		d.lowestNormInRecovery = hipNorm
		d.hasLowestNorm = true

	case StateRecovery:
		d.recoveryFramesLeft--

		// track the deepest point of the drop
		if hipNorm > d.lowestNormInRecovery {
			d.lowestNormInRecovery = hipNorm
		}

		// near_fall requires a known baseline, a meaningful drop below
		// it and the hip now being back close to standing
		droppedEnough := d.hasBaseline &&
			d.lowestNormInRecovery > d.standingNorm+d.Params.MinDropToQualify

		recovered := droppedEnough &&
			hipNorm <= d.standingNorm+d.Params.RecoveryTolerance

		if recovered {
			d.firedRules = append(d.firedRules, RuleRecoveryDetected)
			d.state = StateIdle
			d.hasLowestNorm = false
			return NearFall
		}

		if d.recoveryFramesLeft <= 0 {
			// timed out without recovery, a sustained fall is the
			// classifier path's job
			d.state = StateIdle
			d.hasLowestNorm = false
		}
	}

	return NoEvent
}

// State returns the current machine state
func (d *NearFallDetector) State() DetectorState {
	return d.state
}

// FiredRules returns the rule names that fired on the most recent frame
func (d *NearFallDetector) FiredRules() []string {
	out := make([]string, len(d.firedRules))
	copy(out, d.firedRules)
	return out
}

// StandingBaseline returns the derived standing hip_norm baseline and
// whether enough calm frames have been seen to establish it
func (d *NearFallDetector) StandingBaseline() (float64, bool) {
	return d.standingNorm, d.hasBaseline
}

// Reset clears every buffer and returns the machine to idle, call it
// between monitoring sessions
func (d *NearFallDetector) Reset() {
	d.baselineBuf.Clear()
	d.standingNorm = 0
	d.hasBaseline = false
	d.hasPrevNorm = false
	d.velocityBuf.Clear()
	d.state = StateIdle
	d.recoveryFramesLeft = 0
	d.hasLowestNorm = false
	d.firedRules = nil
}

// abs returns the absolute value of v
func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
