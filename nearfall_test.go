package fallsense

import (
	"testing"

	"github.com/sentinelcare/go-fallsense/pose"
)

// test body geometry, shoulders at 0.2 and knees at 0.7 giving a body
// height of 0.5
const (
	testShoulderY = 0.2
	testKneeY     = 0.7
)

// frameAtNorm builds a full keypoint frame whose derived hip_norm equals the
// given value under the test body geometry
func frameAtNorm(hipNorm float64) pose.Frame {
	hipY := testShoulderY + hipNorm*(testKneeY-testShoulderY)
	return makeFrame(testShoulderY, hipY, testKneeY)
}

// makeFrame builds a full keypoint frame with the given shoulder, hip and
// knee heights.  Remaining landmarks are placed at plausible positions so
// bounding box and mean height computations stay sane.
func makeFrame(shoulderY, hipY, kneeY float64) pose.Frame {

	f := make(pose.Frame, pose.NumLandmarks)

	// head cluster above the shoulders
	for i := pose.Nose; i <= pose.RightEar; i++ {
		f[i] = pose.Landmark{X: 0.5, Y: shoulderY - 0.05, Visibility: 1}
	}

	f[pose.LeftShoulder] = pose.Landmark{X: 0.45, Y: shoulderY, Visibility: 1}
	f[pose.RightShoulder] = pose.Landmark{X: 0.55, Y: shoulderY, Visibility: 1}

	// arms hang beside the torso
	armY := (shoulderY + hipY) / 2
	f[pose.LeftElbow] = pose.Landmark{X: 0.42, Y: armY, Visibility: 1}
	f[pose.RightElbow] = pose.Landmark{X: 0.58, Y: armY, Visibility: 1}
	f[pose.LeftWrist] = pose.Landmark{X: 0.41, Y: hipY, Visibility: 1}
	f[pose.RightWrist] = pose.Landmark{X: 0.59, Y: hipY, Visibility: 1}

	f[pose.LeftHip] = pose.Landmark{X: 0.47, Y: hipY, Visibility: 1}
	f[pose.RightHip] = pose.Landmark{X: 0.53, Y: hipY, Visibility: 1}
	f[pose.LeftKnee] = pose.Landmark{X: 0.46, Y: kneeY, Visibility: 1}
	f[pose.RightKnee] = pose.Landmark{X: 0.54, Y: kneeY, Visibility: 1}
	f[pose.LeftAnkle] = pose.Landmark{X: 0.46, Y: kneeY + 0.1, Visibility: 1}
	f[pose.RightAnkle] = pose.Landmark{X: 0.54, Y: kneeY + 0.1, Visibility: 1}

	return f
}

// feedCalm feeds count frames at the given hip_norm and fails the test if
// any of them emits an event
func feedCalm(t *testing.T, d *NearFallDetector, hipNorm float64, count int) {
	t.Helper()

	for i := 0; i < count; i++ {
		if status := d.Update(frameAtNorm(hipNorm)); status != NoEvent {
			t.Fatalf("calm frame %d emitted %v, want no_event", i, status)
		}
	}
}

// contains reports whether list holds value
func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// TestNearFallRecovery runs the canonical stumble scenario: a standing
// baseline, a sharp hip drop and a return to standing inside the recovery
// window must yield exactly one near_fall
func TestNearFallRecovery(t *testing.T) {

	d := NewNearFallDetector(DefaultNearFallParams())

	// establish the standing baseline
	feedCalm(t, d, 1.0, 45)

	if baseline, ok := d.StandingBaseline(); !ok {
		t.Fatalf("baseline not established after 45 calm frames")
	} else if baseline < 0.99 || baseline > 1.01 {
		t.Fatalf("baseline = %.4f, want ~1.0", baseline)
	}

	var (
		nearFalls int
		sawSpike  bool
		sawRecov  bool
	)

	// sharp drop followed by a return to standing
	norms := []float64{1.6, 1.6, 1.6, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0}

	for i, n := range norms {
		status := d.Update(frameAtNorm(n))

		rules := d.FiredRules()
		if contains(rules, RuleEnteringRecovery) {
			sawRecov = true
		}
		if contains(rules, RuleVelocitySpike) {
			sawSpike = true
		}

		if status == NearFall {
			nearFalls++
			if !contains(rules, RuleRecoveryDetected) {
				t.Errorf("frame %d: near_fall without %s rule, got %v",
					i, RuleRecoveryDetected, rules)
			}
		}
		if status == Sitting {
			t.Errorf("frame %d: unexpected sitting emission", i)
		}
	}

	if nearFalls != 1 {
		t.Errorf("got %d near_fall emissions, want exactly 1", nearFalls)
	}

	if !sawSpike {
		t.Errorf("%s rule never fired", RuleVelocitySpike)
	}

	if !sawRecov {
		t.Errorf("%s rule never fired", RuleEnteringRecovery)
	}

	if d.State() != StateIdle {
		t.Errorf("final state = %v, want IDLE", d.State())
	}
}

// TestNearFallSitting verifies the sit disambiguation: when the trigger
// fires on a stale velocity spike and the motion has already calmed, a low
// activity ratio resolves as sitting without entering recovery
func TestNearFallSitting(t *testing.T) {

	d := NewNearFallDetector(DefaultNearFallParams())

	feedCalm(t, d, 1.0, 45)

	// hip bobs up then settles just below baseline.  The spike velocity
	// enters the 3 sample ring while the hip is still above baseline so
	// the trigger only fires two frames later, by which time the local
	// motion is calm again.
	norms := []float64{0.95, 1.005, 1.007, 1.02, 1.022}

	var statuses []NearFallStatus
	for _, n := range norms {
		status := d.Update(frameAtNorm(n))
		statuses = append(statuses, status)

		if d.State() == StateRecovery {
			t.Fatalf("detector entered RECOVERY, sit should resolve from TRIGGERED")
		}
	}

	sittings := 0
	for _, s := range statuses {
		if s == Sitting {
			sittings++
		}
	}

	if sittings != 1 {
		t.Errorf("got %d sitting emissions, want exactly 1, statuses %v",
			sittings, statuses)
	}

	if statuses[len(statuses)-1] != Sitting {
		t.Errorf("last status = %v, want sitting", statuses[len(statuses)-1])
	}

	if !contains(d.FiredRules(), RuleActivityRatioSit) {
		t.Errorf("%s rule not fired, got %v", RuleActivityRatioSit, d.FiredRules())
	}

	if d.State() != StateIdle {
		t.Errorf("final state = %v, want IDLE", d.State())
	}
}

// TestNearFallTimeout verifies a drop too shallow to qualify times out of
// the recovery window with no event
func TestNearFallTimeout(t *testing.T) {

	d := NewNearFallDetector(DefaultNearFallParams())

	feedCalm(t, d, 1.0, 45)

	// shallow drop, never exceeds baseline + MinDropToQualify
	if status := d.Update(frameAtNorm(1.03)); status != NoEvent {
		t.Fatalf("spike frame emitted %v, want no_event", status)
	}

	if d.State() != StateTriggered {
		t.Fatalf("state after spike = %v, want TRIGGERED", d.State())
	}

	// hold the shallow drop through the whole recovery window
	for i := 0; i < 31; i++ {
		if status := d.Update(frameAtNorm(1.03)); status != NoEvent {
			t.Fatalf("recovery frame %d emitted %v, want no_event", i, status)
		}
	}

	if d.State() != StateIdle {
		t.Errorf("state after timeout = %v, want IDLE", d.State())
	}
}

// TestNearFallSanityFilter verifies a broken pose frame is downgraded to a
// detection gap and leaves the machine state alone
func TestNearFallSanityFilter(t *testing.T) {

	d := NewNearFallDetector(DefaultNearFallParams())

	feedCalm(t, d, 1.0, 45)

	// drive the machine into TRIGGERED
	d.Update(frameAtNorm(1.2))

	if d.State() != StateTriggered {
		t.Fatalf("state = %v, want TRIGGERED", d.State())
	}

	// hip nearly at shoulder height with knees far below gives an absurd
	// leg to torso ratio, the kind of frame a lost knee landmark produces
	broken := makeFrame(0.2, 0.23, 0.7)

	if status := d.Update(broken); status != NoEvent {
		t.Errorf("broken frame emitted %v, want no_event", status)
	}

	if d.State() != StateTriggered {
		t.Errorf("broken frame changed state to %v, want TRIGGERED preserved",
			d.State())
	}
}

// TestNearFallAbsentFrame verifies nil input clears the per frame outputs
// but preserves machine state
func TestNearFallAbsentFrame(t *testing.T) {

	d := NewNearFallDetector(DefaultNearFallParams())

	feedCalm(t, d, 1.0, 45)

	d.Update(frameAtNorm(1.2))

	if d.State() != StateTriggered {
		t.Fatalf("state = %v, want TRIGGERED", d.State())
	}

	if status := d.Update(nil); status != NoEvent {
		t.Errorf("nil frame emitted %v, want no_event", status)
	}

	if len(d.FiredRules()) != 0 {
		t.Errorf("fired rules not cleared on nil frame, got %v", d.FiredRules())
	}

	if d.State() != StateTriggered {
		t.Errorf("nil frame changed state to %v", d.State())
	}
}

// TestNearFallReset verifies Reset returns the machine to a cold start
func TestNearFallReset(t *testing.T) {

	d := NewNearFallDetector(DefaultNearFallParams())

	feedCalm(t, d, 1.0, 45)
	d.Update(frameAtNorm(1.2))

	d.Reset()

	if d.State() != StateIdle {
		t.Errorf("state after reset = %v, want IDLE", d.State())
	}

	if _, ok := d.StandingBaseline(); ok {
		t.Errorf("baseline survived reset")
	}

	// the old baseline must not influence a fresh run
	feedCalm(t, d, 1.5, 45)

	if baseline, ok := d.StandingBaseline(); !ok {
		t.Errorf("baseline not re-established after reset")
	} else if baseline < 1.49 || baseline > 1.51 {
		t.Errorf("baseline = %.4f, want ~1.5", baseline)
	}
}
