/*
Package pose defines the keypoint data model consumed by the fall detection
engine.  Frames are produced by an external pose estimation collaborator and
are assumed to have been quality filtered (visibility and bounds checks)
before they reach this module.
*/
package pose

// Landmark indices in COCO keypoint order
const (
	Nose = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
)

// NumLandmarks is the number of keypoints in a skeleton
const NumLandmarks = 17

// Landmark is a single body keypoint in normalised [0,1] image coordinates.
// Z is relative depth and Visibility the estimator's confidence, both passed
// through unchanged from the upstream pose model.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Frame is one frame of body landmarks in COCO keypoint order.  A nil Frame
// means no person was detected, which is a normal input state and not an
// error.
type Frame []Landmark

// Valid returns true when the frame holds a full set of landmarks
func (f Frame) Valid() bool {
	return len(f) == NumLandmarks
}

// AvgY returns the mean y coordinate of two landmarks, used to combine
// paired left/right keypoints into a single body reference point
func (f Frame) AvgY(a, b int) float64 {
	return (f[a].Y + f[b].Y) / 2.0
}

// AvgX returns the mean x coordinate of two landmarks
func (f Frame) AvgX(a, b int) float64 {
	return (f[a].X + f[b].X) / 2.0
}

// HipY returns the mid hip height
func (f Frame) HipY() float64 {
	return f.AvgY(LeftHip, RightHip)
}

// HipX returns the mid hip horizontal position
func (f Frame) HipX() float64 {
	return f.AvgX(LeftHip, RightHip)
}

// ShoulderY returns the mid shoulder height
func (f Frame) ShoulderY() float64 {
	return f.AvgY(LeftShoulder, RightShoulder)
}

// ShoulderX returns the mid shoulder horizontal position
func (f Frame) ShoulderX() float64 {
	return f.AvgX(LeftShoulder, RightShoulder)
}

// KneeY returns the mid knee height
func (f Frame) KneeY() float64 {
	return f.AvgY(LeftKnee, RightKnee)
}

// Bounds returns the bounding box of all landmarks in normalised coordinates
func (f Frame) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = f[0].X, f[0].Y
	maxX, maxY = f[0].X, f[0].Y

	for _, lm := range f[1:] {
		if lm.X < minX {
			minX = lm.X
		}
		if lm.X > maxX {
			maxX = lm.X
		}
		if lm.Y < minY {
			minY = lm.Y
		}
		if lm.Y > maxY {
			maxY = lm.Y
		}
	}

	return minX, minY, maxX, maxY
}

// MeanY returns the mean y coordinate over all landmarks
func (f Frame) MeanY() float64 {
	sum := 0.0
	for _, lm := range f {
		sum += lm.Y
	}
	return sum / float64(len(f))
}
