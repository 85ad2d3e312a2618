/*
Package render draws the detection results onto video frames: the pose
skeleton, per frame status banner and the fired near fall rules.  It is
used by the annotate command and is handy when tuning thresholds against
recorded footage.
*/
package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/sentinelcare/go-fallsense/pose"
)

var (
	// skeleton defines the pose skeleton points to draw lines between.
	// The numbers are paired, so (16,14) means draw line from right ankle
	// to right knee.
	skeleton = [38]int{16, 14, 14, 12, 17, 15, 15, 13, 12, 13, 6, 12, 7, 13, 6, 7, 6, 8,
		7, 9, 8, 10, 9, 11, 2, 3, 1, 2, 1, 3, 2, 4, 3, 5, 4, 6, 5, 7}

	limbColor  = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	jointColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Skeleton renders the keypoint frame as a stick figure over the image.
// Landmark coordinates are normalised so they are scaled to the image
// dimensions before drawing.  A nil frame draws nothing.
func Skeleton(img *gocv.Mat, frame pose.Frame, lineThickness int) {

	if !frame.Valid() {
		return
	}

	w := float64(img.Cols())
	h := float64(img.Rows())

	// draw skeleton lines
	for j := 0; j < len(skeleton)/2; j++ {
		a := frame[skeleton[2*j]-1]
		b := frame[skeleton[2*j+1]-1]

		gocv.Line(img,
			image.Pt(int(a.X*w), int(a.Y*h)),
			image.Pt(int(b.X*w), int(b.Y*h)),
			limbColor, lineThickness)
	}

	// draw circles at skeleton joints
	for j := 0; j < pose.NumLandmarks; j++ {
		gocv.Circle(img,
			image.Pt(int(frame[j].X*w), int(frame[j].Y*h)),
			3, jointColor, -1)
	}
}
