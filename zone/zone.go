/*
Package zone restricts detection to a monitored region of the camera view.
A Zone is a polygon in normalised image coordinates; frames whose keypoint
bounding box falls mostly outside it are treated as no detection, keeping
passers-by at the edge of the view from feeding the decision engine.
*/
package zone

import (
	"fmt"

	clipper "github.com/ctessum/go.clipper"

	"github.com/sentinelcare/go-fallsense/pose"
)

// clipScale converts normalised [0,1] coordinates to the integer grid the
// clipper library works on
const clipScale = 10000

// Zone is a monitored region polygon
type Zone struct {
	// poly is the region in clipper integer coordinates
	poly clipper.Path
	// MinCoverage is the fraction of the person's bounding box that must
	// overlap the region for the frame to count
	MinCoverage float64
}

// New returns a Zone from at least three polygon points in normalised
// [0,1] coordinates
func New(points [][2]float64, minCoverage float64) (*Zone, error) {

	if len(points) < 3 {
		return nil, fmt.Errorf("zone needs at least 3 points, got %d", len(points))
	}

	if minCoverage < 0 || minCoverage > 1 {
		return nil, fmt.Errorf("min coverage %f outside [0,1]", minCoverage)
	}

	var path clipper.Path

	for _, pt := range points {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(pt[0] * clipScale),
			Y: clipper.CInt(pt[1] * clipScale),
		})
	}

	return &Zone{poly: path, MinCoverage: minCoverage}, nil
}

// Coverage returns the fraction of the frame's keypoint bounding box that
// lies inside the zone
func (z *Zone) Coverage(frame pose.Frame) float64 {

	minX, minY, maxX, maxY := frame.Bounds()

	box := clipper.Path{
		&clipper.IntPoint{X: clipper.CInt(minX * clipScale), Y: clipper.CInt(minY * clipScale)},
		&clipper.IntPoint{X: clipper.CInt(maxX * clipScale), Y: clipper.CInt(minY * clipScale)},
		&clipper.IntPoint{X: clipper.CInt(maxX * clipScale), Y: clipper.CInt(maxY * clipScale)},
		&clipper.IntPoint{X: clipper.CInt(minX * clipScale), Y: clipper.CInt(maxY * clipScale)},
	}

	boxArea := abs(clipper.Area(box))

	if boxArea == 0 {
		return 0
	}

	c := clipper.NewClipper(0)
	c.AddPath(box, clipper.PtSubject, true)
	c.AddPath(z.poly, clipper.PtClip, true)

	solution, ok := c.Execute1(clipper.CtIntersection,
		clipper.PftEvenOdd, clipper.PftEvenOdd)

	if !ok {
		return 0
	}

	inside := 0.0
	for _, path := range solution {
		inside += abs(clipper.Area(path))
	}

	return inside / boxArea
}

// Contains reports whether the frame's subject is sufficiently inside the
// zone.  A nil frame is never contained.
func (z *Zone) Contains(frame pose.Frame) bool {

	if !frame.Valid() {
		return false
	}

	return z.Coverage(frame) >= z.MinCoverage
}

// abs returns the absolute value of v
func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
