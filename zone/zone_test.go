package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelcare/go-fallsense/pose"
)

// boxFrame builds a frame whose landmarks span the given bounding box
func boxFrame(minX, minY, maxX, maxY float64) pose.Frame {

	f := make(pose.Frame, pose.NumLandmarks)

	for i := range f {
		f[i] = pose.Landmark{X: minX, Y: minY, Visibility: 1}
	}

	// stretch two landmarks to the far corner so Bounds covers the box
	f[pose.LeftAnkle] = pose.Landmark{X: maxX, Y: maxY, Visibility: 1}
	f[pose.RightAnkle] = pose.Landmark{X: maxX, Y: maxY, Visibility: 1}

	return f
}

// leftHalf is a zone covering the left half of the view
func leftHalf(t *testing.T, minCoverage float64) *Zone {
	t.Helper()

	z, err := New([][2]float64{
		{0, 0}, {0.5, 0}, {0.5, 1}, {0, 1},
	}, minCoverage)
	require.NoError(t, err)

	return z
}

func TestNewValidation(t *testing.T) {

	_, err := New([][2]float64{{0, 0}, {1, 1}}, 0.5)
	assert.Error(t, err, "two points is not a polygon")

	_, err = New([][2]float64{{0, 0}, {1, 0}, {1, 1}}, 1.5)
	assert.Error(t, err, "coverage above 1 rejected")
}

func TestCoverage(t *testing.T) {

	z := leftHalf(t, 0.5)

	// fully inside the left half
	assert.InDelta(t, 1.0, z.Coverage(boxFrame(0.1, 0.1, 0.4, 0.9)), 0.01)

	// fully in the right half
	assert.InDelta(t, 0.0, z.Coverage(boxFrame(0.6, 0.1, 0.9, 0.9)), 0.01)

	// straddling the boundary evenly
	assert.InDelta(t, 0.5, z.Coverage(boxFrame(0.3, 0.1, 0.7, 0.9)), 0.02)
}

func TestContains(t *testing.T) {

	z := leftHalf(t, 0.6)

	assert.True(t, z.Contains(boxFrame(0.1, 0.1, 0.4, 0.9)))
	assert.False(t, z.Contains(boxFrame(0.3, 0.1, 0.7, 0.9)),
		"half coverage below the 0.6 requirement")
	assert.False(t, z.Contains(nil), "nil frame never contained")
}
