package clip

import "gocv.io/x/gocv"

// matRing is a fixed capacity ring buffer of frames.  The ring owns the
// Mats it holds: pushing onto a full ring closes the evicted frame.
type matRing struct {
	data []gocv.Mat
	held []bool
	pos  int
	size int
}

// newMatRing returns a ring buffer holding up to size frames
func newMatRing(size int) *matRing {
	return &matRing{
		data: make([]gocv.Mat, size),
		held: make([]bool, size),
		size: size,
	}
}

// Push adds a frame, closing the oldest when the ring is full
func (r *matRing) Push(frame gocv.Mat) {
	if r.size == 0 {
		frame.Close()
		return
	}

	if r.held[r.pos] {
		r.data[r.pos].Close()
	}

	r.data[r.pos] = frame
	r.held[r.pos] = true

	r.pos++
	if r.pos >= r.size {
		r.pos = 0
	}
}

// Len returns the number of frames currently held
func (r *matRing) Len() int {
	n := 0
	for _, h := range r.held {
		if h {
			n++
		}
	}
	return n
}

// Slice returns the held frames in insertion order.  The ring retains
// ownership, callers must not close the returned Mats.
func (r *matRing) Slice() []gocv.Mat {

	out := make([]gocv.Mat, 0, r.Len())

	for i := 0; i < r.size; i++ {
		idx := (r.pos + i) % r.size
		if r.held[idx] {
			out = append(out, r.data[idx])
		}
	}

	return out
}

// Clear closes and drops every held frame
func (r *matRing) Clear() {
	for i := range r.data {
		if r.held[i] {
			r.data[i].Close()
			r.held[i] = false
		}
	}
	r.pos = 0
}
