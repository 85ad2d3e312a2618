package fallsense

// floatRing is a fixed capacity ring buffer of float64 values.  Pushing to a
// full ring evicts the oldest value, keeping every push O(1) regardless of
// capacity.
type floatRing struct {
	data []float64
	pos  int
	full bool
	size int
}

// newFloatRing returns a ring buffer holding up to size values
func newFloatRing(size int) *floatRing {
	return &floatRing{
		data: make([]float64, size),
		size: size,
	}
}

// Push adds a value, evicting the oldest when the ring is full
func (r *floatRing) Push(v float64) {
	r.data[r.pos] = v
	r.pos++
	if r.pos >= r.size {
		r.pos = 0
		r.full = true
	}
}

// Len returns the number of values currently held
func (r *floatRing) Len() int {
	if r.full {
		return r.size
	}
	return r.pos
}

// Full returns true once the ring has reached capacity
func (r *floatRing) Full() bool {
	return r.full
}

// Slice returns the held values in insertion order
func (r *floatRing) Slice() []float64 {
	n := r.Len()
	out := make([]float64, n)

	if r.full {
		copy(out, r.data[r.pos:])
		copy(out[r.size-r.pos:], r.data[:r.pos])
	} else {
		copy(out, r.data[:r.pos])
	}

	return out
}

// Max returns the largest held value, or 0 for an empty ring
func (r *floatRing) Max() float64 {
	n := r.Len()
	if n == 0 {
		return 0
	}

	vals := r.Slice()
	max := vals[0]

	for _, v := range vals[1:] {
		if v > max {
			max = v
		}
	}

	return max
}

// Clear empties the ring
func (r *floatRing) Clear() {
	r.pos = 0
	r.full = false
}

// tupleRing is a fixed capacity ring buffer of feature tuples used as the
// classifier's sliding window
type tupleRing struct {
	data []FeatureTuple
	pos  int
	full bool
	size int
}

// newTupleRing returns a ring buffer holding up to size feature tuples
func newTupleRing(size int) *tupleRing {
	return &tupleRing{
		data: make([]FeatureTuple, size),
		size: size,
	}
}

// Push adds a tuple, evicting the oldest when the ring is full
func (r *tupleRing) Push(t FeatureTuple) {
	r.data[r.pos] = t
	r.pos++
	if r.pos >= r.size {
		r.pos = 0
		r.full = true
	}
}

// Len returns the number of tuples currently held
func (r *tupleRing) Len() int {
	if r.full {
		return r.size
	}
	return r.pos
}

// Full returns true once the window has reached capacity
func (r *tupleRing) Full() bool {
	return r.full
}

// Slice returns the held tuples in insertion order
func (r *tupleRing) Slice() []FeatureTuple {
	n := r.Len()
	out := make([]FeatureTuple, n)

	if r.full {
		copy(out, r.data[r.pos:])
		copy(out[r.size-r.pos:], r.data[:r.pos])
	} else {
		copy(out, r.data[:r.pos])
	}

	return out
}

// Clear empties the ring
func (r *tupleRing) Clear() {
	r.pos = 0
	r.full = false
}
