package series

// WMARing is a ring of the most recent raw telemetry values used to compute a
// linearly-weighted moving average: the i-th value (1-indexed, oldest first)
// is weighted i, so the newest sample dominates.
type WMARing struct {
	buf [3]float64
	n   int
}

// Push appends a value, evicting the oldest when the ring is full.
func (r *WMARing) Push(v float64) {
	if r.n == len(r.buf) {
		copy(r.buf[:], r.buf[1:])
		r.buf[len(r.buf)-1] = v
		return
	}
	r.buf[r.n] = v
	r.n++
}

// Reset clears the ring. Used after a telemetry gap so stale pre-outage values
// are not blended into the average.
func (r *WMARing) Reset() {
	r.n = 0
}

// Len returns the number of stored values.
func (r *WMARing) Len() int {
	return r.n
}

// Average returns the weighted moving average, or 0 for an empty ring.
func (r *WMARing) Average() float64 {
	if r.n == 0 {
		return 0.0
	}
	var sum float64
	for i := 0; i < r.n; i++ {
		sum += float64(i+1) * r.buf[i]
	}
	denom := float64((r.n*r.n + r.n) / 2)
	return sum / denom
}
