package telemetry

// Ring keeps the last n values added to it. It is not safe for concurrent
// use; QueryMetrics guards it with its own mutex.
type Ring[T any] struct {
	buf  []T
	next int
	full bool
}

// NewRing returns a ring holding at most n values. n <= 0 means 100.
func NewRing[T any](n int) *Ring[T] {
	if n <= 0 {
		n = 100
	}
	return &Ring[T]{buf: make([]T, n)}
}

// Add stores v, overwriting the oldest value once the ring is full.
func (r *Ring[T]) Add(v T) {
	r.buf[r.next] = v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// Len is the number of values held.
func (r *Ring[T]) Len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Items returns a copy of the held values, oldest first.
func (r *Ring[T]) Items() []T {
	if !r.full {
		return append(make([]T, 0, r.next), r.buf[:r.next]...)
	}
	out := make([]T, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}
