// Package ring provides a fixed-capacity FIFO that overwrites its oldest entry
// once full. It is single-owner: no locking.
package ring

import "golang.org/x/exp/constraints"

// Ring holds up to Cap() most recent values in insertion order.
type Ring[T any] struct {
	buf []T
	wr  uint64 // producer index (monotonic)
}

// New returns an empty ring. Capacity below 1 is coerced to 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Cap() int { return len(r.buf) }

func (r *Ring[T]) Len() int {
	if r.wr < uint64(len(r.buf)) {
		return int(r.wr)
	}
	return len(r.buf)
}

// Push appends v, evicting the oldest value when full.
func (r *Ring[T]) Push(v T) {
	r.buf[r.wr%uint64(len(r.buf))] = v
	r.wr++
}

// At returns the i-th value, oldest first. It panics when i is out of range.
func (r *Ring[T]) At(i int) T {
	n := r.Len()
	if i < 0 || i >= n {
		panic("ring: index out of range")
	}
	rd := r.wr - uint64(n)
	return r.buf[(rd+uint64(i))%uint64(len(r.buf))]
}

// Values copies the contents out, oldest first.
func (r *Ring[T]) Values() []T {
	n := r.Len()
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = r.At(i)
	}
	return out
}

// MinMax returns the extremes of an ordered ring. ok is false when empty.
func MinMax[T constraints.Ordered](r *Ring[T]) (lo, hi T, ok bool) {
	n := r.Len()
	if n == 0 {
		return lo, hi, false
	}
	lo, hi = r.At(0), r.At(0)
	for i := 1; i < n; i++ {
		v := r.At(i)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, true
}
