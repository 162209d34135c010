// Package smoothing filters a noisy stream of per-frame predictions into
// stable labels using a fixed-length majority window.
package smoothing

// Ring is a fixed-capacity buffer that overwrites its oldest entry when full.
type Ring[T any] struct {
	items []T
	start int
	size  int
}

// NewRing allocates a ring holding at most capacity entries. Capacity below 1 is treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest entry when the ring is full.
func (r *Ring[T]) Push(v T) {
	if r.size < len(r.items) {
		r.items[(r.start+r.size)%len(r.items)] = v
		r.size++
		return
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % len(r.items)
}

// Len reports the number of stored entries.
func (r *Ring[T]) Len() int { return r.size }

// Cap reports the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.items) }

// Full reports whether the ring holds Cap entries.
func (r *Ring[T]) Full() bool { return r.size == len(r.items) }

// Reset discards every entry.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.start, r.size = 0, 0
}

// At returns the i-th entry counting from the oldest. It panics when i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("smoothing: ring index out of range")
	}
	return r.items[(r.start+i)%len(r.items)]
}

// All yields entries oldest first until yield returns false.
func (r *Ring[T]) All(yield func(T) bool) {
	for i := range r.size {
		if !yield(r.items[(r.start+i)%len(r.items)]) {
			return
		}
	}
}
