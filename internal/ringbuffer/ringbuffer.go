// Package ringbuffer provides the fixed-capacity circular buffer backing every temporal window.
package ringbuffer

import "fmt"

// Buffer is a fixed-capacity circular buffer. Once full, the oldest element is overwritten.
type Buffer[T any] struct {
	data  []T
	write int
	count int
}

// New creates a buffer holding at most capacity elements.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("ringbuffer: capacity must be positive, got %d", capacity))
	}

	return &Buffer[T]{data: make([]T, capacity)}
}

// Push appends a value, overwriting the oldest one when the buffer is full.
func (b *Buffer[T]) Push(value T) {
	b.data[b.write] = value
	b.write = (b.write + 1) % len(b.data)

	if b.count < len(b.data) {
		b.count++
	}
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int {
	return b.count
}

// Cap returns the capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.data)
}

// Full reports whether the next push overwrites the oldest element.
func (b *Buffer[T]) Full() bool {
	return b.count == len(b.data)
}

// At returns the i-th element in chronological order (0 is the oldest).
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.count {
		panic(fmt.Sprintf("ringbuffer: index %d out of range [0, %d)", i, b.count))
	}

	size := len(b.data)

	return b.data[((b.write-b.count+i)%size+size)%size]
}

// Values returns a chronological copy of the stored elements.
func (b *Buffer[T]) Values() []T {
	return b.Last(b.count)
}

// Last returns a chronological copy of the n most recent elements (fewer if not available).
func (b *Buffer[T]) Last(n int) []T {
	n = min(max(n, 0), b.count)
	out := make([]T, n)

	for i := range n {
		out[i] = b.At(b.count - n + i)
	}

	return out
}

// Reset empties the buffer without releasing its storage.
func (b *Buffer[T]) Reset() {
	clear(b.data)
	b.write = 0
	b.count = 0
}

// Resize changes the capacity, keeping the most recent elements that still fit.
func (b *Buffer[T]) Resize(capacity int) {
	if capacity == len(b.data) {
		return
	}

	kept := b.Last(capacity)

	*b = *New[T](capacity)
	for _, value := range kept {
		b.Push(value)
	}
}
