package common

// https://logdy.dev/blog/post/ring-buffer-in-golang
// https://www.sergetoro.com/golang-round-robin-queue-from-scratch/

// RingBuffer is a fixed-capacity FIFO. Once full, Add overwrites the oldest element.
// It is not safe for concurrent use; callers serialize access.
type RingBuffer[T any] struct {
	buffer []T
	size   int
	write  int
	count  int
}

// NewRingBuffer creates a new ring buffer with a fixed size.
// It panics if size < 1.
func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size < 1 {
		panic("ring buffer size must be positive")
	}
	return &RingBuffer[T]{
		buffer: make([]T, size),
		size:   size,
	}
}

// index maps the i-th oldest element to its slot.
func (rb *RingBuffer[T]) index(i int) int {
	return (rb.write + rb.size - rb.count + i) % rb.size
}

// Add inserts a new element into the buffer, overwriting the oldest if full.
func (rb *RingBuffer[T]) Add(value T) {
	rb.buffer[rb.write] = value
	rb.write = (rb.write + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}
}

// Get returns the contents of the buffer in FIFO order.
func (rb *RingBuffer[T]) Get() []T {
	return rb.Tail(rb.count)
}

// Tail returns the last (last in) n elements in the buffer, oldest first.
func (rb *RingBuffer[T]) Tail(n int) []T {
	n = min(max(n, 0), rb.count)
	result := make([]T, 0, n)
	for i := rb.count - n; i < rb.count; i++ {
		result = append(result, rb.buffer[rb.index(i)])
	}
	return result
}

// Len returns the current number of elements in the buffer.
func (rb *RingBuffer[T]) Len() int {
	return rb.count
}

// Cap returns the fixed capacity of the buffer.
func (rb *RingBuffer[T]) Cap() int {
	return rb.size
}

// Last returns the most recently added element.
func (rb *RingBuffer[T]) Last() (T, bool) {
	var zero T
	if rb.count == 0 {
		return zero, false
	}
	return rb.buffer[(rb.write+rb.size-1)%rb.size], true
}

// Scan calls fn on each element, oldest first, until fn returns false.
func (rb *RingBuffer[T]) Scan(fn func(T) bool) {
	for i := 0; i < rb.count; i++ {
		if !fn(rb.buffer[rb.index(i)]) {
			break
		}
	}
}

// Clear empties the buffer. Capacity is unchanged.
func (rb *RingBuffer[T]) Clear() {
	var zero T
	for i := range rb.buffer {
		rb.buffer[i] = zero
	}
	rb.write = 0
	rb.count = 0
}
