package queue

// An array-based ring-buffer queue, used for queuing both pending requests
// and available workers. Unlike a fixed-size ring it grows on demand:
// Majordomo 0.1 has no backpressure, a queued request simply waits until a
// worker shows up.

type Queue[T any] struct {
	// tracking the length separately in l, because calculating it from (front, back)
	// is difficult in some cases (especially rollover)
	front, back, l int
	queue          []T
}

func NewQueue[T any](capacity int) Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return Queue[T]{front: 0, back: 0, l: 0, queue: make([]T, capacity)}
}

func (q *Queue[T]) Len() int {
	return q.l
}

// Append to the back, growing the ring if it is full.
func (q *Queue[T]) Push(e T) {
	if q.l == len(q.queue) {
		q.grow()
	}
	q.queue[q.back] = e
	q.back = (q.back + 1) % len(q.queue)
	q.l++
}

// Get from the front. Returns false if the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.l == 0 {
		return zero, false
	}
	e := q.queue[q.front]
	q.queue[q.front] = zero
	q.front = (q.front + 1) % len(q.queue)
	q.l--
	return e, true
}

// Returns the front element without removing it; false if empty.
func (q *Queue[T]) Peek() (T, bool) {
	var zero T
	if q.l == 0 {
		return zero, false
	}
	return q.queue[q.front], true
}

// Remove drops every element for which match returns true, preserving the
// order of the remaining ones. Returns the number of removed elements.
func (q *Queue[T]) Remove(match func(T) bool) int {
	kept := make([]T, len(q.queue))
	n := 0
	for i := 0; i < q.l; i++ {
		e := q.queue[(q.front+i)%len(q.queue)]
		if !match(e) {
			kept[n] = e
			n++
		}
	}
	removed := q.l - n
	q.queue = kept
	q.front = 0
	q.back = n % len(q.queue)
	q.l = n
	return removed
}

func (q *Queue[T]) grow() {
	bigger := make([]T, 2*len(q.queue))
	for i := 0; i < q.l; i++ {
		bigger[i] = q.queue[(q.front+i)%len(q.queue)]
	}
	q.queue = bigger
	q.front = 0
	q.back = q.l
}
