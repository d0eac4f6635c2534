// Package feed provides the in-process queue between the stream client's
// message handlers and the quote writer. The buffer grows instead of
// blocking so a slow database never stalls the websocket read loop.
package feed

import "sync"

// Buffer is a thread-safe ring buffer that doubles its capacity once it
// fills to 70%, so producers never block on a slow consumer.
type Buffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	tail   int
	count  int
	cap    int
	closed bool

	enqueued int64
	dequeued int64
	grows    int
}

// Stats is a snapshot of buffer counters.
type Stats struct {
	Depth    int
	Capacity int
	Enqueued int64
	Dequeued int64
	Grows    int
}

// NewBuffer creates a buffer with the given initial capacity.
func NewBuffer[T any](initial int) *Buffer[T] {
	if initial < 1 {
		initial = 1
	}
	b := &Buffer[T]{
		items: make([]T, initial),
		cap:   initial,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send enqueues an item, growing the buffer if it would pass 70% full.
// Returns false once the buffer is closed.
func (b *Buffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := (b.cap * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold {
		b.grow()
	}

	b.items[b.tail] = item
	b.tail = (b.tail + 1) % b.cap
	b.count++
	b.enqueued++

	b.cond.Signal()
	return true
}

// Receive dequeues an item, blocking until one is available or the buffer
// is closed. After close, remaining items are still delivered; once drained
// it returns the zero value and false.
func (b *Buffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.takeLocked(), true
}

// TryReceive dequeues an item without blocking.
func (b *Buffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.takeLocked(), true
}

// DrainTo dequeues up to max items at once (all items when max <= 0).
// Returns nil when the buffer is empty.
func (b *Buffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	for i := range out {
		out[i] = b.takeLocked()
	}
	return out
}

// Close stops accepting new items and wakes blocked receivers.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current capacity.
func (b *Buffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cap
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Depth:    b.count,
		Capacity: b.cap,
		Enqueued: b.enqueued,
		Dequeued: b.dequeued,
		Grows:    b.grows,
	}
}

// takeLocked removes and returns the head item. Caller holds b.mu.
func (b *Buffer[T]) takeLocked() T {
	item := b.items[b.head]
	var zero T
	b.items[b.head] = zero // release for GC
	b.head = (b.head + 1) % b.cap
	b.count--
	b.dequeued++
	return item
}

// grow doubles capacity, unwrapping the ring. Caller holds b.mu.
func (b *Buffer[T]) grow() {
	next := make([]T, b.cap*2)
	if b.count > 0 {
		if b.head < b.tail {
			copy(next, b.items[b.head:b.tail])
		} else {
			n := copy(next, b.items[b.head:])
			copy(next[n:], b.items[:b.tail])
		}
	}
	b.items = next
	b.head = 0
	b.tail = b.count
	b.cap = len(next)
	b.grows++
}
