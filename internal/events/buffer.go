package events

import "sync"

// RingBuffer is a fixed-capacity, thread-safe ring buffer of send Events.
// When the buffer is full, the oldest event is evicted to make room for new entries.
// All methods are safe for concurrent use.
type RingBuffer struct {
	mu    sync.RWMutex
	items []Event
	cap   int
	head  int // index of the oldest element
	count int // number of elements currently stored
}

// NewRingBuffer creates a new RingBuffer with the given capacity.
// Capacity must be at least 1. A buffer with capacity=1 holds exactly 1 event.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		items: make([]Event, capacity),
		cap:   capacity,
	}
}

// Add inserts an event into the buffer. If the buffer is full, the oldest
// event is overwritten.
func (rb *RingBuffer) Add(e Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	writePos := (rb.head + rb.count) % rb.cap
	if rb.count == rb.cap {
		// Buffer is full; overwrite oldest and advance head.
		rb.items[rb.head] = e
		rb.head = (rb.head + 1) % rb.cap
	} else {
		rb.items[writePos] = e
		rb.count++
	}
}

// ListAll returns all events in chronological order (oldest first).
func (rb *RingBuffer) ListAll() []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.tailLocked(rb.count)
}

// Tail returns the newest n events in chronological order. If n exceeds the
// number of stored events the whole buffer is returned; n <= 0 returns nil.
func (rb *RingBuffer) Tail(n int) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.tailLocked(n)
}

// TailErrors returns the newest n failure events carrying the given code, in
// chronological order. An empty code matches every failure.
func (rb *RingBuffer) TailErrors(code string, n int) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	var reversed []Event
	for i := rb.count - 1; i >= 0 && len(reversed) < n; i-- {
		e := rb.items[(rb.head+i)%rb.cap]
		if e.IsError(code) {
			reversed = append(reversed, e)
		}
	}
	if len(reversed) == 0 {
		return nil
	}
	result := make([]Event, len(reversed))
	for i, e := range reversed {
		result[len(reversed)-1-i] = detach(e)
	}
	return result
}

// TailLatency returns the sum of response times over the newest n events and
// how many events contributed. It does not allocate.
func (rb *RingBuffer) TailLatency(n int) (sum int64, count int) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n > rb.count {
		n = rb.count
	}
	for i := rb.count - n; i < rb.count; i++ {
		sum += int64(rb.items[(rb.head+i)%rb.cap].ResponseTimeMs)
	}
	return sum, n
}

// Truncate drops all but the newest keep events, preserving their order.
func (rb *RingBuffer) Truncate(keep int) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	if keep >= rb.count {
		return
	}
	drop := rb.count - keep
	for i := 0; i < drop; i++ {
		rb.items[(rb.head+i)%rb.cap] = Event{}
	}
	rb.head = (rb.head + drop) % rb.cap
	rb.count = keep
}

// Clear removes every event.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	clear(rb.items)
	rb.head = 0
	rb.count = 0
}

// Len returns the number of events currently in the buffer.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return rb.cap
}

// tailLocked returns the newest n events in chronological order.
// Caller must hold at least a read lock.
func (rb *RingBuffer) tailLocked(n int) []Event {
	if n > rb.count {
		n = rb.count
	}
	if n <= 0 {
		return nil
	}
	result := make([]Event, n)
	start := rb.count - n
	for i := 0; i < n; i++ {
		result[i] = detach(rb.items[(rb.head+start+i)%rb.cap])
	}
	return result
}

// detach copies e's SendError so callers cannot mutate the stored event.
func detach(e Event) Event {
	if e.Error != nil {
		errCopy := *e.Error
		e.Error = &errCopy
	}
	return e
}
