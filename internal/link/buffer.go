package link

import "log"

// ringBuffer is a fixed-capacity FIFO of events waiting for Pump.
// Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	buf      []Event
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any event was dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{
		buf:      make([]Event, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(ev Event) {
	if r.count == r.capacity {
		if !r.overflow {
			log.Printf("link: event queue full (%d events), dropping oldest", r.capacity)
			r.overflow = true
		}
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = ev
		r.head = (r.head + 1) % r.capacity
		return
	}
	r.buf[r.head] = ev
	r.head = (r.head + 1) % r.capacity
	r.count++
}

func (r *ringBuffer) drainAll() []Event {
	if r.count == 0 {
		return nil
	}

	result := make([]Event, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
		r.buf[(start+i)%r.capacity] = Event{}
	}

	r.count = 0
	r.head = 0
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
