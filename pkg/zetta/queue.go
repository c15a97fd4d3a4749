// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package zetta

import (
	"sync"
	"time"
)

// Queue is a thread-safe FIFO of decoded packets. Push never blocks the
// producer. By default the queue is unbounded; with a capacity set, pushing
// into a full queue evicts the oldest packet (counted through the drop
// callback) so a stalled consumer cannot grow memory without bound.
type Queue struct {
	mu       sync.Mutex
	items    []*Packet
	capacity int // 0 = unbounded
	onDrop   func()

	// wake carries at most one pending signal; consumers re-check the queue
	// after every wakeup.
	wake chan struct{}
}

// NewQueue creates a packet queue. capacity <= 0 means unbounded.
func NewQueue(capacity int) *Queue {
	return newQueue(capacity, nil)
}

func newQueue(capacity int, onDrop func()) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		capacity: capacity,
		onDrop:   onDrop,
		wake:     make(chan struct{}, 1),
	}
}

// Len returns the number of queued packets.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Push appends a packet. When the queue is bounded and full, the oldest
// packet is dropped to make room.
func (q *Queue) Push(p *Packet) {
	q.mu.Lock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.items = q.items[1:]
		if q.onDrop != nil {
			q.onDrop()
		}
	}
	q.items = append(q.items, p)
	q.mu.Unlock()

	q.signal()
}

// Pop removes and returns the oldest packet. wait controls blocking:
// negative blocks until a packet arrives, zero polls without blocking, and
// a positive duration blocks up to that long. Returns nil on timeout or
// empty poll.
func (q *Queue) Pop(wait time.Duration) *Packet {
	var deadline time.Time
	if wait > 0 {
		deadline = time.Now().Add(wait)
	}

	for {
		if p := q.take(); p != nil {
			return p
		}

		switch {
		case wait == 0:
			return nil
		case wait < 0:
			<-q.wake
		default:
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil
			}
			timer := time.NewTimer(remaining)
			select {
			case <-q.wake:
				timer.Stop()
			case <-timer.C:
				return nil
			}
		}
	}
}

// Flush drains all currently queued packets without processing them,
// returning the number discarded.
func (q *Queue) Flush() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// take removes the head packet if present. When packets remain it re-arms
// the wake signal so other blocked consumers are not left waiting on a
// non-empty queue.
func (q *Queue) take() *Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	p := q.items[0]
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return p
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
