package mailbox

import (
	"github.com/Workiva/go-datastructures/queue"
)

// messageQueue holds a mailbox's buffered messages, oldest first. The oldest
// message is staged outside the ring so it can be inspected before it is
// taken.
type messageQueue struct {
	ring *queue.RingBuffer
	head *slot
}

func newMessageQueue(capacity int) messageQueue {
	// ring capacity beyond the staged head; rendezvous parcels need one.
	return messageQueue{ring: queue.NewRingBuffer(uint64(max(capacity, 1)))}
}

func (q *messageQueue) len() int {
	if q.head == nil {
		return 0
	}
	return int(q.ring.Len()) + 1
}

func (q *messageQueue) put(s *slot) {
	if q.head == nil {
		q.head = s
		return
	}
	_ = q.ring.Put(s)
}

func (q *messageQueue) peek() *slot {
	return q.head
}

func (q *messageQueue) take() *slot {
	s := q.head
	q.head = nil
	if q.ring.Len() > 0 {
		if v, err := q.ring.Get(); err == nil {
			q.head = v.(*slot)
		}
	}
	return s
}

// drain removes every message, calling fn for each, and disposes the ring.
func (q *messageQueue) drain(fn func(*slot)) {
	for s := q.take(); s != nil; s = q.take() {
		fn(s)
	}
	q.ring.Dispose()
}
