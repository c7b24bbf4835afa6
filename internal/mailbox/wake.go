package mailbox

import (
	"context"
	"fmt"

	"github.com/hedisam/gombox/process"
)

// claim reserves the caller's waiting record. Blocking outside a process
// and a second outstanding wait are contract violations.
func (t *Table) claim(ctx context.Context, op string) (process.PID, int) {
	pid, ok := t.sched.Current(ctx)
	if !ok {
		t.cpu.Halt(1, fmt.Errorf("%s: blocking call without a calling process", op))
	}
	idx, ok := t.records.claim(pid)
	if !ok {
		t.cpu.Halt(1, fmt.Errorf("%s: process %d already has an outstanding wait", op, pid))
	}
	return pid, idx
}

// leaveQueue removes the caller's record, which must be at the head.
func (t *Table) leaveQueue(q *waitQueue, idx int, op string) {
	if !q.pop(t.records, idx) {
		t.cpu.Halt(1, fmt.Errorf("%s: wait queue corrupted, record %d is not at the head", op, idx))
	}
}

func (t *Table) wakeFront(q *waitQueue) {
	t.sched.Unblock(t.records.get(q.front()).pid)
}

// wakeConsumer hands the consumer token to the head consumer if it is free.
func (t *Table) wakeConsumer(m *mailbox) {
	if m.consumers.empty() || m.consumerWoken {
		return
	}
	m.consumerWoken = true
	t.wakeFront(&m.consumers)
}

// wakeProducer hands the producer token to the head producer if it is free.
func (t *Table) wakeProducer(m *mailbox) {
	if m.producers.empty() || m.producerWoken {
		return
	}
	m.producerWoken = true
	t.wakeFront(&m.producers)
}

// passOn ends the current token holder's turn: the token moves to the next
// queued waiter if there is one, otherwise it is returned.
func (t *Table) passOn(q *waitQueue, woken *bool) {
	if q.empty() {
		*woken = false
		return
	}
	t.wakeFront(q)
}

// cancel unwinds a waiter that woke up inside a released mailbox.
func (t *Table) cancel(m *mailbox, q *waitQueue, woken *bool, idx int, op string) error {
	t.leaveQueue(q, idx, op)
	t.passOn(q, woken)
	t.reclaim(m)
	t.log.Debug("wait cancelled", "op", op, "id", m.id)
	return fmt.Errorf("%s: mailbox %d: %w", op, m.id, ErrCancelled)
}

// handoff matches parked rendezvous producers and consumers once both
// tokens are free: the head producer's payload becomes a parcel for the
// head consumer and both are woken. A head consumer whose buffer is too
// small is woken to fail instead, and the producer stays parked.
func (t *Table) handoff(m *mailbox) {
	if !m.rendezvous() || m.released || m.consumerWoken || m.consumers.empty() {
		return
	}
	if m.used() > 0 || m.producerWoken || m.producers.empty() {
		return
	}
	idx := m.producers.front()
	r := t.records.get(idx)
	if !t.offer(m, r.payload) {
		return
	}
	m.producers.pop(t.records, idx)
	r.delivered = true
	m.producerWoken = true
	t.sched.Unblock(r.pid)
}

// offer hands payload to the head consumer as a parcel if it fits that
// consumer's buffer. Otherwise the consumer is woken with nothing to take.
// Either way the consumer token is taken.
func (t *Table) offer(m *mailbox, payload []byte) bool {
	c := t.records.get(m.consumers.front())
	if len(payload) > c.room {
		c.refused = len(payload)
		t.wakeConsumer(m)
		return false
	}
	m.messages.put(newParcel(m.id, payload))
	t.wakeConsumer(m)
	return true
}
