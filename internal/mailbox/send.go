package mailbox

import (
	"context"
	"fmt"
)

// Send delivers payload to mailbox id, blocking while the mailbox is full.
// For a rendezvous mailbox it blocks until a receiver is parked.
func (t *Table) Send(ctx context.Context, id int, payload []byte) error {
	return t.send(ctx, "MboxSend", id, payload, true)
}

// CondSend is Send without blocking: it returns ErrWouldBlock instead.
func (t *Table) CondSend(ctx context.Context, id int, payload []byte) error {
	return t.send(ctx, "MboxCondSend", id, payload, false)
}

func (t *Table) send(ctx context.Context, op string, id int, payload []byte, block bool) error {
	s := t.enter(op)
	defer s.leave()

	if t.slots.full() {
		return fmt.Errorf("%s: mailbox %d: %w", op, id, ErrResourceExhausted)
	}
	m, err := t.open(op, id)
	if err != nil {
		return err
	}
	if len(payload) > m.slotSize {
		return fmt.Errorf("%s: mailbox %d: message of %d bytes exceeds slot size %d: %w",
			op, id, len(payload), m.slotSize, ErrInvalidArgument)
	}
	if m.rendezvous() {
		return t.sendDirect(ctx, &s, m, op, payload, block)
	}

	if m.used() < m.capacity && m.producers.empty() {
		m.messages.put(t.slots.lease(m.id, payload))
		t.wakeConsumer(m)
		return nil
	}
	if !block {
		return fmt.Errorf("%s: mailbox %d is full: %w", op, id, ErrWouldBlock)
	}

	pid, idx := t.claim(ctx, op)
	m.producers.push(t.records, idx)
	s.park(ctx, pid)

	if m.released {
		return t.cancel(m, &m.producers, &m.producerWoken, idx, op)
	}
	t.leaveQueue(&m.producers, idx, op)
	if t.slots.full() {
		t.nextProducer(m)
		return fmt.Errorf("%s: mailbox %d: %w", op, id, ErrResourceExhausted)
	}
	m.messages.put(t.slots.lease(m.id, payload))
	t.wakeConsumer(m)
	t.nextProducer(m)
	return nil
}

// nextProducer ends a producer's turn. The token goes straight to the next
// producer while there is still room, so only one producer is ever awake.
func (t *Table) nextProducer(m *mailbox) {
	if m.used() < m.capacity && !m.producers.empty() {
		t.wakeFront(&m.producers)
		return
	}
	m.producerWoken = false
}

// sendDirect is the rendezvous send. The payload goes straight to a parked
// receiver, or waits in the caller's record until a receiver takes it. A
// receiver whose buffer is too small never gets a parcel.
func (t *Table) sendDirect(ctx context.Context, s *section, m *mailbox, op string, payload []byte, block bool) error {
	if m.producers.empty() && m.used() == 0 && !m.consumers.empty() && !m.consumerWoken {
		if t.offer(m, payload) {
			return nil
		}
	}
	if !block {
		return fmt.Errorf("%s: mailbox %d has no waiting receiver: %w", op, m.id, ErrWouldBlock)
	}

	pid, idx := t.claim(ctx, op)
	r := t.records.get(idx)
	r.payload = append(r.payload[:0], payload...)
	m.producers.push(t.records, idx)
	t.handoff(m)
	s.park(ctx, pid)

	if r.delivered {
		r.delivered = false
		if m.released {
			t.passOn(&m.producers, &m.producerWoken)
			t.reclaim(m)
		} else {
			m.producerWoken = false
			t.handoff(m)
		}
		return nil
	}
	if m.released {
		return t.cancel(m, &m.producers, &m.producerWoken, idx, op)
	}
	t.cpu.Halt(1, fmt.Errorf("%s: mailbox %d: producer %d resumed without a receiver", op, m.id, pid))
	return nil
}
