package mailbox

import (
	"context"
	"fmt"
)

// Recv copies the oldest message of mailbox id into buf and returns its
// length, blocking while the mailbox is empty. A message longer than buf is
// left in place and ErrInvalidArgument is returned.
func (t *Table) Recv(ctx context.Context, id int, buf []byte) (int, error) {
	return t.recv(ctx, "MboxRecv", id, buf, true)
}

// CondRecv is Recv without blocking: it returns ErrWouldBlock instead.
func (t *Table) CondRecv(ctx context.Context, id int, buf []byte) (int, error) {
	return t.recv(ctx, "MboxCondRecv", id, buf, false)
}

func (t *Table) recv(ctx context.Context, op string, id int, buf []byte, block bool) (int, error) {
	s := t.enter(op)
	defer s.leave()

	m, err := t.open(op, id)
	if err != nil {
		return 0, err
	}
	if m.rendezvous() {
		return t.recvDirect(ctx, &s, m, op, buf, block)
	}

	if m.used() > 0 && m.consumers.empty() {
		n, err := t.take(m, op, buf)
		if err != nil {
			return 0, err
		}
		t.wakeProducer(m)
		return n, nil
	}
	if !block {
		return 0, fmt.Errorf("%s: mailbox %d is empty: %w", op, id, ErrWouldBlock)
	}

	pid, idx := t.claim(ctx, op)
	m.consumers.push(t.records, idx)
	s.park(ctx, pid)

	if m.released {
		return 0, t.cancel(m, &m.consumers, &m.consumerWoken, idx, op)
	}
	t.leaveQueue(&m.consumers, idx, op)
	n, err := t.take(m, op, buf)
	if err == nil {
		t.wakeProducer(m)
	}
	t.nextConsumer(m)
	return n, err
}

// take copies out and frees the oldest message, after checking it fits.
func (t *Table) take(m *mailbox, op string, buf []byte) (int, error) {
	head := m.messages.peek()
	if head == nil {
		t.cpu.Halt(1, fmt.Errorf("%s: mailbox %d: consumer resumed with no message", op, m.id))
	}
	if head.n > len(buf) {
		return 0, fmt.Errorf("%s: mailbox %d: message of %d bytes does not fit %d byte buffer: %w",
			op, m.id, head.n, len(buf), ErrInvalidArgument)
	}
	m.messages.take()
	n := copy(buf, head.payload())
	t.slots.free(head)
	return n, nil
}

// nextConsumer ends a consumer's turn, passing the token on while messages
// remain for the next queued consumer.
func (t *Table) nextConsumer(m *mailbox) {
	if m.used() > 0 && !m.consumers.empty() {
		t.wakeFront(&m.consumers)
		return
	}
	m.consumerWoken = false
	t.handoff(m)
}

// recvDirect is the rendezvous receive: it takes a parked sender's payload
// directly, or parks until a sender hands one over.
func (t *Table) recvDirect(ctx context.Context, s *section, m *mailbox, op string, buf []byte, block bool) (int, error) {
	if m.consumers.empty() {
		if !m.producers.empty() && !m.producerWoken {
			idx := m.producers.front()
			r := t.records.get(idx)
			if len(r.payload) > len(buf) {
				return 0, fmt.Errorf("%s: mailbox %d: message of %d bytes does not fit %d byte buffer: %w",
					op, m.id, len(r.payload), len(buf), ErrInvalidArgument)
			}
			n := copy(buf, r.payload)
			m.producers.pop(t.records, idx)
			r.delivered = true
			m.producerWoken = true
			t.sched.Unblock(r.pid)
			return n, nil
		}
	}
	if !block {
		return 0, fmt.Errorf("%s: mailbox %d has no waiting sender: %w", op, m.id, ErrWouldBlock)
	}

	pid, idx := t.claim(ctx, op)
	r := t.records.get(idx)
	r.room = len(buf)
	m.consumers.push(t.records, idx)
	t.handoff(m)
	s.park(ctx, pid)

	if m.released {
		return 0, t.cancel(m, &m.consumers, &m.consumerWoken, idx, op)
	}
	t.leaveQueue(&m.consumers, idx, op)
	if r.refused > 0 {
		size := r.refused
		r.refused = 0
		t.nextConsumer(m)
		return 0, fmt.Errorf("%s: mailbox %d: message of %d bytes does not fit %d byte buffer: %w",
			op, m.id, size, len(buf), ErrInvalidArgument)
	}
	n, err := t.take(m, op, buf)
	t.nextConsumer(m)
	return n, err
}
