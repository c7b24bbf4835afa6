package mailbox

import "github.com/hedisam/gombox/process"

const none = -1

// record is the waiting-context record of one process slot. While queued,
// next belongs to the wait queue holding it.
type record struct {
	pid    process.PID
	queued bool
	next   int

	// payload and delivered carry a parked rendezvous send.
	payload   []byte
	delivered bool

	// room is a parked rendezvous receive's buffer length. refused is the
	// size of a message it was woken for but cannot hold.
	room    int
	refused int
}

// recordPool holds one record per process slot, so a process has at most
// one outstanding wait.
type recordPool struct {
	recs []record
}

func newRecordPool(size int) *recordPool {
	p := &recordPool{recs: make([]record, size)}
	for i := range p.recs {
		p.recs[i].next = none
	}
	return p
}

// claim returns the record index for pid, or false if that record is
// already queued.
func (p *recordPool) claim(pid process.PID) (int, bool) {
	idx := pid.Slot(len(p.recs))
	r := &p.recs[idx]
	if r.queued {
		return none, false
	}
	r.pid = pid
	r.next = none
	r.delivered = false
	r.payload = r.payload[:0]
	r.room = 0
	r.refused = 0
	return idx, true
}

func (p *recordPool) get(idx int) *record {
	return &p.recs[idx]
}

// waitQueue is a FIFO of record indices linked through record.next.
type waitQueue struct {
	head, tail int
	n          int
}

func newWaitQueue() waitQueue {
	return waitQueue{head: none, tail: none}
}

func (q *waitQueue) empty() bool {
	return q.n == 0
}

func (q *waitQueue) len() int {
	return q.n
}

func (q *waitQueue) front() int {
	return q.head
}

func (q *waitQueue) push(p *recordPool, idx int) {
	r := p.get(idx)
	r.queued = true
	r.next = none
	if q.tail == none {
		q.head = idx
	} else {
		p.get(q.tail).next = idx
	}
	q.tail = idx
	q.n++
}

// pop removes the head record. It reports false if the queue is empty or
// the head is not idx.
func (q *waitQueue) pop(p *recordPool, idx int) bool {
	if q.head == none || q.head != idx {
		return false
	}
	r := p.get(idx)
	q.head = r.next
	if q.head == none {
		q.tail = none
	}
	r.next = none
	r.queued = false
	q.n--
	return true
}

// pids returns the queued pids in order, head first.
func (q *waitQueue) pids(p *recordPool) []process.PID {
	out := make([]process.PID, 0, q.n)
	for idx := q.head; idx != none; idx = p.get(idx).next {
		out = append(out, p.get(idx).pid)
	}
	return out
}
