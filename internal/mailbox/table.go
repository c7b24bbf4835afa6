package mailbox

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hedisam/gombox/process"
)

// Table owns every mailbox, the shared slot pool and the waiting records.
type Table struct {
	mu     sync.Mutex
	limits Limits
	cpu    CPU
	sched  Scheduler
	log    *slog.Logger

	boxes   []mailbox
	count   int
	lastID  int
	slots   *slotPool
	records *recordPool
}

// Option configures a Table.
type Option func(*Table)

// WithLimits sets the pool sizes.
func WithLimits(l Limits) Option {
	return func(t *Table) {
		t.limits = l
	}
}

// WithLogger sets the table logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTable creates an empty table. cpu provides the mode check, interrupt
// mask and halt line; sched suspends and resumes blocked callers.
func NewTable(cpu CPU, sched Scheduler, opts ...Option) (*Table, error) {
	if cpu == nil || sched == nil {
		return nil, fmt.Errorf("mailbox table needs a cpu and a scheduler")
	}
	t := &Table{
		limits: DefaultLimits(),
		cpu:    cpu,
		sched:  sched,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		lastID: -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.limits.validate(); err != nil {
		return nil, err
	}
	t.boxes = make([]mailbox, t.limits.MaxMailboxes)
	t.slots = newSlotPool(t.limits.MaxSlots, t.limits.MaxMessage)
	t.records = newRecordPool(t.limits.MaxProc)
	return t, nil
}

// Limits returns the pool sizes the table was built with.
func (t *Table) Limits() Limits {
	return t.limits
}

// Create claims a mailbox holding up to capacity messages of at most
// slotSize bytes each. A capacity of zero makes a rendezvous mailbox.
func (t *Table) Create(capacity, slotSize int) (int, error) {
	s := t.enter("MboxCreate")
	defer s.leave()

	if capacity < 0 || capacity > t.limits.MaxSlots {
		return -1, fmt.Errorf("create: capacity %d out of range [0,%d]: %w", capacity, t.limits.MaxSlots, ErrInvalidArgument)
	}
	if slotSize < 0 || slotSize > t.limits.MaxMessage {
		return -1, fmt.Errorf("create: slot size %d out of range [0,%d]: %w", slotSize, t.limits.MaxMessage, ErrInvalidArgument)
	}
	if t.count >= len(t.boxes) {
		return -1, fmt.Errorf("create: mailbox table full: %w", ErrInvalidArgument)
	}

	id, ok := t.nextID()
	if !ok {
		return -1, fmt.Errorf("create: no drained mailbox entry: %w", ErrInvalidArgument)
	}
	t.boxes[id] = mailbox{
		id:        id,
		capacity:  capacity,
		slotSize:  slotSize,
		live:      true,
		messages:  newMessageQueue(capacity),
		producers: newWaitQueue(),
		consumers: newWaitQueue(),
	}
	t.lastID = id
	t.count++
	t.log.Debug("mailbox created", "id", id, "capacity", capacity, "slot_size", slotSize)
	return id, nil
}

// nextID probes forward from the last assigned id for a free entry.
func (t *Table) nextID() (int, bool) {
	n := len(t.boxes)
	for i := 1; i <= n; i++ {
		id := (t.lastID + i) % n
		if !t.boxes[id].live {
			return id, true
		}
	}
	return -1, false
}

// open returns the live, unreleased mailbox with the given id.
func (t *Table) open(op string, id int) (*mailbox, error) {
	if id < 0 || id >= len(t.boxes) {
		return nil, fmt.Errorf("%s: mailbox id %d out of range: %w", op, id, ErrInvalidArgument)
	}
	m := &t.boxes[id]
	if !m.live {
		return nil, fmt.Errorf("%s: mailbox %d does not exist: %w", op, id, ErrInvalidArgument)
	}
	if m.released {
		return nil, fmt.Errorf("%s: mailbox %d has been released: %w", op, id, ErrInvalidArgument)
	}
	return m, nil
}

// Release destroys a mailbox. Buffered messages are discarded and every
// blocked caller eventually returns ErrCancelled. The id becomes reusable
// once the last of them has left.
func (t *Table) Release(id int) error {
	s := t.enter("MboxRelease")
	defer s.leave()

	m, err := t.open("release", id)
	if err != nil {
		return err
	}
	m.released = true
	t.count--
	dropped := m.used()
	m.messages.drain(t.slots.free)

	if !m.producers.empty() && !m.producerWoken {
		m.producerWoken = true
		t.wakeFront(&m.producers)
	}
	if !m.consumers.empty() && !m.consumerWoken {
		m.consumerWoken = true
		t.wakeFront(&m.consumers)
	}
	t.log.Debug("mailbox released", "id", id, "dropped", dropped,
		"producers", m.producers.len(), "consumers", m.consumers.len())
	t.reclaim(m)
	return nil
}

// reclaim frees a released mailbox's entry once nobody is left inside it.
func (t *Table) reclaim(m *mailbox) {
	if !m.released || !m.idle() {
		return
	}
	id := m.id
	*m = mailbox{id: id}
	t.log.Debug("mailbox drained", "id", id)
}

// Shutdown releases every remaining mailbox.
func (t *Table) Shutdown() {
	for id := range t.boxes {
		t.mu.Lock()
		m := &t.boxes[id]
		pending := m.live && !m.released
		t.mu.Unlock()
		if pending {
			_ = t.Release(id)
		}
	}
}

// Stat returns a snapshot of one mailbox, released or not.
func (t *Table) Stat(id int) (Stat, error) {
	s := t.enter("MboxStat")
	defer s.leave()

	if id < 0 || id >= len(t.boxes) || !t.boxes[id].live {
		return Stat{}, fmt.Errorf("stat: mailbox %d does not exist: %w", id, ErrInvalidArgument)
	}
	m := &t.boxes[id]
	return Stat{
		ID:        m.id,
		Capacity:  m.capacity,
		SlotSize:  m.slotSize,
		Used:      m.used(),
		Producers: m.producers.len(),
		Consumers: m.consumers.len(),
		Released:  m.released,
	}, nil
}

// Waiters returns the pids parked on a mailbox, head first.
func (t *Table) Waiters(id int) (producers, consumers []process.PID, err error) {
	s := t.enter("MboxWaiters")
	defer s.leave()

	if id < 0 || id >= len(t.boxes) || !t.boxes[id].live {
		return nil, nil, fmt.Errorf("waiters: mailbox %d does not exist: %w", id, ErrInvalidArgument)
	}
	m := &t.boxes[id]
	return m.producers.pids(t.records), m.consumers.pids(t.records), nil
}

// Usage returns table-wide counters.
func (t *Table) Usage() Usage {
	s := t.enter("MboxUsage")
	defer s.leave()

	return Usage{
		Mailboxes:    t.count,
		MaxMailboxes: len(t.boxes),
		SlotsUsed:    t.slots.used,
		MaxSlots:     t.slots.size(),
	}
}

// Check verifies the table invariants and returns the first violation.
func (t *Table) Check() error {
	s := t.enter("MboxCheck")
	defer s.leave()

	leased := 0
	for i := range t.boxes {
		m := &t.boxes[i]
		if !m.live {
			continue
		}
		used := m.used()
		if m.rendezvous() {
			if used > 1 {
				return fmt.Errorf("rendezvous mailbox %d buffers %d messages", m.id, used)
			}
			if used == 1 && (!m.consumerWoken || m.consumers.empty()) {
				return fmt.Errorf("rendezvous mailbox %d holds a message no receiver is taking", m.id)
			}
			continue
		}
		if used > m.capacity {
			return fmt.Errorf("mailbox %d buffers %d messages, capacity %d", m.id, used, m.capacity)
		}
		leased += used
	}
	if leased != t.slots.used {
		return fmt.Errorf("mailboxes hold %d slots, pool reports %d", leased, t.slots.used)
	}
	if t.slots.used > t.slots.size() {
		return fmt.Errorf("slot pool over-leased: %d of %d", t.slots.used, t.slots.size())
	}
	return nil
}
