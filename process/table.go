package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
)

// DefaultMaxProc is the default process table size.
const DefaultMaxProc = 50

// ErrTableFull is returned by Spawn when every slot is taken.
var ErrTableFull = errors.New("process table full")

// Table is a fixed-size process table. It also acts as the scheduler
// capability the kernel suspends and resumes processes through.
type Table struct {
	mu    sync.Mutex
	slots []*Proc
	next  PID
	wg    sync.WaitGroup
	log   *slog.Logger
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger used for process lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTable creates a table with room for size processes. A non-positive size
// selects DefaultMaxProc.
func NewTable(size int, opts ...Option) *Table {
	if size <= 0 {
		size = DefaultMaxProc
	}
	t := &Table{
		slots: make([]*Proc, size),
		next:  1,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Size returns the number of slots in the table.
func (t *Table) Size() int {
	return len(t.slots)
}

// Spawn starts fn as a new process. The process context derives from parent
// and carries the new process as its caller identity.
func (t *Table) Spawn(parent context.Context, name string, fn Func) (*Proc, error) {
	if fn == nil {
		return nil, fmt.Errorf("spawn %q: nil process function", name)
	}
	if parent == nil {
		parent = context.Background()
	}

	t.mu.Lock()
	pid, ok := t.nextPID()
	if !ok {
		t.mu.Unlock()
		return nil, errors.Wrapf(ErrTableFull, "spawn %q", name)
	}
	p := newProc(pid, name)
	t.slots[pid.Slot(len(t.slots))] = p
	t.next = pid + 1
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.exit(p)
		p.status = fn(NewContext(parent, p))
	}()

	t.log.Debug("process spawned", "pid", pid, "name", name, "trace_id", p.TraceID())
	return p, nil
}

// nextPID returns the first pid at or after t.next whose slot is free.
func (t *Table) nextPID() (PID, bool) {
	size := len(t.slots)
	for i := 0; i < size; i++ {
		pid := t.next + PID(i)
		if t.slots[pid.Slot(size)] == nil {
			return pid, true
		}
	}
	return NoPID, false
}

func (t *Table) exit(p *Proc) {
	if r := recover(); r != nil {
		p.err = errors.Errorf("process %d (%s) panicked: %v", p.pid, p.name, r)
		t.log.Error("process panicked", "pid", p.pid, "name", p.name, "trace_id", p.TraceID(), "panic", r)
	}
	p.state.Store(int32(StateExited))

	t.mu.Lock()
	if slot := p.pid.Slot(len(t.slots)); t.slots[slot] == p {
		t.slots[slot] = nil
	}
	t.mu.Unlock()

	close(p.done)
	t.log.Debug("process exited", "pid", p.pid, "name", p.name, "status", p.status)
}

// Lookup returns the live process with the given pid.
func (t *Table) Lookup(pid PID) (*Proc, bool) {
	if pid <= NoPID {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.slots[pid.Slot(len(t.slots))]
	if p == nil || p.pid != pid {
		return nil, false
	}
	return p, true
}

// Wait blocks until every spawned process has exited.
func (t *Table) Wait() {
	t.wg.Wait()
}

// Current returns the pid of the process carried by ctx.
func (t *Table) Current(ctx context.Context) (PID, bool) {
	p, ok := FromContext(ctx)
	if !ok {
		return NoPID, false
	}
	return p.pid, true
}

// Block parks the calling process until another caller unblocks it. Context
// cancellation does not end the wait.
func (t *Table) Block(ctx context.Context, pid PID) {
	p, ok := FromContext(ctx)
	if !ok || p.pid != pid {
		p, ok = t.Lookup(pid)
		if !ok {
			return
		}
	}
	p.state.Store(int32(StateBlocked))
	<-p.wake
	p.state.Store(int32(StateRunning))
}

// Unblock marks pid runnable. Unblocking a process that already holds a
// pending wakeup is a no-op.
func (t *Table) Unblock(pid PID) {
	p, ok := t.Lookup(pid)
	if !ok {
		t.log.Warn("unblock of unknown process", "pid", pid)
		return
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
