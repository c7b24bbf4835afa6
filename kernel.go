// Package gombox is the message-passing layer of a small single-core,
// non-preemptive kernel. Processes exchange fixed-size messages through
// numbered, capacity-bounded mailboxes; a mailbox of capacity zero is a
// rendezvous point. Device and clock interrupts are turned into messages on
// reserved mailboxes, so waiting for a device is just a receive.
//
// A Kernel is built on a simulated machine (package machine) and a
// scheduler capability (package process provides one). Calls that may block
// take a context.Context that carries the calling process.
//
//	m := machine.New()
//	procs := process.NewTable(0)
//	k, err := gombox.New(m, procs)
//	...
//	procs.Spawn(ctx, "consumer", func(ctx context.Context) int {
//	    buf := make([]byte, 16)
//	    n, err := k.Recv(ctx, id, buf)
//	    ...
//	})
package gombox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/hedisam/gombox/internal/mailbox"
	"github.com/hedisam/gombox/machine"
)

// Scheduler suspends and resumes processes on behalf of the kernel.
type Scheduler = mailbox.Scheduler

// Stat is a snapshot of one mailbox.
type Stat = mailbox.Stat

// Usage is a snapshot of the mailbox table.
type Usage = mailbox.Usage

// Kernel owns the mailbox table, the interrupt bridge and the syscall
// vector. Build one with New and tear it down with Shutdown.
type Kernel struct {
	machine *machine.Machine
	boxes   *mailbox.Table
	sys     *SyscallTable
	devices deviceLayout

	limits        Limits
	clockInterval time.Duration
	lastClock     atomic.Int64

	boot xid.ID
	log  *slog.Logger
}

// New initialises the kernel on m: it builds the mailbox table, creates the
// reserved device mailboxes and installs the interrupt and syscall vectors.
// It halts m if not called in kernel mode.
func New(m *machine.Machine, sched Scheduler, opts ...Option) (*Kernel, error) {
	if m == nil {
		return nil, fmt.Errorf("gombox: nil machine")
	}
	if !m.KernelMode() {
		m.Halt(1, fmt.Errorf("gombox.New: not in kernel mode"))
	}

	k := &Kernel{
		machine:       m,
		limits:        DefaultLimits(),
		clockInterval: DefaultClockInterval,
		boot:          xid.New(),
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.log = k.log.With("boot_id", k.boot.String())

	boxes, err := mailbox.NewTable(m, sched,
		mailbox.WithLimits(k.limits),
		mailbox.WithLogger(k.log.With("component", "mailbox")),
	)
	if err != nil {
		return nil, fmt.Errorf("gombox: %w", err)
	}
	k.boxes = boxes

	k.devices = newDeviceLayout(m.Units(machine.DevTerm), m.Units(machine.DevDisk))
	if err := k.createReserved(); err != nil {
		return nil, err
	}

	k.sys = newSyscallTable(m, k.log.With("component", "syscall"))
	k.installVectors()

	k.log.Info("kernel initialised",
		"mailboxes", k.limits.MaxMailboxes,
		"slots", k.limits.MaxSlots,
		"reserved", k.devices.count())
	return k, nil
}

// Shutdown removes the kernel's interrupt vectors and releases every
// mailbox, cancelling all waiters.
func (k *Kernel) Shutdown() {
	for _, irq := range []machine.Interrupt{machine.IntClock, machine.IntTerm, machine.IntDisk, machine.IntSyscall} {
		k.machine.SetHandler(irq, nil)
	}
	k.boxes.Shutdown()
	k.log.Info("kernel shut down")
}

// Machine returns the machine the kernel runs on.
func (k *Kernel) Machine() *machine.Machine {
	return k.machine
}

// Create makes a mailbox for up to capacity messages of at most slotSize
// bytes. Capacity zero makes a rendezvous mailbox.
func (k *Kernel) Create(capacity, slotSize int) (int, error) {
	return k.boxes.Create(capacity, slotSize)
}

// Release destroys mailbox id; processes blocked on it get ErrCancelled.
func (k *Kernel) Release(id int) error {
	return k.boxes.Release(id)
}

// Send delivers msg to mailbox id, blocking while it is full.
func (k *Kernel) Send(ctx context.Context, id int, msg []byte) error {
	return k.boxes.Send(ctx, id, msg)
}

// CondSend delivers msg to mailbox id or fails with ErrWouldBlock.
func (k *Kernel) CondSend(ctx context.Context, id int, msg []byte) error {
	return k.boxes.CondSend(ctx, id, msg)
}

// Recv receives the oldest message of mailbox id into buf, blocking while
// the mailbox is empty.
func (k *Kernel) Recv(ctx context.Context, id int, buf []byte) (int, error) {
	return k.boxes.Recv(ctx, id, buf)
}

// CondRecv receives from mailbox id or fails with ErrWouldBlock.
func (k *Kernel) CondRecv(ctx context.Context, id int, buf []byte) (int, error) {
	return k.boxes.CondRecv(ctx, id, buf)
}

// Stat returns a snapshot of mailbox id.
func (k *Kernel) Stat(id int) (Stat, error) {
	return k.boxes.Stat(id)
}

// Usage returns table-wide counters.
func (k *Kernel) Usage() Usage {
	return k.boxes.Usage()
}

// Check verifies the mailbox table invariants.
func (k *Kernel) Check() error {
	return k.boxes.Check()
}

// Syscalls returns the syscall dispatch table.
func (k *Kernel) Syscalls() *SyscallTable {
	return k.sys
}
