package machine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// Interrupt is an interrupt line of the machine.
type Interrupt int

const (
	IntClock Interrupt = iota
	IntTerm
	IntSyscall
	IntDisk
	NumInterrupts
)

func (i Interrupt) String() string {
	switch i {
	case IntClock:
		return "clock"
	case IntTerm:
		return "term"
	case IntSyscall:
		return "syscall"
	case IntDisk:
		return "disk"
	default:
		return fmt.Sprintf("interrupt(%d)", int(i))
	}
}

// Handler services one interrupt. For device interrupts arg is the unit
// number; for syscall traps it is the argument block passed to Syscall.
type Handler func(ctx context.Context, irq Interrupt, arg any)

type pendingInterrupt struct {
	irq  Interrupt
	unit int
}

// SetHandler installs h on the interrupt vector. A nil handler clears the
// entry.
func (m *Machine) SetHandler(irq Interrupt, h Handler) {
	if irq < 0 || irq >= NumInterrupts {
		m.Halt(1, errorf("SetHandler: invalid interrupt %d", int(irq)))
	}
	m.vecMu.Lock()
	m.vector[irq] = h
	m.vecMu.Unlock()
}

func (m *Machine) handler(irq Interrupt) Handler {
	m.vecMu.RLock()
	defer m.vecMu.RUnlock()
	return m.vector[irq]
}

// Raise queues an interrupt for delivery by the interrupt controller. It is
// safe to call from any goroutine.
func (m *Machine) Raise(irq Interrupt, unit int) {
	m.pending.Push(pendingInterrupt{irq: irq, unit: unit})
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Syscall traps into the syscall vector on the calling goroutine.
func (m *Machine) Syscall(ctx context.Context, args any) {
	h := m.handler(IntSyscall)
	if h == nil {
		m.Halt(1, errorf("syscall trap with no handler installed"))
	}
	h(ctx, IntSyscall, args)
}

// dispatch delivers pending interrupts in arrival order, holding each one
// back while interrupts are masked.
func (m *Machine) dispatch(ctx context.Context) {
	for {
		for m.pending.Size() != 0 {
			v := m.pending.Pop()
			irq, ok := v.(pendingInterrupt)
			if !ok {
				runtime.Gosched()
				continue
			}
			if !m.awaitEnabled(ctx) {
				return
			}
			if !m.deliver(ctx, irq) {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-m.signal:
		}
	}
}

func (m *Machine) awaitEnabled(ctx context.Context) bool {
	for !m.InterruptsEnabled() {
		select {
		case <-ctx.Done():
			return false
		case <-m.intOn:
		}
	}
	return true
}

func (m *Machine) deliver(ctx context.Context, p pendingInterrupt) (ok bool) {
	h := m.handler(p.irq)
	if h == nil {
		m.log.Debug("interrupt dropped, no handler", "irq", p.irq, "unit", p.unit)
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			var herr *HaltError
			if err, isErr := r.(error); isErr && errors.As(err, &herr) {
				ok = false
				return
			}
			panic(r)
		}
	}()
	h(ctx, p.irq, p.unit)
	return true
}
