// Package machine simulates the host hardware the kernel runs on: a
// processor status register, an interrupt vector fed by an interrupt
// controller, device status registers, a periodic clock and a halt line.
package machine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	mpsc "github.com/t3rm1n4l/go-mpscqueue"
)

// DefaultTick is the default period of the clock interrupt.
const DefaultTick = 20 * time.Millisecond

// Machine is a simulated single-core host.
type Machine struct {
	psr    atomic.Uint32
	halted atomic.Bool
	ticks  atomic.Uint64

	vecMu  sync.RWMutex
	vector [NumInterrupts]Handler

	status [numDevices][]atomic.Uint32

	pending *mpsc.MPSCQueue
	signal  chan struct{}
	intOn   chan struct{}

	clock Clock
	halt  HaltFunc
	log   *slog.Logger

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     *conc.WaitGroup
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces the host clock.
func WithClock(c Clock) Option {
	return func(m *Machine) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithHaltHandler replaces the default os.Exit halt behaviour.
func WithHaltHandler(h HaltFunc) Option {
	return func(m *Machine) {
		if h != nil {
			m.halt = h
		}
	}
}

// WithLogger sets the machine console logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

// WithUnits sets the number of attached terminal and disk units.
func WithUnits(terms, disks int) Option {
	return func(m *Machine) {
		m.status[DevTerm] = make([]atomic.Uint32, max(terms, 0))
		m.status[DevDisk] = make([]atomic.Uint32, max(disks, 0))
	}
}

// New boots a machine in kernel mode with interrupts enabled.
func New(opts ...Option) *Machine {
	m := &Machine{
		pending: mpsc.New(),
		signal:  make(chan struct{}, 1),
		intOn:   make(chan struct{}, 1),
		clock:   newHostClock(),
		halt:    defaultHalt,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	m.status[DevClock] = make([]atomic.Uint32, 1)
	m.status[DevTerm] = make([]atomic.Uint32, DefaultTermUnits)
	m.status[DevDisk] = make([]atomic.Uint32, DefaultDiskUnits)
	for _, opt := range opts {
		opt(m)
	}
	m.psr.Store(PsrCurMode | PsrCurInt)
	return m
}

// Start runs the interrupt controller and, when tick is positive, a clock
// that raises a clock interrupt every tick. Start is a no-op while running.
func (m *Machine) Start(ctx context.Context, tick time.Duration) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg = conc.NewWaitGroup()
	m.wg.Go(func() { m.dispatch(ctx) })
	if tick > 0 {
		m.wg.Go(func() { m.runTicker(ctx.Done(), tick) })
	}
	m.log.Debug("machine started", "tick", tick)
}

// Stop halts the interrupt controller and clock and waits for them to exit.
func (m *Machine) Stop() {
	m.runMu.Lock()
	cancel, wg := m.cancel, m.wg
	m.cancel, m.wg = nil, nil
	m.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	wg.Wait()
	m.log.Debug("machine stopped")
}
