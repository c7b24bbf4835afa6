package cmd

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hedisam/gombox"
	"github.com/hedisam/gombox/internal/config"
	"github.com/hedisam/gombox/machine"
	"github.com/hedisam/gombox/process"
)

// feedPoll is how often a terminal feeder checks its reader's progress.
const feedPoll = time.Millisecond

type workload struct {
	cfg    *config.Config
	log    *slog.Logger
	m      *machine.Machine
	procs  *process.Table
	kernel *gombox.Kernel
	data   int

	g      errgroup.Group
	fail   context.CancelFunc
	failed context.Context

	sent     atomic.Int64
	received atomic.Int64
	checksum atomic.Uint64
	term     []atomic.Int64
	clock    []uint32
}

// simulate boots a machine and kernel and runs the configured workload on
// them. The returned report is valid even when err is not nil.
func simulate(ctx context.Context, cfg *config.Config, log *slog.Logger) (*report, error) {
	begin := time.Now()

	m := machine.New(
		machine.WithLogger(log.With("component", "machine")),
		machine.WithUnits(cfg.Devices.Terminals, cfg.Devices.Disks),
		machine.WithHaltHandler(func(code int, err error) {
			log.Error("halt", "code", code, "err", err)
		}),
	)
	procs := process.NewTable(cfg.Kernel.MaxProc, process.WithLogger(log.With("component", "process")))
	k, err := gombox.New(m, procs,
		gombox.WithLimits(cfg.Limits()),
		gombox.WithLogger(log),
		gombox.WithClockInterval(cfg.Kernel.ClockInterval),
	)
	if err != nil {
		return nil, err
	}
	if err := k.RegisterMailboxSyscalls(); err != nil {
		return nil, err
	}

	m.Start(ctx, cfg.Machine.Tick)
	defer m.Stop()

	w := &workload{
		cfg:    cfg,
		log:    log,
		m:      m,
		procs:  procs,
		kernel: k,
		term:   make([]atomic.Int64, cfg.Devices.Terminals),
	}
	tctx, cancel := context.WithTimeout(ctx, cfg.Sim.Timeout)
	defer cancel()
	w.failed, w.fail = context.WithCancel(tctx)
	defer w.fail()
	stop := context.AfterFunc(w.failed, k.Shutdown)

	runErr := w.run(ctx)
	if stop() {
		// Nothing failed; snapshot before tearing down.
		rep := w.report(begin)
		k.Shutdown()
		return rep, runErr
	}
	rep := w.report(begin)
	if runErr == nil {
		runErr = tctx.Err()
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		runErr = fmt.Errorf("simulation timed out after %s: %w", cfg.Sim.Timeout, runErr)
	}
	return rep, runErr
}

func (w *workload) run(ctx context.Context) error {
	err := w.start(ctx)
	if err != nil {
		w.fail()
	}
	if werr := w.g.Wait(); err == nil {
		err = werr
	}
	return err
}

func (w *workload) start(ctx context.Context) error {
	args := &gombox.SysArgs{Number: gombox.SysMboxCreate, Arg1: w.cfg.Sim.Capacity, Arg2: w.cfg.Sim.MessageSize}
	w.m.Syscall(ctx, args)
	if err, _ := args.Arg4.(error); err != nil {
		return fmt.Errorf("create data mailbox: %w", err)
	}
	w.data = args.Arg1.(int)
	w.log.Info("data mailbox created", "id", w.data, "capacity", w.cfg.Sim.Capacity)

	sim := w.cfg.Sim
	for i := 0; i < sim.Consumers; i++ {
		n := share(i, sim.Consumers, sim.Messages)
		if err := w.spawn(ctx, fmt.Sprintf("consumer-%d", i), w.consumer(n)); err != nil {
			return err
		}
	}
	for i := 0; i < sim.Producers; i++ {
		n := share(i, sim.Producers, sim.Messages)
		if err := w.spawn(ctx, fmt.Sprintf("producer-%d", i), w.producer(i, n)); err != nil {
			return err
		}
	}
	for unit := range w.term {
		if err := w.spawn(ctx, fmt.Sprintf("term-%d", unit), w.terminal(unit)); err != nil {
			return err
		}
		w.g.Go(w.feeder(unit))
	}
	if w.cfg.Machine.Tick > 0 && sim.ClockWaits > 0 {
		w.clock = make([]uint32, sim.ClockWaits)
		if err := w.spawn(ctx, "clock", w.clockWaiter()); err != nil {
			return err
		}
	}
	return nil
}

// spawn starts body as a kernel process and tracks it in the group.
func (w *workload) spawn(ctx context.Context, name string, body func(context.Context) error) error {
	var bodyErr error
	p, err := w.procs.Spawn(ctx, name, func(ctx context.Context) int {
		if bodyErr = body(ctx); bodyErr != nil {
			return 1
		}
		return 0
	})
	if err != nil {
		return err
	}
	w.g.Go(func() error {
		if _, err := p.Wait(); err != nil {
			w.fail()
			return err
		}
		if bodyErr != nil {
			w.fail()
			return fmt.Errorf("%s: %w", name, bodyErr)
		}
		return nil
	})
	return nil
}

func (w *workload) producer(id, count int) func(context.Context) error {
	return func(ctx context.Context) error {
		msg := make([]byte, w.cfg.Sim.MessageSize)
		for seq := 0; seq < count; seq++ {
			word := uint64(id)<<32 | uint64(seq)
			binary.BigEndian.PutUint64(msg, word)
			args := &gombox.SysArgs{Number: gombox.SysMboxSend, Arg1: w.data, Arg2: msg}
			w.m.Syscall(ctx, args)
			if err, _ := args.Arg4.(error); err != nil {
				return err
			}
			w.sent.Add(1)
		}
		return nil
	}
}

func (w *workload) consumer(count int) func(context.Context) error {
	return func(ctx context.Context) error {
		buf := make([]byte, w.cfg.Sim.MessageSize)
		for i := 0; i < count; i++ {
			n, err := w.kernel.Recv(ctx, w.data, buf)
			if err != nil {
				return err
			}
			if n < 8 {
				return fmt.Errorf("short message of %d bytes", n)
			}
			w.checksum.Add(binary.BigEndian.Uint64(buf[:8]))
			w.received.Add(1)
		}
		return nil
	}
}

func (w *workload) terminal(unit int) func(context.Context) error {
	return func(ctx context.Context) error {
		for i := 0; i < w.cfg.Sim.TermEvents; i++ {
			status, err := w.kernel.WaitDevice(ctx, machine.DevTerm, unit)
			if err != nil {
				return err
			}
			w.log.Debug("terminal status", "unit", unit, "status", status)
			w.term[unit].Add(1)
		}
		return nil
	}
}

// feeder raises one terminal interrupt at a time, waiting for the reader to
// consume each status so none is dropped as an overrun.
func (w *workload) feeder(unit int) func() error {
	return func() error {
		for i := 0; i < w.cfg.Sim.TermEvents; i++ {
			if err := w.m.RaiseDevice(machine.DevTerm, unit, uint32(unit)<<8|uint32(i)); err != nil {
				return err
			}
			for w.term[unit].Load() <= int64(i) {
				select {
				case <-w.failed.Done():
					return w.failed.Err()
				case <-time.After(feedPoll):
				}
			}
		}
		return nil
	}
}

func (w *workload) clockWaiter() func(context.Context) error {
	return func(ctx context.Context) error {
		for i := range w.clock {
			status, err := w.kernel.WaitDevice(ctx, machine.DevClock, 0)
			if err != nil {
				return err
			}
			w.clock[i] = status
		}
		return nil
	}
}

func (w *workload) report(begin time.Time) *report {
	r := &report{
		DataMailbox: w.data,
		Capacity:    w.cfg.Sim.Capacity,
		Sent:        w.sent.Load(),
		Received:    w.received.Load(),
		Checksum:    w.checksum.Load(),
		Clock:       w.clock,
		Ticks:       w.m.Ticks(),
		Usage:       w.kernel.Usage(),
		Invariants:  w.kernel.Check(),
		Elapsed:     time.Since(begin),
	}
	for i := range w.term {
		r.Terminal = append(r.Terminal, w.term[i].Load())
	}
	return r
}

// share splits total into n near-equal parts and returns part i.
func share(i, n, total int) int {
	q := total / n
	if i < total%n {
		q++
	}
	return q
}
