package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hedisam/gombox/machine"
	"github.com/hedisam/gombox/process"
)

const waitFor = 2 * time.Second

type harness struct {
	t     *testing.T
	cpu   *machine.Machine
	procs *process.Table
	tbl   *Table

	mu    sync.Mutex
	halts []error
}

func newHarness(t *testing.T, limits Limits) *harness {
	return newHarnessWith(t, limits, nil)
}

// newHarnessWith builds a table on a fresh machine. wrap, if set, decorates
// the process table before it is handed to the mailbox table.
func newHarnessWith(t *testing.T, limits Limits, wrap func(*process.Table) Scheduler) *harness {
	t.Helper()
	h := &harness{t: t}
	h.cpu = machine.New(machine.WithHaltHandler(func(_ int, err error) {
		h.mu.Lock()
		h.halts = append(h.halts, err)
		h.mu.Unlock()
	}))
	h.procs = process.NewTable(limits.MaxProc)
	var sched Scheduler = h.procs
	if wrap != nil {
		sched = wrap(h.procs)
	}
	tbl, err := NewTable(h.cpu, sched, WithLimits(limits))
	require.NoError(t, err)
	h.tbl = tbl
	t.Cleanup(func() {
		tbl.Shutdown()
		h.procs.Wait()
	})
	return h
}

func smallLimits() Limits {
	return Limits{MaxMailboxes: 8, MaxSlots: 16, MaxMessage: 32, MaxProc: 16}
}

func (h *harness) create(capacity, size int) int {
	h.t.Helper()
	id, err := h.tbl.Create(capacity, size)
	require.NoError(h.t, err)
	return id
}

func (h *harness) spawn(name string, fn func(ctx context.Context, r *result) error) *result {
	h.t.Helper()
	r := &result{}
	p, err := h.procs.Spawn(context.Background(), name, func(ctx context.Context) int {
		r.err = fn(ctx, r)
		return 0
	})
	require.NoError(h.t, err)
	r.proc = p
	return r
}

// sender spawns a process doing one blocking send.
func (h *harness) sender(id int, msg string) *result {
	return h.spawn("send "+msg, func(ctx context.Context, _ *result) error {
		return h.tbl.Send(ctx, id, []byte(msg))
	})
}

// receiver spawns a process doing one blocking receive.
func (h *harness) receiver(id, size int) *result {
	return h.spawn("recv", func(ctx context.Context, r *result) error {
		buf := make([]byte, size)
		n, err := h.tbl.Recv(ctx, id, buf)
		if err == nil {
			r.msg = string(buf[:n])
		}
		return err
	})
}

func (h *harness) stat(id int) Stat {
	h.t.Helper()
	st, err := h.tbl.Stat(id)
	require.NoError(h.t, err)
	return st
}

func (h *harness) waitProducers(id, n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		st, err := h.tbl.Stat(id)
		return err == nil && st.Producers == n
	}, waitFor, time.Millisecond)
}

func (h *harness) waitConsumers(id, n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		st, err := h.tbl.Stat(id)
		return err == nil && st.Consumers == n
	}, waitFor, time.Millisecond)
}

func (h *harness) condRecv(id, size int) (string, error) {
	buf := make([]byte, size)
	n, err := h.tbl.CondRecv(context.Background(), id, buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func (h *harness) halted() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.halts...)
}

type result struct {
	proc *process.Proc
	msg  string
	err  error
}

// wait blocks until the process exits and returns the error of its body.
func (r *result) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-r.proc.Done():
	case <-time.After(waitFor):
		t.Fatalf("process %d (%s) did not finish", r.proc.PID(), r.proc.Name())
	}
	_, perr := r.proc.Wait()
	require.NoError(t, perr)
	return r.err
}
