package mailbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/gombox/process"
)

func TestConditionalFIFO(t *testing.T) {
	h := newHarness(t, smallLimits())
	ctx := context.Background()
	id := h.create(3, 8)

	for _, msg := range []string{"a", "bb", "ccc"} {
		require.NoError(t, h.tbl.CondSend(ctx, id, []byte(msg)))
	}
	assert.ErrorIs(t, h.tbl.CondSend(ctx, id, []byte("d")), ErrWouldBlock)
	assert.Equal(t, 3, h.stat(id).Used)

	for _, want := range []string{"a", "bb", "ccc"} {
		got, err := h.condRecv(id, 8)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := h.condRecv(id, 8)
	assert.ErrorIs(t, err, ErrWouldBlock)
	require.NoError(t, h.tbl.Check())
}

func TestMessageSizes(t *testing.T) {
	h := newHarness(t, smallLimits())
	ctx := context.Background()
	id := h.create(2, 4)

	assert.ErrorIs(t, h.tbl.CondSend(ctx, id, []byte("12345")), ErrInvalidArgument)
	require.NoError(t, h.tbl.CondSend(ctx, id, []byte("1234")))
	require.NoError(t, h.tbl.CondSend(ctx, id, nil))

	_, err := h.condRecv(id, 3)
	assert.ErrorIs(t, err, ErrInvalidArgument, "undersized buffer")
	assert.Equal(t, 2, h.stat(id).Used, "message stays queued")

	got, err := h.condRecv(id, 4)
	require.NoError(t, err)
	assert.Equal(t, "1234", got)

	n, err := h.tbl.CondRecv(ctx, id, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCondSendWouldBlockScenario(t *testing.T) {
	h := newHarness(t, smallLimits())
	ctx := context.Background()
	id := h.create(1, 8)

	require.NoError(t, h.tbl.CondSend(ctx, id, []byte("first")))
	err := h.tbl.CondSend(ctx, id, []byte("second"))
	require.ErrorIs(t, err, ErrWouldBlock)

	got, err := h.condRecv(id, 8)
	require.NoError(t, err)
	assert.Equal(t, "first", got)
	_, err = h.condRecv(id, 8)
	assert.ErrorIs(t, err, ErrWouldBlock, "a refused send leaves nothing behind")
}

func TestSlotPoolExhaustion(t *testing.T) {
	limits := smallLimits()
	limits.MaxSlots = 2
	h := newHarness(t, limits)
	ctx := context.Background()
	a := h.create(2, 8)
	b := h.create(2, 8)
	rv := h.create(0, 8)

	require.NoError(t, h.tbl.CondSend(ctx, a, []byte("1")))
	require.NoError(t, h.tbl.CondSend(ctx, a, []byte("2")))

	assert.ErrorIs(t, h.tbl.CondSend(ctx, b, []byte("3")), ErrResourceExhausted)
	assert.ErrorIs(t, h.tbl.Send(ctx, b, []byte("3")), ErrResourceExhausted, "checked before blocking")
	assert.ErrorIs(t, h.tbl.CondSend(ctx, rv, []byte("3")), ErrResourceExhausted)
	assert.ErrorIs(t, h.tbl.CondSend(ctx, 99, []byte("3")), ErrResourceExhausted, "checked before the id")

	_, err := h.condRecv(a, 8)
	require.NoError(t, err)
	require.NoError(t, h.tbl.CondSend(ctx, b, []byte("3")))
	require.NoError(t, h.tbl.Check())
}

func TestBlockingRecvWakesOnSend(t *testing.T) {
	h := newHarness(t, smallLimits())
	id := h.create(1, 8)

	r := h.receiver(id, 8)
	h.waitConsumers(id, 1)

	require.NoError(t, h.tbl.CondSend(context.Background(), id, []byte("hello")))
	require.NoError(t, r.wait(t))
	assert.Equal(t, "hello", r.msg)

	st := h.stat(id)
	assert.Zero(t, st.Used)
	assert.Zero(t, st.Consumers)
}

func TestBlockingSendWakesOnRecv(t *testing.T) {
	h := newHarness(t, smallLimits())
	ctx := context.Background()
	id := h.create(1, 8)

	require.NoError(t, h.tbl.CondSend(ctx, id, []byte("first")))
	s := h.sender(id, "second")
	h.waitProducers(id, 1)

	got, err := h.condRecv(id, 8)
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	require.NoError(t, s.wait(t))
	got, err = h.condRecv(id, 8)
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestConsumersServedInArrivalOrder(t *testing.T) {
	h := newHarness(t, smallLimits())
	ctx := context.Background()
	id := h.create(2, 8)

	first := h.receiver(id, 8)
	h.waitConsumers(id, 1)
	second := h.receiver(id, 8)
	h.waitConsumers(id, 2)

	require.NoError(t, h.tbl.CondSend(ctx, id, []byte("a")))
	require.NoError(t, h.tbl.CondSend(ctx, id, []byte("b")))

	require.NoError(t, first.wait(t))
	require.NoError(t, second.wait(t))
	assert.Equal(t, "a", first.msg)
	assert.Equal(t, "b", second.msg)
}

func TestProducersServedInArrivalOrder(t *testing.T) {
	h := newHarness(t, smallLimits())
	ctx := context.Background()
	id := h.create(1, 8)

	require.NoError(t, h.tbl.CondSend(ctx, id, []byte("0")))
	senders := make([]*result, 3)
	for i := range senders {
		senders[i] = h.sender(id, fmt.Sprint(i+1))
		h.waitProducers(id, i+1)
	}

	for want := 0; want <= 3; want++ {
		r := h.receiver(id, 8)
		require.NoError(t, r.wait(t))
		assert.Equal(t, fmt.Sprint(want), r.msg)
	}
	for _, s := range senders {
		require.NoError(t, s.wait(t))
	}
}

func TestRendezvousSenderFirst(t *testing.T) {
	h := newHarness(t, smallLimits())
	id := h.create(0, 8)

	s := h.sender(id, "ping")
	h.waitProducers(id, 1)
	assert.Zero(t, h.stat(id).Used, "a parked rendezvous send buffers nothing")
	assert.Zero(t, h.tbl.Usage().SlotsUsed)

	_, err := h.condRecv(id, 2)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 1, h.stat(id).Producers, "sender stays parked")

	got, err := h.condRecv(id, 8)
	require.NoError(t, err)
	assert.Equal(t, "ping", got)
	require.NoError(t, s.wait(t))
}

func TestRendezvousReceiverFirst(t *testing.T) {
	h := newHarness(t, smallLimits())
	ctx := context.Background()
	id := h.create(0, 8)

	assert.ErrorIs(t, h.tbl.CondSend(ctx, id, []byte("x")), ErrWouldBlock)
	_, err := h.condRecv(id, 8)
	assert.ErrorIs(t, err, ErrWouldBlock)

	r := h.receiver(id, 8)
	h.waitConsumers(id, 1)
	require.NoError(t, h.tbl.CondSend(ctx, id, []byte("pong")))
	require.NoError(t, r.wait(t))
	assert.Equal(t, "pong", r.msg)
	assert.Zero(t, h.tbl.Usage().SlotsUsed, "rendezvous never leases a slot")
}

func TestRendezvousBlockingPair(t *testing.T) {
	h := newHarness(t, smallLimits())
	id := h.create(0, 8)

	s := h.sender(id, "both")
	h.waitProducers(id, 1)
	r := h.receiver(id, 8)

	require.NoError(t, r.wait(t))
	require.NoError(t, s.wait(t))
	assert.Equal(t, "both", r.msg)
	require.NoError(t, h.tbl.Check())
}

func TestRendezvousSendersInOrder(t *testing.T) {
	h := newHarness(t, smallLimits())
	id := h.create(0, 8)

	senders := make([]*result, 3)
	for i := range senders {
		senders[i] = h.sender(id, fmt.Sprint(i))
		h.waitProducers(id, i+1)
	}
	for want := 0; want < 3; want++ {
		r := h.receiver(id, 8)
		require.NoError(t, r.wait(t))
		assert.Equal(t, fmt.Sprint(want), r.msg)
	}
	for _, s := range senders {
		require.NoError(t, s.wait(t))
	}
}

func TestRendezvousCondSendRefusedBySmallReceiver(t *testing.T) {
	h := newHarness(t, smallLimits())
	ctx := context.Background()
	id := h.create(0, 8)

	r := h.receiver(id, 2)
	h.waitConsumers(id, 1)

	err := h.tbl.CondSend(ctx, id, []byte("payload"))
	assert.ErrorIs(t, err, ErrWouldBlock, "no receiver can hold the message")
	assert.ErrorIs(t, r.wait(t), ErrInvalidArgument)

	st := h.stat(id)
	assert.Zero(t, st.Used)
	assert.Zero(t, st.Consumers)
	_, err = h.condRecv(id, 8)
	assert.ErrorIs(t, err, ErrWouldBlock, "nothing was buffered")
	require.NoError(t, h.tbl.Check())
}

func TestRendezvousSendWaitsPastSmallReceiver(t *testing.T) {
	h := newHarness(t, smallLimits())
	id := h.create(0, 8)

	small := h.receiver(id, 2)
	h.waitConsumers(id, 1)
	s := h.sender(id, "payload")

	assert.ErrorIs(t, small.wait(t), ErrInvalidArgument)
	h.waitProducers(id, 1)
	assert.Zero(t, h.stat(id).Used)
	require.NoError(t, h.tbl.Check())

	r := h.receiver(id, 8)
	require.NoError(t, r.wait(t))
	require.NoError(t, s.wait(t))
	assert.Equal(t, "payload", r.msg)
	require.NoError(t, h.tbl.Check())
}

func TestRendezvousHandoffSkipsSmallReceivers(t *testing.T) {
	h := newHarness(t, smallLimits())
	id := h.create(0, 8)

	var receivers []*result
	for i, size := range []int{2, 3, 8} {
		receivers = append(receivers, h.receiver(id, size))
		h.waitConsumers(id, i+1)
	}
	s := h.sender(id, "payload")

	assert.ErrorIs(t, receivers[0].wait(t), ErrInvalidArgument)
	assert.ErrorIs(t, receivers[1].wait(t), ErrInvalidArgument)
	require.NoError(t, receivers[2].wait(t))
	require.NoError(t, s.wait(t))
	assert.Equal(t, "payload", receivers[2].msg)

	st := h.stat(id)
	assert.Zero(t, st.Used)
	assert.Zero(t, st.Producers)
	assert.Zero(t, st.Consumers)
	require.NoError(t, h.tbl.Check())
}

func TestReleaseCancelsConsumers(t *testing.T) {
	h := newHarness(t, smallLimits())
	id := h.create(2, 8)

	waiters := []*result{h.receiver(id, 8)}
	h.waitConsumers(id, 1)
	waiters = append(waiters, h.receiver(id, 8))
	h.waitConsumers(id, 2)

	require.NoError(t, h.tbl.Release(id))
	for _, w := range waiters {
		assert.ErrorIs(t, w.wait(t), ErrCancelled)
	}

	_, err := h.tbl.Stat(id)
	assert.ErrorIs(t, err, ErrInvalidArgument, "entry reclaimed by the last waiter")
	assert.Equal(t, id+1, h.create(1, 8))
	require.NoError(t, h.tbl.Check())
}

func TestReleaseCancelsProducers(t *testing.T) {
	h := newHarness(t, smallLimits())
	ctx := context.Background()
	id := h.create(1, 8)

	require.NoError(t, h.tbl.CondSend(ctx, id, []byte("full")))
	a := h.sender(id, "a")
	h.waitProducers(id, 1)
	b := h.sender(id, "b")
	h.waitProducers(id, 2)

	require.NoError(t, h.tbl.Release(id))
	assert.ErrorIs(t, a.wait(t), ErrCancelled)
	assert.ErrorIs(t, b.wait(t), ErrCancelled)
	assert.Zero(t, h.tbl.Usage().SlotsUsed)

	_, err := h.tbl.Stat(id)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReleaseReusesID(t *testing.T) {
	limits := smallLimits()
	limits.MaxMailboxes = 2
	h := newHarness(t, limits)

	id := h.create(1, 8)
	h.create(1, 8)
	r := h.receiver(id, 8)
	h.waitConsumers(id, 1)

	require.NoError(t, h.tbl.Release(id))
	require.ErrorIs(t, r.wait(t), ErrCancelled)

	again, err := h.tbl.Create(4, 4)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, Stat{ID: id, Capacity: 4, SlotSize: 4}, h.stat(id))
}

func TestBlockingOutsideProcessHalts(t *testing.T) {
	h := newHarness(t, smallLimits())
	id := h.create(1, 8)

	assert.Panics(t, func() {
		_, _ = h.tbl.Recv(context.Background(), id, make([]byte, 8))
	})
	require.Len(t, h.halted(), 1)

	// The section was left on the way out.
	require.NoError(t, h.tbl.CondSend(context.Background(), id, []byte("ok")))
	assert.True(t, h.cpu.InterruptsEnabled())
}

// gatedScheduler holds resumed processes until the gate opens.
type gatedScheduler struct {
	*process.Table
	gate chan struct{}
}

func (g *gatedScheduler) Block(ctx context.Context, pid process.PID) {
	g.Table.Block(ctx, pid)
	<-g.gate
}

func TestWokenProducerFindsPoolExhausted(t *testing.T) {
	limits := smallLimits()
	limits.MaxSlots = 2
	gate := make(chan struct{})
	h := newHarnessWith(t, limits, func(p *process.Table) Scheduler {
		return &gatedScheduler{Table: p, gate: gate}
	})
	ctx := context.Background()
	a := h.create(1, 8)
	b := h.create(2, 8)

	require.NoError(t, h.tbl.CondSend(ctx, a, []byte("a1")))
	s := h.sender(a, "a2")
	h.waitProducers(a, 1)

	// Receiving wakes the producer; another mailbox takes the freed slot
	// before it runs.
	require.NoError(t, h.tbl.CondSend(ctx, b, []byte("b1")))
	_, err := h.condRecv(a, 8)
	require.NoError(t, err)
	require.NoError(t, h.tbl.CondSend(ctx, b, []byte("b2")))
	close(gate)

	assert.ErrorIs(t, s.wait(t), ErrResourceExhausted)
	st := h.stat(a)
	assert.Zero(t, st.Producers)
	assert.Zero(t, st.Used)
	require.NoError(t, h.tbl.Check())

	// The producer token was handed back.
	_, err = h.condRecv(b, 8)
	require.NoError(t, err)
	require.NoError(t, h.tbl.CondSend(ctx, a, []byte("a3")))
}

func TestCondRecvDoesNotJumpWokenConsumer(t *testing.T) {
	gate := make(chan struct{})
	h := newHarnessWith(t, smallLimits(), func(p *process.Table) Scheduler {
		return &gatedScheduler{Table: p, gate: gate}
	})
	id := h.create(2, 8)

	r := h.receiver(id, 8)
	h.waitConsumers(id, 1)
	require.NoError(t, h.tbl.CondSend(context.Background(), id, []byte("mine")))

	// The message is buffered but promised to the woken consumer.
	_, err := h.condRecv(id, 8)
	assert.ErrorIs(t, err, ErrWouldBlock)
	close(gate)

	require.NoError(t, r.wait(t))
	assert.Equal(t, "mine", r.msg)
}

func TestManyProducersAndConsumers(t *testing.T) {
	for name, capacity := range map[string]int{"buffered": 3, "single": 1, "rendezvous": 0} {
		t.Run(name, func(t *testing.T) {
			limits := smallLimits()
			limits.MaxProc = 16
			h := newHarness(t, limits)
			id := h.create(capacity, 8)

			const producers, consumers, perProducer = 4, 3, 25
			total := producers * perProducer

			var mu sync.Mutex
			var got []int
			var want []int

			var procs []*result
			for c := 0; c < consumers; c++ {
				n := total / consumers
				if c < total%consumers {
					n++
				}
				procs = append(procs, h.spawn("consumer", func(ctx context.Context, _ *result) error {
					buf := make([]byte, 8)
					for i := 0; i < n; i++ {
						k, err := h.tbl.Recv(ctx, id, buf)
						if err != nil {
							return err
						}
						var v int
						if _, err := fmt.Sscan(string(buf[:k]), &v); err != nil {
							return err
						}
						mu.Lock()
						got = append(got, v)
						mu.Unlock()
					}
					return nil
				}))
			}
			for p := 0; p < producers; p++ {
				base := p * 1000
				for i := 0; i < perProducer; i++ {
					want = append(want, base+i)
				}
				procs = append(procs, h.spawn("producer", func(ctx context.Context, _ *result) error {
					for i := 0; i < perProducer; i++ {
						if err := h.tbl.Send(ctx, id, []byte(fmt.Sprint(base+i))); err != nil {
							return err
						}
					}
					return nil
				}))
			}

			for _, p := range procs {
				require.NoError(t, p.wait(t))
			}
			sort.Ints(got)
			sort.Ints(want)
			assert.Equal(t, want, got)

			st := h.stat(id)
			assert.Zero(t, st.Used)
			assert.Zero(t, st.Producers)
			assert.Zero(t, st.Consumers)
			assert.Zero(t, h.tbl.Usage().SlotsUsed)
			require.NoError(t, h.tbl.Check())
		})
	}
}
