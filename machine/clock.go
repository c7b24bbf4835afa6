package machine

import (
	"sync"
	"time"
)

// Clock is a monotonic time source measured from machine boot.
type Clock interface {
	Now() time.Duration
}

type hostClock struct {
	boot time.Time
}

func newHostClock() *hostClock {
	return &hostClock{boot: time.Now()}
}

func (c *hostClock) Now() time.Duration {
	return time.Since(c.boot)
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Duration) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Now returns the machine's monotonic time since boot.
func (m *Machine) Now() time.Duration {
	return m.clock.Now()
}

// Ticks returns the number of clock interrupts raised by the ticker.
func (m *Machine) Ticks() uint64 {
	return m.ticks.Load()
}

func (m *Machine) runTicker(done <-chan struct{}, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			m.ticks.Add(1)
			m.Raise(IntClock, 0)
		}
	}
}
