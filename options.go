package gombox

import (
	"log/slog"
	"time"

	"github.com/hedisam/gombox/internal/mailbox"
)

// DefaultClockInterval is the minimum time between two posts to the clock
// mailbox.
const DefaultClockInterval = 100 * time.Millisecond

// Limits sizes the kernel's fixed pools.
type Limits = mailbox.Limits

// DefaultLimits returns the standard pool sizes.
func DefaultLimits() Limits {
	return mailbox.DefaultLimits()
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLimits overrides the pool sizes.
func WithLimits(l Limits) Option {
	return func(k *Kernel) {
		k.limits = l
	}
}

// WithLogger sets the kernel console logger.
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) {
		if l != nil {
			k.log = l
		}
	}
}

// WithClockInterval overrides DefaultClockInterval.
func WithClockInterval(d time.Duration) Option {
	return func(k *Kernel) {
		if d > 0 {
			k.clockInterval = d
		}
	}
}
