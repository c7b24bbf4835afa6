package mailbox

import "fmt"

// Default limits.
const (
	DefaultMaxMailboxes = 2000
	DefaultMaxSlots     = 2500
	DefaultMaxMessage   = 150
	DefaultMaxProc      = 50
)

// Limits sizes the fixed pools of a Table.
type Limits struct {
	// MaxMailboxes is the number of mailbox descriptors.
	MaxMailboxes int
	// MaxSlots is the size of the message slot pool shared by all mailboxes.
	MaxSlots int
	// MaxMessage is the largest message, in bytes, any mailbox may carry.
	MaxMessage int
	// MaxProc is the number of waiting records, one per process slot.
	MaxProc int
}

func DefaultLimits() Limits {
	return Limits{
		MaxMailboxes: DefaultMaxMailboxes,
		MaxSlots:     DefaultMaxSlots,
		MaxMessage:   DefaultMaxMessage,
		MaxProc:      DefaultMaxProc,
	}
}

func (l Limits) validate() error {
	switch {
	case l.MaxMailboxes <= 0:
		return fmt.Errorf("invalid MaxMailboxes: %d", l.MaxMailboxes)
	case l.MaxSlots <= 0:
		return fmt.Errorf("invalid MaxSlots: %d", l.MaxSlots)
	case l.MaxMessage < 0:
		return fmt.Errorf("invalid MaxMessage: %d", l.MaxMessage)
	case l.MaxProc <= 0:
		return fmt.Errorf("invalid MaxProc: %d", l.MaxProc)
	}
	return nil
}
