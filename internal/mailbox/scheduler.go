package mailbox

import (
	"context"

	"github.com/hedisam/gombox/process"
)

// Scheduler is the capability the table suspends and resumes callers with.
// It knows nothing about mailboxes.
type Scheduler interface {
	// Current returns the identity of the process calling with ctx.
	Current(ctx context.Context) (process.PID, bool)
	// Block suspends the calling process until Unblock(pid) is called. An
	// Unblock that arrives before Block must not be lost.
	Block(ctx context.Context, pid process.PID)
	// Unblock marks pid runnable.
	Unblock(pid process.PID)
}

// CPU is the slice of the host machine the critical section needs.
type CPU interface {
	PSR() uint32
	SetPSR(v uint32)
	Halt(code int, err error)
}
