package process

import (
	"context"
	"sync/atomic"

	"github.com/rs/xid"
)

// State is the scheduling state of a process.
type State int32

const (
	StateRunning State = iota
	StateBlocked
	StateExited
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Func is the body of a process. Its return value is the exit status.
type Func func(ctx context.Context) int

// Proc is a single process. Each process runs on its own goroutine and parks
// on its wake channel while blocked.
type Proc struct {
	pid   PID
	name  string
	trace xid.ID
	state atomic.Int32

	// wake holds at most one pending wakeup, so an Unblock that lands before
	// the matching Block is not lost.
	wake chan struct{}
	done chan struct{}

	status int
	err    error
}

func newProc(pid PID, name string) *Proc {
	return &Proc{
		pid:   pid,
		name:  name,
		trace: xid.New(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (p *Proc) PID() PID {
	return p.pid
}

func (p *Proc) Name() string {
	return p.name
}

// TraceID is a globally unique id used to correlate log lines of one process
// across pid reuse.
func (p *Proc) TraceID() string {
	return p.trace.String()
}

func (p *Proc) State() State {
	return State(p.state.Load())
}

// Done is closed once the process has exited.
func (p *Proc) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits and returns its exit status. The error
// is non-nil if the process body panicked.
func (p *Proc) Wait() (int, error) {
	<-p.done
	return p.status, p.err
}
