package mailbox

import (
	"context"
	"fmt"

	"github.com/hedisam/gombox/machine"
	"github.com/hedisam/gombox/process"
)

// section is a held critical section: the table lock plus masked
// interrupts. leave restores the PSR that was current on entry.
type section struct {
	t    *Table
	prev uint32
}

// enter halts unless the caller runs in kernel mode, then takes the table
// lock and masks interrupts.
func (t *Table) enter(op string) section {
	if t.cpu.PSR()&machine.PsrCurMode == 0 {
		t.cpu.Halt(1, fmt.Errorf("%s: called while not in kernel mode", op))
	}
	t.mu.Lock()
	s := section{t: t}
	s.mask()
	return s
}

func (s *section) mask() {
	s.prev = s.t.cpu.PSR()
	s.t.cpu.SetPSR(s.prev &^ machine.PsrCurInt)
}

func (s *section) leave() {
	s.t.cpu.SetPSR(s.prev)
	s.t.mu.Unlock()
}

// park leaves the section, suspends pid and re-enters once it is resumed.
func (s *section) park(ctx context.Context, pid process.PID) {
	s.leave()
	s.t.sched.Block(ctx, pid)
	s.t.mu.Lock()
	s.mask()
}
