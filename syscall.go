package gombox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hedisam/gombox/machine"
)

// MaxSyscalls is the size of the syscall dispatch table.
const MaxSyscalls = 50

// SysArgs is the argument block of a syscall trap. Handlers read their
// inputs from and write their results back into the Arg fields.
type SysArgs struct {
	Number int
	Arg1   any
	Arg2   any
	Arg3   any
	Arg4   any
	Arg5   any
}

// SyscallHandler services one syscall number.
type SyscallHandler interface {
	ServeSyscall(ctx context.Context, args *SysArgs)
}

// HandlerFunc adapts a function to a SyscallHandler.
type HandlerFunc func(ctx context.Context, args *SysArgs)

func (f HandlerFunc) ServeSyscall(ctx context.Context, args *SysArgs) {
	f(ctx, args)
}

// SyscallTable maps syscall numbers to handlers. Unassigned numbers log the
// call and halt the machine.
type SyscallTable struct {
	mu       sync.RWMutex
	handlers [MaxSyscalls]SyscallHandler
	machine  *machine.Machine
	log      *slog.Logger
}

func newSyscallTable(m *machine.Machine, log *slog.Logger) *SyscallTable {
	t := &SyscallTable{machine: m, log: log}
	unimplemented := HandlerFunc(t.unimplemented)
	for i := range t.handlers {
		t.handlers[i] = unimplemented
	}
	return t
}

func (t *SyscallTable) unimplemented(_ context.Context, args *SysArgs) {
	t.log.Error("unimplemented syscall", "number", args.Number, "psr", fmt.Sprintf("%#x", t.machine.PSR()))
	t.machine.Halt(1, fmt.Errorf("unimplemented syscall %d", args.Number))
}

// Register installs h for syscall number n. A nil handler restores the
// unimplemented default.
func (t *SyscallTable) Register(n int, h SyscallHandler) error {
	if n < 0 || n >= MaxSyscalls {
		return fmt.Errorf("register syscall %d: out of range [0,%d): %w", n, MaxSyscalls, ErrInvalidArgument)
	}
	if h == nil {
		h = HandlerFunc(t.unimplemented)
	}
	t.mu.Lock()
	t.handlers[n] = h
	t.mu.Unlock()
	return nil
}

// Dispatch runs the handler for args.Number. An out of range number halts
// the machine.
func (t *SyscallTable) Dispatch(ctx context.Context, args *SysArgs) {
	if args == nil {
		t.machine.Halt(1, fmt.Errorf("syscall with nil argument block"))
	}
	if args.Number < 0 || args.Number >= MaxSyscalls {
		t.machine.Halt(1, fmt.Errorf("syscall number %d out of range [0,%d)", args.Number, MaxSyscalls))
	}
	t.mu.RLock()
	h := t.handlers[args.Number]
	t.mu.RUnlock()
	h.ServeSyscall(ctx, args)
}

func (k *Kernel) syscallHandler(ctx context.Context, _ machine.Interrupt, arg any) {
	args, ok := arg.(*SysArgs)
	if !ok {
		k.machine.Halt(1, fmt.Errorf("syscall trap with argument block of type %T", arg))
	}
	k.sys.Dispatch(ctx, args)
}
