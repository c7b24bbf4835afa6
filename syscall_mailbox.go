package gombox

import (
	"context"
	"fmt"

	"github.com/hedisam/gombox/machine"
)

// Mailbox syscall numbers.
const (
	SysMboxCreate = iota + 10
	SysMboxRelease
	SysMboxSend
	SysMboxReceive
	SysMboxCondSend
	SysMboxCondReceive
	SysWaitDevice
)

// RegisterMailboxSyscalls binds the mailbox operations to their syscall
// numbers. Every handler stores its error, or nil, in Arg4.
//
//	SysMboxCreate       Arg1 capacity, Arg2 slot size     -> Arg1 id
//	SysMboxRelease      Arg1 id
//	SysMboxSend         Arg1 id, Arg2 []byte
//	SysMboxCondSend     Arg1 id, Arg2 []byte
//	SysMboxReceive      Arg1 id, Arg2 []byte buffer       -> Arg2 length
//	SysMboxCondReceive  Arg1 id, Arg2 []byte buffer       -> Arg2 length
//	SysWaitDevice       Arg1 machine.Device, Arg2 unit    -> Arg2 status
func (k *Kernel) RegisterMailboxSyscalls() error {
	table := map[int]HandlerFunc{
		SysMboxCreate:      k.sysCreate,
		SysMboxRelease:     k.sysRelease,
		SysMboxSend:        k.sysSend(false),
		SysMboxCondSend:    k.sysSend(true),
		SysMboxReceive:     k.sysRecv(false),
		SysMboxCondReceive: k.sysRecv(true),
		SysWaitDevice:      k.sysWaitDevice,
	}
	for n, h := range table {
		if err := k.sys.Register(n, h); err != nil {
			return err
		}
	}
	return nil
}

func intArg(v any, name string) (int, error) {
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("%s: want int, got %T: %w", name, v, ErrInvalidArgument)
	}
	return n, nil
}

func bytesArg(v any, name string) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%s: want []byte, got %T: %w", name, v, ErrInvalidArgument)
	}
}

func (k *Kernel) sysCreate(_ context.Context, args *SysArgs) {
	capacity, err := intArg(args.Arg1, "capacity")
	if err != nil {
		args.Arg1, args.Arg4 = -1, err
		return
	}
	size, err := intArg(args.Arg2, "slot size")
	if err != nil {
		args.Arg1, args.Arg4 = -1, err
		return
	}
	id, err := k.Create(capacity, size)
	args.Arg1, args.Arg4 = id, err
}

func (k *Kernel) sysRelease(_ context.Context, args *SysArgs) {
	id, err := intArg(args.Arg1, "mailbox id")
	if err != nil {
		args.Arg4 = err
		return
	}
	args.Arg4 = k.Release(id)
}

func (k *Kernel) sysSend(cond bool) HandlerFunc {
	return func(ctx context.Context, args *SysArgs) {
		id, err := intArg(args.Arg1, "mailbox id")
		if err != nil {
			args.Arg4 = err
			return
		}
		msg, err := bytesArg(args.Arg2, "message")
		if err != nil {
			args.Arg4 = err
			return
		}
		if cond {
			args.Arg4 = k.CondSend(ctx, id, msg)
		} else {
			args.Arg4 = k.Send(ctx, id, msg)
		}
	}
}

func (k *Kernel) sysRecv(cond bool) HandlerFunc {
	return func(ctx context.Context, args *SysArgs) {
		id, err := intArg(args.Arg1, "mailbox id")
		if err != nil {
			args.Arg2, args.Arg4 = -1, err
			return
		}
		buf, err := bytesArg(args.Arg2, "buffer")
		if err != nil {
			args.Arg2, args.Arg4 = -1, err
			return
		}
		var n int
		if cond {
			n, err = k.CondRecv(ctx, id, buf)
		} else {
			n, err = k.Recv(ctx, id, buf)
		}
		if err != nil {
			n = -1
		}
		args.Arg2, args.Arg4 = n, err
	}
}

func (k *Kernel) sysWaitDevice(ctx context.Context, args *SysArgs) {
	dev, ok := args.Arg1.(machine.Device)
	if !ok {
		args.Arg4 = fmt.Errorf("device: want machine.Device, got %T: %w", args.Arg1, ErrInvalidArgument)
		return
	}
	unit, err := intArg(args.Arg2, "unit")
	if err != nil {
		args.Arg4 = err
		return
	}
	status, err := k.WaitDevice(ctx, dev, unit)
	args.Arg2, args.Arg4 = status, err
}
