package gombox

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/hedisam/gombox/machine"
)

const (
	// ClockMailbox is the reserved id of the clock mailbox.
	ClockMailbox = 0

	statusSize = 4
)

// deviceLayout maps device units onto reserved mailbox ids: the clock at 0,
// then the terminal units, then the disk units.
type deviceLayout struct {
	terms int
	disks int
}

func newDeviceLayout(terms, disks int) deviceLayout {
	return deviceLayout{terms: terms, disks: disks}
}

func (l deviceLayout) count() int {
	return 1 + l.terms + l.disks
}

func (l deviceLayout) mailbox(dev machine.Device, unit int) (int, bool) {
	switch dev {
	case machine.DevClock:
		if unit == 0 {
			return ClockMailbox, true
		}
	case machine.DevTerm:
		if unit >= 0 && unit < l.terms {
			return 1 + unit, true
		}
	case machine.DevDisk:
		if unit >= 0 && unit < l.disks {
			return 1 + l.terms + unit, true
		}
	}
	return -1, false
}

// DeviceMailbox returns the reserved mailbox id of a device unit.
func (k *Kernel) DeviceMailbox(dev machine.Device, unit int) (int, bool) {
	return k.devices.mailbox(dev, unit)
}

func (k *Kernel) createReserved() error {
	for want := 0; want < k.devices.count(); want++ {
		id, err := k.boxes.Create(1, statusSize)
		if err != nil {
			return fmt.Errorf("gombox: create reserved mailbox %d: %w", want, err)
		}
		if id != want {
			return fmt.Errorf("gombox: reserved mailbox got id %d, want %d", id, want)
		}
	}
	return nil
}

func (k *Kernel) installVectors() {
	k.machine.SetHandler(machine.IntClock, k.clockHandler)
	k.machine.SetHandler(machine.IntTerm, k.deviceHandler(machine.DevTerm))
	k.machine.SetHandler(machine.IntDisk, k.deviceHandler(machine.DevDisk))
	k.machine.SetHandler(machine.IntSyscall, k.syscallHandler)
}

// WaitDevice blocks the calling process until the device unit posts a
// status word. An unsupported device or unit halts the machine.
func (k *Kernel) WaitDevice(ctx context.Context, dev machine.Device, unit int) (uint32, error) {
	id, ok := k.devices.mailbox(dev, unit)
	if !ok {
		k.machine.Halt(1, fmt.Errorf("WaitDevice: invalid device %v unit %d", dev, unit))
	}
	var buf [statusSize]byte
	n, err := k.boxes.Recv(ctx, id, buf[:])
	if err != nil {
		return 0, err
	}
	if n != statusSize {
		return 0, fmt.Errorf("WaitDevice: %v unit %d: short status of %d bytes: %w", dev, unit, n, ErrInvalidArgument)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// PostDeviceStatus posts status to the device unit's reserved mailbox
// without blocking. A status posted while the previous one is still unread
// is dropped with ErrWouldBlock.
func (k *Kernel) PostDeviceStatus(dev machine.Device, unit int, status uint32) error {
	id, ok := k.devices.mailbox(dev, unit)
	if !ok {
		return fmt.Errorf("post status: invalid device %v unit %d: %w", dev, unit, ErrInvalidArgument)
	}
	var buf [statusSize]byte
	binary.LittleEndian.PutUint32(buf[:], status)
	return k.boxes.CondSend(context.Background(), id, buf[:])
}

// CheckIO reports whether any process is blocked waiting on a device.
func (k *Kernel) CheckIO() bool {
	for id := 0; id < k.devices.count(); id++ {
		st, err := k.boxes.Stat(id)
		if err == nil && st.Consumers > 0 {
			return true
		}
	}
	return false
}

func (k *Kernel) clockHandler(_ context.Context, _ machine.Interrupt, _ any) {
	now := k.machine.Now()
	if now-time.Duration(k.lastClock.Load()) < k.clockInterval {
		return
	}
	status, err := k.machine.DeviceInput(machine.DevClock, 0)
	if err != nil {
		k.log.Warn("clock status unavailable", "err", err)
		return
	}
	// A dropped tick does not restart the interval.
	if k.post(machine.DevClock, 0, status) {
		k.lastClock.Store(int64(now))
	}
}

func (k *Kernel) deviceHandler(dev machine.Device) machine.Handler {
	return func(_ context.Context, _ machine.Interrupt, arg any) {
		unit, ok := arg.(int)
		if !ok {
			k.log.Warn("device interrupt without unit", "device", dev, "arg", arg)
			return
		}
		status, err := k.machine.DeviceInput(dev, unit)
		if err != nil {
			k.log.Warn("device status unavailable", "device", dev, "unit", unit, "err", err)
			return
		}
		k.post(dev, unit, status)
	}
}

func (k *Kernel) post(dev machine.Device, unit int, status uint32) bool {
	if err := k.PostDeviceStatus(dev, unit, status); err != nil {
		k.log.Debug("device status dropped", "device", dev, "unit", unit, "status", status, "err", err)
		return false
	}
	return true
}
