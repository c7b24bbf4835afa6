package machine

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Device is a kind of device attached to the machine.
type Device int

const (
	DevClock Device = iota
	DevTerm
	DevDisk
	numDevices
)

// Default unit counts.
const (
	DefaultTermUnits = 4
	DefaultDiskUnits = 2
)

func (d Device) String() string {
	switch d {
	case DevClock:
		return "clock"
	case DevTerm:
		return "term"
	case DevDisk:
		return "disk"
	default:
		return fmt.Sprintf("device(%d)", int(d))
	}
}

// Interrupt returns the interrupt line the device raises.
func (d Device) Interrupt() Interrupt {
	switch d {
	case DevClock:
		return IntClock
	case DevTerm:
		return IntTerm
	case DevDisk:
		return IntDisk
	default:
		return NumInterrupts
	}
}

// Units returns how many units of dev are attached.
func (m *Machine) Units(dev Device) int {
	if dev < 0 || dev >= numDevices {
		return 0
	}
	return len(m.status[dev])
}

// DeviceInput reads the status register of one device unit. The clock
// device reports the time since boot in microseconds.
func (m *Machine) DeviceInput(dev Device, unit int) (uint32, error) {
	reg, err := m.register(dev, unit)
	if err != nil {
		return 0, err
	}
	if dev == DevClock {
		return uint32(m.Now() / time.Microsecond), nil
	}
	return reg.Load(), nil
}

// SetDeviceStatus writes the status register of one device unit. The clock
// register is read-only.
func (m *Machine) SetDeviceStatus(dev Device, unit int, status uint32) error {
	if dev == DevClock {
		return fmt.Errorf("%v status register is read-only", dev)
	}
	reg, err := m.register(dev, unit)
	if err != nil {
		return err
	}
	reg.Store(status)
	return nil
}

// RaiseDevice latches status into the unit's register and raises its
// interrupt. For the clock the status is ignored.
func (m *Machine) RaiseDevice(dev Device, unit int, status uint32) error {
	if dev != DevClock {
		if err := m.SetDeviceStatus(dev, unit, status); err != nil {
			return err
		}
	} else if _, err := m.register(dev, unit); err != nil {
		return err
	}
	m.Raise(dev.Interrupt(), unit)
	return nil
}

func (m *Machine) register(dev Device, unit int) (*atomic.Uint32, error) {
	if dev < 0 || dev >= numDevices {
		return nil, fmt.Errorf("unknown device %v", dev)
	}
	if unit < 0 || unit >= len(m.status[dev]) {
		return nil, fmt.Errorf("%v unit %d out of range [0,%d)", dev, unit, len(m.status[dev]))
	}
	return &m.status[dev][unit], nil
}
