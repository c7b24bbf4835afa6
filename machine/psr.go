package machine

// Processor status register bits.
const (
	// PsrCurMode is set while the processor runs in kernel mode.
	PsrCurMode uint32 = 0x1
	// PsrCurInt is set while interrupt delivery is enabled.
	PsrCurInt uint32 = 0x2
	// PsrPrevMode and PsrPrevInt hold the mode and interrupt bits saved on
	// the last trap.
	PsrPrevMode uint32 = 0x4
	PsrPrevInt  uint32 = 0x8

	psrMask = PsrCurMode | PsrCurInt | PsrPrevMode | PsrPrevInt
)

// PSR returns the current processor status register.
func (m *Machine) PSR() uint32 {
	return m.psr.Load()
}

// SetPSR replaces the processor status register. A value with bits outside
// the defined set halts the machine.
func (m *Machine) SetPSR(v uint32) {
	if v&^psrMask != 0 {
		m.Halt(1, errorf("invalid PSR value %#x", v))
	}
	m.psr.Store(v)
	if v&PsrCurInt != 0 {
		select {
		case m.intOn <- struct{}{}:
		default:
		}
	}
}

// KernelMode reports whether the processor is in kernel mode.
func (m *Machine) KernelMode() bool {
	return m.PSR()&PsrCurMode != 0
}

// InterruptsEnabled reports whether interrupt delivery is enabled.
func (m *Machine) InterruptsEnabled() bool {
	return m.PSR()&PsrCurInt != 0
}
