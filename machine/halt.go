package machine

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// HaltFunc is invoked when the machine halts. The default exits the process
// with the halt code.
type HaltFunc func(code int, err error)

// HaltError is the panic value raised by Halt when the halt handler returns.
type HaltError struct {
	Code int
	Err  error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("machine halted (code %d): %v", e.Code, e.Err)
}

func (e *HaltError) Unwrap() error {
	return e.Err
}

func defaultHalt(code int, _ error) {
	os.Exit(code)
}

func errorf(format string, args ...any) error {
	return errors.Errorf(format, args...)
}

// Halt stops the whole machine. It never returns: if the configured halt
// handler returns, Halt panics with a *HaltError.
func (m *Machine) Halt(code int, err error) {
	if err == nil {
		err = errors.New("halt requested")
	}
	herr := &HaltError{Code: code, Err: errors.WithStack(err)}
	m.halted.Store(true)
	m.log.Error("machine halted", "code", code, "reason", err.Error())
	m.log.Debug("halt stack", "trace", fmt.Sprintf("%+v", herr.Err))
	m.halt(code, herr)
	panic(herr)
}

// Halted reports whether Halt has been called.
func (m *Machine) Halted() bool {
	return m.halted.Load()
}
