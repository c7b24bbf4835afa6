package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hedisam/gombox/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	positive := func(field string, v int) {
		if v <= 0 {
			errs = append(errs, ValidationError{Field: field, Value: v, Message: "must be positive"})
		}
	}
	nonNegative := func(field string, v int) {
		if v < 0 {
			errs = append(errs, ValidationError{Field: field, Value: v, Message: "must not be negative"})
		}
	}

	positive("kernel.max_mailboxes", c.Kernel.MaxMailboxes)
	positive("kernel.max_slots", c.Kernel.MaxSlots)
	positive("kernel.max_message", c.Kernel.MaxMessage)
	positive("kernel.max_proc", c.Kernel.MaxProc)
	if c.Kernel.ClockInterval <= 0 {
		errs = append(errs, ValidationError{Field: "kernel.clock_interval", Value: c.Kernel.ClockInterval, Message: "must be positive"})
	}

	nonNegative("devices.terminals", c.Devices.Terminals)
	nonNegative("devices.disks", c.Devices.Disks)
	if reserved := 1 + c.Devices.Terminals + c.Devices.Disks; reserved > c.Kernel.MaxMailboxes {
		errs = append(errs, ValidationError{Field: "devices", Value: reserved, Message: "reserved mailboxes exceed kernel.max_mailboxes"})
	}

	if c.Machine.Tick < 0 {
		errs = append(errs, ValidationError{Field: "machine.tick", Value: c.Machine.Tick, Message: "must not be negative"})
	}

	if !slices.Contains(logging.ValidLevels(), strings.ToUpper(c.Logging.Level)) {
		errs = append(errs, ValidationError{Field: "logging.level", Value: c.Logging.Level, Message: "must be one of " + strings.Join(logging.ValidLevels(), ", ")})
	}
	if f := strings.ToLower(c.Logging.Format); f != logging.FormatText && f != logging.FormatJSON {
		errs = append(errs, ValidationError{Field: "logging.format", Value: c.Logging.Format, Message: "must be text or json"})
	}

	positive("sim.producers", c.Sim.Producers)
	positive("sim.consumers", c.Sim.Consumers)
	nonNegative("sim.messages", c.Sim.Messages)
	nonNegative("sim.capacity", c.Sim.Capacity)
	nonNegative("sim.term_events", c.Sim.TermEvents)
	nonNegative("sim.clock_waits", c.Sim.ClockWaits)
	if c.Sim.MessageSize < 8 || c.Sim.MessageSize > c.Kernel.MaxMessage {
		errs = append(errs, ValidationError{Field: "sim.message_size", Value: c.Sim.MessageSize, Message: fmt.Sprintf("must be in [8,%d]", c.Kernel.MaxMessage)})
	}
	if c.Sim.Timeout <= 0 {
		errs = append(errs, ValidationError{Field: "sim.timeout", Value: c.Sim.Timeout, Message: "must be positive"})
	}
	if workers := c.Sim.Producers + c.Sim.Consumers + c.Devices.Terminals + 2; workers > c.Kernel.MaxProc {
		errs = append(errs, ValidationError{Field: "sim", Value: workers, Message: "workload needs more processes than kernel.max_proc"})
	}
	return errs
}
