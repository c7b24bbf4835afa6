// Package config loads kernel and simulator settings through viper.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/hedisam/gombox/internal/mailbox"
	"github.com/hedisam/gombox/machine"
)

// Config is the complete gombox configuration.
type Config struct {
	Kernel  KernelConfig  `mapstructure:"kernel"`
	Devices DevicesConfig `mapstructure:"devices"`
	Machine MachineConfig `mapstructure:"machine"`
	Logging LoggingConfig `mapstructure:"logging"`
	Sim     SimConfig     `mapstructure:"sim"`
}

// KernelConfig sizes the kernel pools.
type KernelConfig struct {
	MaxMailboxes  int           `mapstructure:"max_mailboxes"`
	MaxSlots      int           `mapstructure:"max_slots"`
	MaxMessage    int           `mapstructure:"max_message"`
	MaxProc       int           `mapstructure:"max_proc"`
	ClockInterval time.Duration `mapstructure:"clock_interval"`
}

// DevicesConfig sets the attached device units.
type DevicesConfig struct {
	Terminals int `mapstructure:"terminals"`
	Disks     int `mapstructure:"disks"`
}

// MachineConfig controls the simulated host.
type MachineConfig struct {
	Tick time.Duration `mapstructure:"tick"`
}

// LoggingConfig controls console output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SimConfig is the workload of `gombox run`.
type SimConfig struct {
	Producers   int           `mapstructure:"producers"`
	Consumers   int           `mapstructure:"consumers"`
	Messages    int           `mapstructure:"messages"`
	Capacity    int           `mapstructure:"capacity"`
	MessageSize int           `mapstructure:"message_size"`
	TermEvents  int           `mapstructure:"term_events"`
	ClockWaits  int           `mapstructure:"clock_waits"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Kernel: KernelConfig{
			MaxMailboxes:  mailbox.DefaultMaxMailboxes,
			MaxSlots:      mailbox.DefaultMaxSlots,
			MaxMessage:    mailbox.DefaultMaxMessage,
			MaxProc:       mailbox.DefaultMaxProc,
			ClockInterval: 100 * time.Millisecond,
		},
		Devices: DevicesConfig{
			Terminals: machine.DefaultTermUnits,
			Disks:     machine.DefaultDiskUnits,
		},
		Machine: MachineConfig{
			Tick: machine.DefaultTick,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Sim: SimConfig{
			Producers:   3,
			Consumers:   2,
			Messages:    30,
			Capacity:    5,
			MessageSize: 32,
			TermEvents:  3,
			ClockWaits:  2,
			Timeout:     30 * time.Second,
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("kernel.max_mailboxes", d.Kernel.MaxMailboxes)
	v.SetDefault("kernel.max_slots", d.Kernel.MaxSlots)
	v.SetDefault("kernel.max_message", d.Kernel.MaxMessage)
	v.SetDefault("kernel.max_proc", d.Kernel.MaxProc)
	v.SetDefault("kernel.clock_interval", d.Kernel.ClockInterval)

	v.SetDefault("devices.terminals", d.Devices.Terminals)
	v.SetDefault("devices.disks", d.Devices.Disks)

	v.SetDefault("machine.tick", d.Machine.Tick)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("sim.producers", d.Sim.Producers)
	v.SetDefault("sim.consumers", d.Sim.Consumers)
	v.SetDefault("sim.messages", d.Sim.Messages)
	v.SetDefault("sim.capacity", d.Sim.Capacity)
	v.SetDefault("sim.message_size", d.Sim.MessageSize)
	v.SetDefault("sim.term_events", d.Sim.TermEvents)
	v.SetDefault("sim.clock_waits", d.Sim.ClockWaits)
	v.SetDefault("sim.timeout", d.Sim.Timeout)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}

// Limits returns the kernel pool sizes.
func (c *Config) Limits() mailbox.Limits {
	return mailbox.Limits{
		MaxMailboxes: c.Kernel.MaxMailboxes,
		MaxSlots:     c.Kernel.MaxSlots,
		MaxMessage:   c.Kernel.MaxMessage,
		MaxProc:      c.Kernel.MaxProc,
	}
}
