package camera

import (
	"fmt"
	"time"
)

// Driver names a Source implementation.
type Driver string

const (
	// DriverCommand runs an external still-capture tool per frame.
	DriverCommand Driver = "command"
	// DriverDir replays frames from a directory.
	DriverDir Driver = "dir"
)

// Config selects and configures a driver.
type Config struct {
	// Driver is "command" (default) or "dir".
	Driver Driver
	// Command is the argv for DriverCommand. Empty uses DefaultCommand.
	Command []string
	// Dir is the frame directory for DriverDir.
	Dir string
	// Timeout bounds one capture for DriverCommand.
	Timeout time.Duration
}

// New opens the configured driver.
func New(cfg Config) (Source, error) {
	switch cfg.Driver {
	case "", DriverCommand:
		return NewCommandSource(cfg.Command, cfg.Timeout)
	case DriverDir:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("camera driver %q requires a dir", DriverDir)
		}
		return NewDirSource(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown camera driver %q (must be command or dir)", cfg.Driver)
	}
}
