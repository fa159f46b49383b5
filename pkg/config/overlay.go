package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Overlay is the optional monkeywatch.toml tuning file. Pointer fields
// distinguish "absent" from "zero"; absent fields leave the config alone.
// Timeouts and intervals are given in seconds.
type Overlay struct {
	DebugBase     *int     `toml:"debug_base"`
	DebugStep     *int     `toml:"debug_step"`
	URL           *string  `toml:"url"`
	AttachTimeout *float64 `toml:"attach_timeout"`
	InjectTimeout *float64 `toml:"inject_timeout"`
	PollInterval  *float64 `toml:"poll_interval"`
	StartupDelay  *float64 `toml:"startup_delay"`
	DebugInterval *float64 `toml:"debug_interval"`
	SnapshotLimit *int     `toml:"snapshot_limit"`
	MaxQueueSize  *int     `toml:"max_queue_size"`
	DedupeLimit   *int     `toml:"dedupe_limit"`
	ControlPort   *int     `toml:"control_port"`
	AdminUsers    []string `toml:"admin_users"`
}

// LoadOverlay reads a monkeywatch.toml file. A missing file yields an empty
// overlay; a malformed one is an error.
func LoadOverlay(path string) (Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Overlay{}, nil
		}
		return Overlay{}, fmt.Errorf("read %s: %w", path, err)
	}
	var o Overlay
	if err := toml.Unmarshal(data, &o); err != nil {
		return Overlay{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return o, nil
}

// Apply copies present overlay fields onto the config.
func (o Overlay) Apply(c WatchConfig) WatchConfig {
	if o.DebugBase != nil {
		c.DebugBase = *o.DebugBase
	}
	if o.DebugStep != nil {
		c.DebugStep = *o.DebugStep
	}
	if o.URL != nil {
		c.URL = *o.URL
	}
	if o.AttachTimeout != nil {
		c.AttachTimeout = secondsToDuration(*o.AttachTimeout)
	}
	if o.InjectTimeout != nil {
		c.InjectTimeout = secondsToDuration(*o.InjectTimeout)
	}
	if o.PollInterval != nil {
		c.PollInterval = secondsToDuration(*o.PollInterval)
	}
	if o.StartupDelay != nil {
		c.StartupDelay = secondsToDuration(*o.StartupDelay)
	}
	if o.DebugInterval != nil {
		c.DebugInterval = secondsToDuration(*o.DebugInterval)
	}
	if o.SnapshotLimit != nil {
		c.SnapshotLimit = *o.SnapshotLimit
	}
	if o.MaxQueueSize != nil {
		c.MaxQueueSize = *o.MaxQueueSize
	}
	if o.DedupeLimit != nil {
		c.DedupeLimit = *o.DedupeLimit
	}
	if o.ControlPort != nil {
		c.ControlPort = *o.ControlPort
	}
	if len(o.AdminUsers) > 0 {
		c.AdminUserIDs = append([]string(nil), o.AdminUsers...)
	}
	return c
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
