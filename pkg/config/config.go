// Package config loads the account and server directories, environment
// overrides, and the optional TOML tuning overlay that together describe a
// watch run. Loaded values are immutable once handed to the rest of the
// program.
package config

import (
	"fmt"
	"time"
)

// Defaults for watch tuning knobs. Flags, the TOML overlay, and environment
// variables may override them.
const (
	DefaultDebugBase     = 9222
	DefaultDebugStep     = 1
	DefaultAttachTimeout = 6 * time.Second
	DefaultInjectTimeout = 30 * time.Second
	DefaultPollInterval  = 600 * time.Millisecond
	DefaultStartupDelay  = 2 * time.Second
	DefaultDebugInterval = 5 * time.Second
	DefaultSnapshotLimit = 10
	DefaultURL           = "https://discord.com/app"
	DefaultMaxQueueSize  = 500
	DefaultDedupeLimit   = 5000
	DefaultServerName    = "Home Tree"
	DefaultChannelName   = "test-jungle"
	DefaultControlPort   = 7331
	DefaultAdminUser     = "298001965697204224"
)

// WatchConfig holds everything a watch run needs. Construct it from flags,
// the overlay, and the environment, then call WithDefaults and Validate.
type WatchConfig struct {
	AccountsPath string
	ServersPath  string

	DebugBase     int
	DebugStep     int
	URL           string
	AttachTimeout time.Duration
	InjectTimeout time.Duration
	PollInterval  time.Duration
	StartupDelay  time.Duration
	Debug         bool
	DebugInterval time.Duration
	SnapshotLimit int
	MaxQueueSize  int
	DedupeLimit   int

	DefaultChannel DefaultChannel
	ControlPort    int
	AdminUserIDs   []string
}

// WithDefaults returns a copy with zero-valued tuning knobs filled in.
func (c WatchConfig) WithDefaults() WatchConfig {
	out := c
	if out.DebugBase == 0 {
		out.DebugBase = DefaultDebugBase
	}
	if out.DebugStep == 0 {
		out.DebugStep = DefaultDebugStep
	}
	if out.URL == "" {
		out.URL = DefaultURL
	}
	if out.AttachTimeout == 0 {
		out.AttachTimeout = DefaultAttachTimeout
	}
	if out.InjectTimeout == 0 {
		out.InjectTimeout = DefaultInjectTimeout
	}
	if out.PollInterval == 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.StartupDelay == 0 {
		out.StartupDelay = DefaultStartupDelay
	}
	if out.DebugInterval == 0 {
		out.DebugInterval = DefaultDebugInterval
	}
	if out.SnapshotLimit == 0 {
		out.SnapshotLimit = DefaultSnapshotLimit
	}
	if out.MaxQueueSize == 0 {
		out.MaxQueueSize = DefaultMaxQueueSize
	}
	if out.DedupeLimit == 0 {
		out.DedupeLimit = DefaultDedupeLimit
	}
	if out.ControlPort == 0 {
		out.ControlPort = DefaultControlPort
	}
	if len(out.AdminUserIDs) == 0 {
		out.AdminUserIDs = []string{DefaultAdminUser}
	}
	return out
}

// Validate rejects values the watch loop cannot run with.
func (c WatchConfig) Validate() error {
	if c.DebugStep < 1 {
		return fmt.Errorf("debug step must be >= 1")
	}
	if c.DebugInterval <= 0 {
		return fmt.Errorf("debug interval must be > 0")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be > 0")
	}
	return nil
}

// DebugAddress returns the remote-debugging address for the idx-th account.
func (c WatchConfig) DebugAddress(idx int) string {
	port := c.DebugBase + idx*c.DebugStep
	return fmt.Sprintf("127.0.0.1:%d", port)
}
