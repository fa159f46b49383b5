package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"monkeywatch/pkg/browser"
	"monkeywatch/pkg/command"
	"monkeywatch/pkg/config"
	"monkeywatch/pkg/control"
	"monkeywatch/pkg/dispatch"
	"monkeywatch/pkg/events"
)

// State represents a session's lifecycle phase.
type State string

// Session state constants.
const (
	StateConnecting State = "connecting" // Waiting for the debugger, selecting a tab.
	StateInjecting  State = "injecting"  // Installing the capture script.
	StateWatching   State = "watching"   // Polling commands and messages.
	StateNavigating State = "navigating" // Executing a goto command.
	StateSending    State = "sending"    // Executing a say command.
	StateTerminated State = "terminated" // Tab released, session done.
)

const (
	// verifyChannel floors: navigation confirmation never gives up in
	// under half a second and never polls faster than 100ms.
	minVerifyTimeout  = 500 * time.Millisecond
	minVerifyInterval = 100 * time.Millisecond
)

// SessionConfig wires one Session.
type SessionConfig struct {
	AccountID    string
	Index        int
	Watch        config.WatchConfig
	Attacher     Attacher
	ChannelNames map[string]string
	Commands     *dispatch.Queue
	Events       chan<- events.Event
	Console      *control.Console
}

// Session drives one monkey account's browser tab: it attaches to the
// debugger, installs the capture script, then alternates between executing
// queued commands and draining captured messages. Sessions never talk to
// each other; everything they report flows through the event channel or the
// console.
type Session struct {
	id           string
	address      string
	cfg          config.WatchConfig
	attacher     Attacher
	channelNames map[string]string
	commands     *dispatch.Queue
	events       chan<- events.Event
	console      *control.Console

	mu    sync.Mutex
	state State
}

// NewSession builds a session. The debugger address is derived from the
// account's position in the roster.
func NewSession(sc SessionConfig) *Session {
	return &Session{
		id:           sc.AccountID,
		address:      sc.Watch.DebugAddress(sc.Index),
		cfg:          sc.Watch,
		attacher:     sc.Attacher,
		channelNames: sc.ChannelNames,
		commands:     sc.Commands,
		events:       sc.Events,
		console:      sc.Console,
		state:        StateConnecting,
	}
}

// GetState returns the current session state.
func (s *Session) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Run drives the session until ctx is cancelled or attaching fails. Attach
// and inject failures terminate only this session; the tab is always
// released.
func (s *Session) Run(ctx context.Context) {
	defer s.setState(StateTerminated)

	s.console.Printf("%s: connecting to %s", s.id, s.address)

	tab, err := s.attacher.Attach(ctx, s.address)
	if err != nil {
		var attachErr *browser.AttachError
		switch {
		case errors.As(err, &attachErr):
			s.console.Printf("%s: debugger not reachable at %s (%s). Launch with DEBUG_PORT_BASE set to enable remote debugging.",
				s.id, s.address, attachErr.Reason)
		case errors.Is(err, browser.ErrNoDiscordTab):
			s.console.Printf("%s: failed to open a Discord tab", s.id)
		default:
			s.console.Printf("%s: failed to connect to %s (%v)", s.id, s.address, err)
		}
		return
	}
	defer tab.Release()

	if s.cfg.DefaultChannel.IsSet() {
		target := channelURL(s.cfg.DefaultChannel.GuildID, s.cfg.DefaultChannel.ChannelID)
		if !strings.Contains(tab.CurrentURL(ctx), target) {
			_ = tab.Navigate(ctx, target) // best effort
		}
	}

	tab.SetDebugFlags(ctx, s.cfg.Debug)

	s.setState(StateInjecting)
	ok, status := tab.Inject(ctx)
	if !ok {
		s.console.Printf("%s: failed to attach listener (%s)", s.id, status)
		return
	}
	if s.cfg.Debug {
		s.console.Printf("%s: listening for messages (%s)", s.id, status)
	}

	if s.cfg.DefaultChannel.IsSet() {
		s.emit(ctx, events.ChannelSwitchEvent{
			AccountID:   s.id,
			ChannelID:   s.cfg.DefaultChannel.ChannelID,
			ChannelName: s.cfg.DefaultChannel.Label,
		})
	}

	s.setState(StateWatching)

	var lastDebug time.Time
	if s.cfg.Debug {
		s.printSnapshot(ctx, tab)
		lastDebug = time.Now()
	}

	for ctx.Err() == nil {
		for _, cmd := range s.commands.Drain() {
			s.handleCommand(ctx, tab, cmd)
		}
		for _, raw := range tab.DrainEvents(ctx) {
			s.emit(ctx, events.FromRaw(s.id, raw, s.channelNames))
		}
		if s.cfg.Debug && s.cfg.DebugInterval > 0 && time.Since(lastDebug) >= s.cfg.DebugInterval {
			s.printSnapshot(ctx, tab)
			lastDebug = time.Now()
		}
		if !sleep(ctx, s.cfg.PollInterval) {
			return
		}
	}
}

func (s *Session) handleCommand(ctx context.Context, tab Tab, cmd command.Command) {
	switch cmd.Action {
	case command.ActionGoto:
		s.runGoto(ctx, tab, cmd)
	case command.ActionSay:
		s.runSay(ctx, tab, cmd)
	default:
		s.systemf(ctx, "[cmd] %s: unknown command %s", s.id, cmd.Action)
	}
}

// runGoto navigates to the command's channel, reinstalls the capture script
// (navigation tears down the injected state), and confirms the switch.
// Failures are reported as important system events; the session keeps
// running either way.
func (s *Session) runGoto(ctx context.Context, tab Tab, cmd command.Command) {
	if cmd.GuildID == "" || cmd.ChannelID == "" {
		s.systemf(ctx, "[cmd] %s: missing channel id for goto", s.id)
		return
	}

	s.setState(StateNavigating)
	defer s.setState(StateWatching)

	if err := tab.Navigate(ctx, channelURL(cmd.GuildID, cmd.ChannelID)); err != nil {
		s.systemf(ctx, "[cmd] %s: goto failed (%v)", s.id, err)
		return
	}
	tab.SetDebugFlags(ctx, s.cfg.Debug)
	ok, status := tab.Inject(ctx)
	if !ok {
		s.systemf(ctx, "[cmd] %s: goto inject failed (%s)", s.id, status)
		return
	}

	verified, currentPath := s.verifyChannel(ctx, tab, cmd.GuildID, cmd.ChannelID)
	if verified {
		s.emit(ctx, events.ChannelSwitchEvent{
			AccountID:   s.id,
			ChannelID:   cmd.ChannelID,
			ChannelName: cmd.ChannelName,
		})
		return
	}
	suffix := ""
	if currentPath != "" {
		suffix = fmt.Sprintf(" (current path: %s)", currentPath)
	}
	s.systemf(ctx, "[cmd] %s: goto not confirmed for %s/%s%s", s.id, cmd.GuildID, cmd.ChannelID, suffix)
}

// runSay types the command's text into the channel textbox. Empty text is
// dropped silently.
func (s *Session) runSay(ctx context.Context, tab Tab, cmd command.Command) {
	if cmd.Text == "" {
		return
	}

	s.setState(StateSending)
	defer s.setState(StateWatching)

	if err := tab.WaitVisibleTextbox(ctx); err != nil {
		s.systemf(ctx, "[cmd] %s: say failed (%v)", s.id, err)
		return
	}
	if err := tab.SubmitText(ctx, cmd.Text); err != nil {
		s.systemf(ctx, "[cmd] %s: say failed (%v)", s.id, err)
	}
}

// verifyChannel polls the tab until the location path or the watcher's
// channel key matches the target. Discord rewrites the URL while routing,
// so one confirming read is not trusted; two consecutive hits are required.
func (s *Session) verifyChannel(ctx context.Context, tab Tab, guildID, channelID string) (bool, string) {
	targetPrefix := fmt.Sprintf("/channels/%s/%s", guildID, channelID)
	targetKey := guildID + ":" + channelID

	timeout := s.cfg.AttachTimeout
	if timeout < minVerifyTimeout {
		timeout = minVerifyTimeout
	}
	interval := s.cfg.PollInterval
	if interval < minVerifyInterval {
		interval = minVerifyInterval
	}

	deadline := time.Now().Add(timeout)
	stableHits := 0
	lastPath := ""
	for time.Now().Before(deadline) {
		path := tab.CurrentPath(ctx)
		if path != "" {
			lastPath = path
		}
		key := tab.ChannelKey(ctx)
		if (path != "" && strings.HasPrefix(path, targetPrefix)) || (key != "" && key == targetKey) {
			stableHits++
			if stableHits >= 2 {
				return true, lastPath
			}
		} else {
			stableHits = 0
		}
		if !sleep(ctx, interval) {
			return false, lastPath
		}
	}
	return false, lastPath
}

func (s *Session) printSnapshot(ctx context.Context, tab Tab) {
	s.console.Printf("%s: debug %s", s.id, tab.Snapshot(ctx))
}

// systemf emits an important system event describing a command failure.
func (s *Session) systemf(ctx context.Context, format string, args ...any) {
	s.emit(ctx, events.SystemEvent{
		AccountID: s.id,
		Content:   fmt.Sprintf(format, args...),
		Important: true,
	})
}

// emit queues an event for the orchestrator, giving up on cancellation so a
// stopped orchestrator never wedges the session.
func (s *Session) emit(ctx context.Context, ev events.Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}
