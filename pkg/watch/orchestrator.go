package watch

import (
	"context"
	"slices"
	"strings"
	"time"

	"monkeywatch/pkg/control"
	"monkeywatch/pkg/events"
)

const (
	// adminPrefix marks chat messages routed as commands. Matched without
	// a word boundary, so "monkeysay hi" routes too.
	adminPrefix = "monkeys"

	// eventBuffer bounds the session-to-orchestrator channel. Sessions
	// block on a full buffer until cancelled rather than dropping events.
	eventBuffer = 256

	// aliveCheckInterval is how often the loop re-checks for live sessions
	// while no events arrive.
	aliveCheckInterval = 500 * time.Millisecond
)

// DispatchFunc routes one command line and returns the response to show.
type DispatchFunc func(line, source string) string

// Orchestrator consumes session events from every watcher: it deduplicates
// messages across accounts, routes admin-authored chat commands into the
// dispatcher, tracks which channel each account watches, and prints the
// operator-facing lines. It is single-threaded; only Loop touches its maps.
type Orchestrator struct {
	console  *control.Console
	dispatch DispatchFunc
	dedupe   *events.GlobalDedupe
	adminIDs []string
	debug    bool

	// Events receives everything the sessions and auxiliary watchers emit.
	Events chan events.Event

	lastChannel map[string]string
}

// NewOrchestrator builds the event loop state. adminIDs is the allow-list
// for in-chat command routing.
func NewOrchestrator(console *control.Console, dispatch DispatchFunc, dedupe *events.GlobalDedupe, adminIDs []string, debug bool) *Orchestrator {
	return &Orchestrator{
		console:     console,
		dispatch:    dispatch,
		dedupe:      dedupe,
		adminIDs:    slices.Clone(adminIDs),
		debug:       debug,
		Events:      make(chan events.Event, eventBuffer),
		lastChannel: make(map[string]string),
	}
}

// Loop handles events until ctx is cancelled or alive reports no live
// sessions. On natural death the pending events are drained first; on
// cancellation the loop returns immediately.
func (o *Orchestrator) Loop(ctx context.Context, alive func() bool) {
	ticker := time.NewTicker(aliveCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case ev := <-o.Events:
			o.handleEvent(ev)
		case <-ticker.C:
			if alive() {
				continue
			}
			for {
				select {
				case ev := <-o.Events:
					o.handleEvent(ev)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) handleEvent(ev events.Event) {
	switch ev := ev.(type) {
	case events.SystemEvent:
		if !o.debug && !ev.Important {
			return
		}
		o.console.Println(events.Format(ev))

	case events.ChannelSwitchEvent:
		label := ev.ChannelName
		if label == "" {
			label = ev.ChannelID
		}
		if label == "" {
			return
		}
		key := ev.ChannelID
		if key == "" {
			key = label
		}
		o.lastChannel[ev.AccountID] = key
		o.console.Println(events.Format(ev))

	case events.MessageEvent:
		o.handleMessage(ev)
	}
}

// handleMessage applies the cross-account pipeline in a fixed order: dedupe
// first, then admin routing (new messages only), then channel-change
// synthesis for every sighting, and printing only for new messages.
func (o *Orchestrator) handleMessage(ev events.MessageEvent) {
	isNew := o.dedupe.Allow(ev.MessageID)

	if isNew && ev.AuthorID != "" && slices.Contains(o.adminIDs, ev.AuthorID) {
		o.routeAdminCommand(ev)
	}

	// A message seen in a channel the account was not known to watch means
	// the account switched there, whichever account reported it first.
	channelKey := ev.ChannelID
	if channelKey == "" {
		channelKey = ev.ChannelName
	}
	if channelKey != "" && o.lastChannel[ev.AccountID] != channelKey {
		o.lastChannel[ev.AccountID] = channelKey
		label := ev.ChannelName
		if label == "" {
			label = ev.ChannelID
		}
		if label != "" {
			o.console.Println(events.Format(events.ChannelSwitchEvent{
				AccountID:   ev.AccountID,
				ChannelID:   ev.ChannelID,
				ChannelName: ev.ChannelName,
			}))
		}
	}

	if !isNew {
		return
	}
	o.console.Println(events.Format(ev))
}

// routeAdminCommand forwards "monkeys ..." chat lines from allow-listed
// authors into the dispatcher. The optional colon after the prefix is
// stripped; responses other than "ok" are printed.
func (o *Orchestrator) routeAdminCommand(ev events.MessageEvent) {
	raw := strings.TrimSpace(ev.Content)
	if !strings.HasPrefix(strings.ToLower(raw), adminPrefix) {
		return
	}
	remainder := strings.TrimSpace(raw[len(adminPrefix):])
	if strings.HasPrefix(remainder, ":") {
		remainder = strings.TrimSpace(remainder[1:])
	}
	if remainder == "" {
		return
	}
	response := o.dispatch(remainder, "discord:"+ev.AuthorID)
	if response != "" && response != "ok" {
		o.console.Println(response)
	}
}
