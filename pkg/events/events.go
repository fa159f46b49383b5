// Package events defines the items that flow from worker sessions to the
// orchestrator over the shared watch queue, plus the formatting rules for
// printing them on the console.
package events

import (
	"fmt"
	"strings"
)

// Event is one item on the shared watch queue.
type Event interface {
	Kind() string
}

// MessageEvent is one chat message drained from a watched tab.
type MessageEvent struct {
	AccountID   string
	MessageID   string
	ChannelID   string
	ChannelName string
	GuildID     string
	AuthorName  string
	AuthorID    string
	Content     string
	Timestamp   string
	Source      string
}

// Kind reports the queue item type.
func (MessageEvent) Kind() string { return "message" }

// SystemEvent carries status text from a worker or the control plane.
// Important events always print; the rest only print in debug mode.
type SystemEvent struct {
	AccountID string
	Content   string
	Important bool
}

// Kind reports the queue item type.
func (SystemEvent) Kind() string { return "system" }

// ChannelSwitchEvent records that an account is now watching a channel.
type ChannelSwitchEvent struct {
	AccountID   string
	ChannelID   string
	ChannelName string
}

// Kind reports the queue item type.
func (ChannelSwitchEvent) Kind() string { return "channel-switch" }

// Format renders any event for the console.
func Format(e Event) string {
	switch ev := e.(type) {
	case MessageEvent:
		return FormatMessage(ev)
	case ChannelSwitchEvent:
		return FormatChannelSwitch(ev)
	case SystemEvent:
		return FormatSystem(ev)
	default:
		return ""
	}
}

// FormatMessage renders a message as "channel author: content". Newlines in
// the content are escaped so one message stays on one console line.
func FormatMessage(e MessageEvent) string {
	content := e.Content
	if content == "" {
		content = "<no text>"
	}
	content = strings.ReplaceAll(content, "\n", "\\n")
	channelLabel := pick(e.ChannelName, e.ChannelID, "unknown-channel")
	authorLabel := pick(e.AuthorName, e.AuthorID, "unknown-user")
	return fmt.Sprintf("%s %s: %s", channelLabel, authorLabel, content)
}

// FormatChannelSwitch renders "account watching: channel".
func FormatChannelSwitch(e ChannelSwitchEvent) string {
	channelLabel := pick(e.ChannelName, e.ChannelID, "unknown-channel")
	return fmt.Sprintf("%s watching: %s", e.AccountID, channelLabel)
}

// FormatSystem renders the content as-is.
func FormatSystem(e SystemEvent) string {
	return e.Content
}

func pick(primary, secondary, fallback string) string {
	if primary != "" {
		return primary
	}
	if secondary != "" {
		return secondary
	}
	return fallback
}
