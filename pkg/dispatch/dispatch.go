// Package dispatch routes operator commands to per-monkey command queues.
// One Dispatcher serves every control surface; responses are plain strings
// so the console, the control socket, and admin-authored Discord messages
// can all share it. "ok" means accepted with nothing to show.
package dispatch

import (
	"fmt"

	"monkeywatch/pkg/command"
	"monkeywatch/pkg/config"
	"monkeywatch/pkg/directory"
)

// Dispatcher parses command lines, resolves channel references against the
// directory, and fans the resolved commands out to the targeted queues. The
// queue set is fixed at construction; Dispatch is safe to call from any
// goroutine.
type Dispatcher struct {
	index          directory.Index
	defaultChannel config.DefaultChannel
	order          []string
	queues         map[string]*Queue
}

// NewDispatcher creates a dispatcher with one queue per monkey id. Broadcast
// commands fan out in the given id order.
func NewDispatcher(index directory.Index, defaultChannel config.DefaultChannel, monkeyIDs []string) *Dispatcher {
	d := &Dispatcher{
		index:          index,
		defaultChannel: defaultChannel,
		order:          append([]string(nil), monkeyIDs...),
		queues:         make(map[string]*Queue, len(monkeyIDs)),
	}
	for _, id := range monkeyIDs {
		d.queues[id] = &Queue{}
	}
	return d
}

// Queue returns the command queue for one monkey, or nil for unknown ids.
func (d *Dispatcher) Queue(accountID string) *Queue {
	return d.queues[accountID]
}

// Dispatch handles one raw command line from source. The returned string is
// what the caller shows: "" for blank input, "ok" for accepted commands, a
// listing for the query actions, and an error message otherwise.
func (d *Dispatcher) Dispatch(line, source string) string {
	cmd, ok, err := command.Parse(line)
	if err != nil {
		return err.Error()
	}
	if !ok {
		return ""
	}

	// help and servers answer before target validation so they work even
	// with a bad target prefix.
	switch cmd.Action {
	case command.ActionHelp:
		return command.Help()
	case command.ActionServers:
		return d.index.FormatServers()
	}

	var targets []string
	switch {
	case cmd.Broadcast:
		targets = d.order
	case d.queues[cmd.Target] != nil:
		targets = []string{cmd.Target}
	default:
		return fmt.Sprintf("unknown monkey: %s", cmd.Target)
	}

	switch cmd.Action {
	case command.ActionGoto:
		ref, err := d.index.Resolve(cmd.Text)
		if err != nil {
			return err.Error()
		}
		if ref.ChannelID == "" && ref.GuildID == "" {
			return "unable to resolve channel"
		}
		resolved := cmd
		resolved.GuildID = ref.GuildID
		resolved.ChannelID = ref.ChannelID
		resolved.ChannelName = ref.ChannelName
		resolved.Source = source
		d.fanOut(targets, resolved)
		return "ok"

	case command.ActionHome:
		if !d.defaultChannel.IsSet() {
			return "default channel not configured"
		}
		resolved := cmd
		resolved.Action = command.ActionGoto
		resolved.Text = "home"
		resolved.GuildID = d.defaultChannel.GuildID
		resolved.ChannelID = d.defaultChannel.ChannelID
		resolved.ChannelName = d.defaultChannel.Label
		resolved.Source = source
		d.fanOut(targets, resolved)
		return "ok"

	case command.ActionSay:
		resolved := cmd
		resolved.Source = source
		d.fanOut(targets, resolved)
		return "ok"

	default:
		return fmt.Sprintf("unhandled command: %s", cmd.Action)
	}
}

func (d *Dispatcher) fanOut(targets []string, cmd command.Command) {
	for _, id := range targets {
		d.queues[id].Put(cmd)
	}
}
