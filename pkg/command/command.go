// Package command parses operator lines from the console and the control
// socket into structured commands. Parsing is pure: channel resolution and
// routing live in the dispatch package.
package command

import (
	"fmt"
	"strings"
)

// Action identifies what a command asks a monkey to do.
type Action string

const (
	ActionGoto    Action = "goto"
	ActionSay     Action = "say"
	ActionHome    Action = "home"
	ActionHelp    Action = "help"
	ActionServers Action = "servers"
)

// Command is one parsed operator instruction. Broadcast commands address
// every monkey; otherwise Target names a single account id. The channel
// fields stay empty until the dispatcher resolves a goto argument.
type Command struct {
	Target      string
	Broadcast   bool
	Action      Action
	Text        string
	GuildID     string
	ChannelID   string
	ChannelName string
	Source      string
}

// Parse splits a raw line into a Command. Blank lines return ok=false with a
// nil error. Lines that name a target but no action, or an action the
// grammar does not know, return ok=false with the reason.
func Parse(line string) (Command, bool, error) {
	cleaned := strings.TrimSpace(line)
	if cleaned == "" {
		return Command{}, false, nil
	}
	tokens := strings.Fields(cleaned)

	cmd := Command{Broadcast: true}
	if strings.HasPrefix(tokens[0], "@") {
		candidate := strings.TrimRight(strings.TrimSpace(tokens[0][1:]), ":,")
		if candidate != "all" && candidate != "*" {
			cmd.Target = candidate
			cmd.Broadcast = false
		}
		tokens = tokens[1:]
	}

	if len(tokens) == 0 {
		return Command{}, false, fmt.Errorf("missing command (try: goto <channel> or say <text>)")
	}

	action := strings.ToLower(tokens[0])
	rest := strings.Join(tokens[1:], " ")

	switch action {
	case "go":
		if strings.ToLower(rest) == "home" {
			cmd.Action = ActionHome
			return cmd, true, nil
		}
		return Command{}, false, fmt.Errorf("unknown command: go")
	case "help", "?":
		cmd.Action = ActionHelp
		return cmd, true, nil
	case "servers", "server", "list":
		cmd.Action = ActionServers
		return cmd, true, nil
	case "home":
		cmd.Action = ActionHome
		return cmd, true, nil
	case "goto":
		if rest == "" {
			return Command{}, false, fmt.Errorf("goto requires a channel name or id")
		}
		cmd.Action = ActionGoto
		cmd.Text = rest
		return cmd, true, nil
	case "say":
		if rest == "" {
			return Command{}, false, fmt.Errorf("say requires message text")
		}
		cmd.Action = ActionSay
		cmd.Text = rest
		return cmd, true, nil
	default:
		return Command{}, false, fmt.Errorf("unknown command: %s", action)
	}
}

// Help returns the one-line grammar summary printed for help and for parse
// errors on the console.
func Help() string {
	return "commands: [@monkey-id] goto <channel|server:channel|server_index:channel_index> " +
		"| [@monkey-id] say <text> | go home | servers"
}
