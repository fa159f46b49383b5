package main

import (
	"fmt"

	"monkeywatch/internal/version"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root monkeywatch command with all subcommands
// attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "monkeywatch",
		Short:         "Watch monkey Discord accounts over Chrome remote debugging",
		Long:          "monkeywatch attaches to already-running Chrome windows through their\nremote-debugging ports, watches the Discord tab of every monkey account,\nand mirrors their messages to one console. Operators steer the monkeys\nwith goto/say commands over stdin, a TCP control socket, or admin chat.",
		Version:       fmt.Sprintf("monkeywatch %s", version.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newWatchCmd(),
		newAccountsCmd(),
		newServersCmd(),
		newSendCmd(),
	)

	return cmd
}
