package main

import (
	"fmt"
	"io"

	"monkeywatch/pkg/config"
	"monkeywatch/pkg/directory"

	"github.com/spf13/cobra"
)

// newServersCmd creates the "monkeywatch servers" subcommand.
func newServersCmd() *cobra.Command {
	var serversPath string
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Print the channel directory without starting watchers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServers(cmd.OutOrStdout(), serversPath)
		},
	}

	cmd.Flags().StringVar(&serversPath, "servers", "servers.json", "path to the servers file")

	return cmd
}

// runServers prints the numbered server and channel listing. The .env file
// is loaded first so ${VAR} placeholders in the servers file resolve.
func runServers(w io.Writer, serversPath string) error {
	if err := config.LoadDotenv(".env"); err != nil {
		return err
	}
	servers := config.LoadServers(serversPath)
	index := directory.Build(servers)
	fmt.Fprintln(w, index.FormatServers())
	return nil
}
