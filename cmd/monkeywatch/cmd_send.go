package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"monkeywatch/pkg/config"

	"github.com/spf13/cobra"
)

// newSendCmd creates the "monkeywatch send" subcommand.
func newSendCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "send <command...>",
		Short: "Send one command to a running watch over the control socket",
		Long: `Connects to the control socket of a running "monkeywatch watch",
sends the command line, and prints the response.

Examples:
  monkeywatch send servers
  monkeywatch send goto general
  monkeywatch send @monkey-2 say hello from the console`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), cmd.OutOrStdout(), host, port, cmd.Flags().Changed("port"), args)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "control server host")
	cmd.Flags().IntVar(&port, "port", config.DefaultControlPort, "control server port")

	return cmd
}

// runSend dials the control server, sends one command line, and prints the
// single-line response. Without an explicit --port the MONKEY_CONTROL_PORT
// variable picks the port, matching the watch side.
func runSend(ctx context.Context, w io.Writer, host string, port int, portSet bool, args []string) error {
	if err := config.LoadDotenv(".env"); err != nil {
		return err
	}
	if !portSet {
		envPort, ok, err := config.ParseEnvInt(os.Getenv(config.EnvControlPort), config.EnvControlPort)
		if err != nil {
			return err
		}
		if ok && envPort != 0 {
			port = envPort
		}
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("dial control server: %w", err)
	}
	defer conn.Close()

	line := strings.Join(args, " ")
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return fmt.Errorf("send command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		return fmt.Errorf("no response received")
	}
	fmt.Fprintln(w, scanner.Text())
	return nil
}
