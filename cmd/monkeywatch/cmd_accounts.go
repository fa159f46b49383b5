package main

import (
	"fmt"
	"io"
	"strings"

	"monkeywatch/pkg/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// newAccountsCmd creates the "monkeywatch accounts" subcommand.
func newAccountsCmd() *cobra.Command {
	var (
		accountsPath string
		all          bool
	)
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Show the configured monkey accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAccounts(cmd.OutOrStdout(), accountsPath, all)
		},
	}

	cmd.Flags().StringVar(&accountsPath, "accounts", "accounts.json", "path to the accounts file")
	cmd.Flags().BoolVar(&all, "all", false, "include accounts that are not monkeys")

	return cmd
}

// runAccounts renders one card per account.
func runAccounts(w io.Writer, accountsPath string, all bool) error {
	accounts, err := config.LoadAccounts(accountsPath)
	if err != nil {
		return err
	}

	shown := accounts
	if !all {
		shown = config.PickMonkeys(accounts, 0, false)
	}
	if len(shown) == 0 {
		fmt.Fprintln(w, "No accounts to show.")
		return nil
	}

	fmt.Fprintln(w, renderAccountCards(shown))
	return nil
}

// renderAccountCards stacks a bordered card per account, id on top and the
// known profile fields underneath.
func renderAccountCards(accounts []config.Account) string {
	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(40).
		Padding(0, 1)

	titleStyle := lipgloss.NewStyle().
		Bold(true)

	labelStyle := lipgloss.NewStyle().
		Faint(true)

	cards := make([]string, 0, len(accounts))
	for idx, acct := range accounts {
		title := config.AccountID(acct, idx)
		if !config.IsMonkey(acct) {
			title += " (not a monkey)"
		}

		lines := []string{titleStyle.Render(title)}
		for _, field := range []struct {
			label string
			value string
		}{
			{"discord", acct.Discord.Tag},
			{"nickname", acct.Info.Nickname},
			{"name", acct.Info.FullName},
			{"picture", acct.Info.ProfilePicture},
		} {
			if field.value == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render(field.label+":"), field.value))
		}

		cards = append(cards, cardStyle.Render(strings.Join(lines, "\n")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}
