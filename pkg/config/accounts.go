package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Account is one entry of accounts.json. Only the identifier matters to the
// watch core; the profile fields are displayed by the accounts subcommand.
type Account struct {
	ID      string         `json:"id"`
	Discord DiscordProfile `json:"discord"`
	Info    AccountInfo    `json:"info"`
}

// DiscordProfile is the account's chat identity.
type DiscordProfile struct {
	Tag string `json:"tag"`
}

// AccountInfo holds display-only profile fields.
type AccountInfo struct {
	Nickname       string `json:"nickname"`
	FullName       string `json:"full_name"`
	ProfilePicture string `json:"profile_picture"`
}

// LoadAccounts reads accounts.json. The file must be a JSON object with an
// "accounts" list.
func LoadAccounts(path string) ([]Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("accounts file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read accounts file: %s (%v)", path, err)
	}

	var doc struct {
		Accounts []Account `json:"accounts"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("invalid JSON in %s: %v", path, err)
		}
		return nil, fmt.Errorf("missing or invalid 'accounts' list in %s", path)
	}
	if doc.Accounts == nil {
		return nil, fmt.Errorf("missing or invalid 'accounts' list in %s", path)
	}
	return doc.Accounts, nil
}

// IsMonkey reports whether the account belongs to the monkey troop.
func IsMonkey(acct Account) bool {
	return strings.HasPrefix(acct.ID, "monkey-") || acct.ID == "monkey"
}

// PickMonkeys filters accounts down to monkeys. When limited is true only the
// first limit entries are returned; a negative limit selects none.
func PickMonkeys(accounts []Account, limit int, limited bool) []Account {
	monkeys := make([]Account, 0, len(accounts))
	for _, acct := range accounts {
		if IsMonkey(acct) {
			monkeys = append(monkeys, acct)
		}
	}
	if !limited {
		return monkeys
	}
	if limit < 0 {
		return nil
	}
	if limit > len(monkeys) {
		limit = len(monkeys)
	}
	return monkeys[:limit]
}

// AccountID returns the account's trimmed id, or a positional fallback for
// accounts that never got one.
func AccountID(acct Account, idx int) string {
	id := strings.TrimSpace(acct.ID)
	if id == "" {
		return fmt.Sprintf("monkey-%d", idx+1)
	}
	return id
}
