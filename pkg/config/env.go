package config

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Environment variable names recognized by the watch command.
const (
	EnvDebugPortBase      = "DEBUG_PORT_BASE"
	EnvDebugPortStep      = "DEBUG_PORT_STEP"
	EnvDefaultGuildID     = "MONKEY_DEFAULT_GUILD_ID"
	EnvDefaultChannelID   = "MONKEY_DEFAULT_CHANNEL_ID"
	EnvDefaultServerName  = "MONKEY_DEFAULT_SERVER_NAME"
	EnvDefaultChannelName = "MONKEY_DEFAULT_CHANNEL_NAME"
	EnvAdminUser          = "ADMIN_USER"
	EnvAdminUserLower     = "admin_user"
	EnvControlPort        = "MONKEY_CONTROL_PORT"
)

// ParseEnvInt parses a decimal environment value. Unset or empty values
// report ok=false with no error.
func ParseEnvInt(value, name string) (n int, ok bool, err error) {
	if value == "" {
		return 0, false, nil
	}
	if !isDigits(value) {
		return 0, false, fmt.Errorf("%s must be an integer", name)
	}
	n, err = strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer", name)
	}
	return n, true, nil
}

// ParseEnvStr trims an environment value.
func ParseEnvStr(value string) string {
	return strings.TrimSpace(value)
}

// AdminUserIDs splits the admin allow-list value on commas and whitespace.
func AdminUserIDs(raw string) []string {
	return strings.Fields(strings.ReplaceAll(raw, ",", " "))
}

// LookupAdminUser reads the admin allow-list from the environment, checking
// the lowercase spelling first.
func LookupAdminUser() string {
	if v := ParseEnvStr(os.Getenv(EnvAdminUserLower)); v != "" {
		return v
	}
	return ParseEnvStr(os.Getenv(EnvAdminUser))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// LoadDotenv reads KEY=VALUE lines from the given .env file into the process
// environment. Existing variables are not overridden. A missing file is not
// an error.
func LoadDotenv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == value[len(value)-1] && (value[0] == '\'' || value[0] == '"') {
			value = value[1 : len(value)-1]
		}
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

var envPlaceholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvValues substitutes ${VAR} placeholders from the environment.
// Unset variables are left as-is so a missing .env entry stays visible.
func ExpandEnvValues(value string) string {
	return envPlaceholder.ReplaceAllStringFunc(value, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}
