package main

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"monkeywatch/pkg/config"
)

const watchAccountsFixture = `{"accounts": [{"id": "monkey-1", "discord": {"tag": "Monkey One#0001"}, "info": {}}]}`

// freePort reserves an ephemeral port and releases it for the test to use.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestWatchCmdMissingAccountsFile(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"watch", "--accounts", filepath.Join(t.TempDir(), "nope.json")})

	err := root.Execute()
	if err == nil {
		t.Fatal("expected error for missing accounts file")
	}
	if !strings.Contains(err.Error(), "accounts file not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWatchCmdNoMonkeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	writeFile(t, path, `{"accounts": [{"id": "keeper", "discord": {}, "info": {}}]}`)

	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"watch", "--accounts", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buf.String(); got != "No monkey accounts found.\n" {
		t.Errorf("output = %q, want %q", got, "No monkey accounts found.\n")
	}
}

func TestWatchCmdCountZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	writeFile(t, path, watchAccountsFixture)

	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"watch", "--accounts", path, "-n", "0"})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buf.String(); got != "No monkey accounts found.\n" {
		t.Errorf("output = %q, want %q", got, "No monkey accounts found.\n")
	}
}

func TestBuildWatchConfigPrecedence(t *testing.T) {
	t.Setenv(config.EnvDebugPortBase, "9300")
	t.Setenv(config.EnvDebugPortStep, "3")
	t.Setenv(config.EnvControlPort, "7400")
	t.Setenv(config.EnvAdminUserLower, "11, 22")
	t.Setenv(config.EnvDefaultGuildID, "")
	t.Setenv(config.EnvDefaultChannelID, "")
	t.Setenv(config.EnvDefaultServerName, "")
	t.Setenv(config.EnvDefaultChannelName, "")

	servers := []config.Server{{
		ServerID: "100",
		Name:     "Home Tree",
		Channels: []config.Channel{{ID: "101", Name: "test-jungle"}},
	}}
	names := config.ChannelNames(servers)

	opts := &watchOptions{
		accounts:     "accounts.json",
		servers:      "servers.json",
		debugBase:    9500,
		startupDelay: 0,
		changed: map[string]bool{
			"debug-base":    true,
			"startup-delay": true,
		},
	}

	cfg, err := buildWatchConfig(opts, servers, names)
	if err != nil {
		t.Fatalf("buildWatchConfig: %v", err)
	}

	if cfg.DebugBase != 9500 {
		t.Errorf("DebugBase = %d, want flag value 9500", cfg.DebugBase)
	}
	if cfg.DebugStep != 3 {
		t.Errorf("DebugStep = %d, want env value 3", cfg.DebugStep)
	}
	if cfg.ControlPort != 7400 {
		t.Errorf("ControlPort = %d, want env value 7400", cfg.ControlPort)
	}
	if got := strings.Join(cfg.AdminUserIDs, ","); got != "11,22" {
		t.Errorf("AdminUserIDs = %q, want %q", got, "11,22")
	}
	if cfg.StartupDelay != 0 {
		t.Errorf("StartupDelay = %v, want explicit zero to survive defaulting", cfg.StartupDelay)
	}
	if cfg.AttachTimeout != config.DefaultAttachTimeout {
		t.Errorf("AttachTimeout = %v, want default %v", cfg.AttachTimeout, config.DefaultAttachTimeout)
	}
	want := config.DefaultChannel{GuildID: "100", ChannelID: "101", Label: "test-jungle"}
	if cfg.DefaultChannel != want {
		t.Errorf("DefaultChannel = %+v, want %+v", cfg.DefaultChannel, want)
	}
}

func TestBuildWatchConfigRejectsBadEnv(t *testing.T) {
	t.Setenv(config.EnvDebugPortBase, "lots")

	opts := &watchOptions{changed: map[string]bool{}}
	_, err := buildWatchConfig(opts, nil, nil)
	if err == nil {
		t.Fatal("expected error for non-numeric DEBUG_PORT_BASE")
	}
	if !strings.Contains(err.Error(), "DEBUG_PORT_BASE must be an integer") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuildWatchConfigRejectsBadStep(t *testing.T) {
	opts := &watchOptions{
		debugStep: 0,
		changed:   map[string]bool{"debug-step": true},
	}
	_, err := buildWatchConfig(opts, nil, nil)
	if err == nil {
		t.Fatal("expected validation error for zero debug step")
	}
	if !strings.Contains(err.Error(), "debug step must be >= 1") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunWatchUnreachableDebugger(t *testing.T) {
	dir := t.TempDir()
	accountsPath := filepath.Join(dir, "accounts.json")
	serversPath := filepath.Join(dir, "servers.json")
	writeFile(t, accountsPath, watchAccountsFixture)
	writeFile(t, serversPath, serversFixture)

	debugPort := freePort(t)
	t.Setenv(config.EnvControlPort, strconv.Itoa(freePort(t)))

	opts := &watchOptions{
		accounts:      accountsPath,
		servers:       serversPath,
		debugBase:     debugPort,
		attachTimeout: 0.05,
		pollInterval:  0.01,
		startupDelay:  0,
		changed: map[string]bool{
			"debug-base":     true,
			"attach-timeout": true,
			"poll-interval":  true,
			"startup-delay":  true,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var buf bytes.Buffer
	if err := runWatch(ctx, &buf, strings.NewReader(""), opts); err != nil {
		t.Fatalf("runWatch: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("runWatch did not finish on its own")
	}

	out := buf.String()
	for _, want := range []string{
		"Found 1 monkey account(s).",
		"Default channel: test-jungle (100/101)",
		"monkey-1: connecting to 127.0.0.1:" + strconv.Itoa(debugPort),
		"debugger not reachable at",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Stopping message watchers...") {
		t.Errorf("natural shutdown should not print the interrupt banner:\n%s", out)
	}
}

func TestRunWatchCancelDuringStartupDelay(t *testing.T) {
	dir := t.TempDir()
	accountsPath := filepath.Join(dir, "accounts.json")
	serversPath := filepath.Join(dir, "servers.json")
	writeFile(t, accountsPath, watchAccountsFixture)
	writeFile(t, serversPath, serversFixture)

	opts := &watchOptions{
		accounts:     accountsPath,
		servers:      serversPath,
		startupDelay: 5,
		changed:      map[string]bool{"startup-delay": true},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	var buf bytes.Buffer
	start := time.Now()
	if err := runWatch(ctx, &buf, strings.NewReader(""), opts); err != nil {
		t.Fatalf("runWatch: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancel during startup delay took %v", elapsed)
	}

	out := buf.String()
	if !strings.Contains(out, "Waiting 5.0s before attaching...") {
		t.Errorf("expected startup delay banner, got:\n%s", out)
	}
	if strings.Contains(out, "connecting to") {
		t.Errorf("no session should start after cancellation:\n%s", out)
	}
}
