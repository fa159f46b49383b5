package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"monkeywatch/pkg/browser"
	"monkeywatch/pkg/config"
	"monkeywatch/pkg/control"
	"monkeywatch/pkg/directory"
	"monkeywatch/pkg/dispatch"
	"monkeywatch/pkg/events"
	"monkeywatch/pkg/watch"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// watcherJoinTimeout bounds how long shutdown waits for sessions still
// blocked on a browser call.
const watcherJoinTimeout = 2 * time.Second

// watchOptions carries the watch flags plus the set of flags given
// explicitly, so the TOML overlay and environment only fill the gaps.
type watchOptions struct {
	accounts      string
	servers       string
	count         int
	debugBase     int
	debugStep     int
	url           string
	attachTimeout float64
	injectTimeout float64
	pollInterval  float64
	startupDelay  float64
	debugInterval float64
	debug         bool

	changed map[string]bool
}

func newWatchCmd() *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Attach to the monkey browsers and mirror their messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			opts.changed = changedFlags(cmd,
				"count", "debug-base", "debug-step", "url",
				"attach-timeout", "inject-timeout", "poll-interval",
				"startup-delay", "debug-interval",
			)
			return runWatch(ctx, cmd.OutOrStdout(), os.Stdin, opts)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&opts.accounts, "accounts", "accounts.json", "path to the accounts file")
	fl.StringVar(&opts.servers, "servers", "servers.json", "path to the servers file")
	fl.IntVarP(&opts.count, "count", "n", 0, "watch only the first N monkey accounts")
	fl.IntVar(&opts.debugBase, "debug-base", config.DefaultDebugBase, "remote-debugging port of the first account")
	fl.IntVar(&opts.debugStep, "debug-step", config.DefaultDebugStep, "port increment between accounts")
	fl.StringVar(&opts.url, "url", config.DefaultURL, "Discord URL to open when no tab is active")
	fl.Float64Var(&opts.attachTimeout, "attach-timeout", config.DefaultAttachTimeout.Seconds(), "seconds to wait for each debugger")
	fl.Float64Var(&opts.injectTimeout, "inject-timeout", config.DefaultInjectTimeout.Seconds(), "seconds to keep retrying watcher injection")
	fl.Float64Var(&opts.pollInterval, "poll-interval", config.DefaultPollInterval.Seconds(), "seconds between message polls")
	fl.Float64Var(&opts.startupDelay, "startup-delay", config.DefaultStartupDelay.Seconds(), "seconds to wait before attaching")
	fl.Float64Var(&opts.debugInterval, "debug-interval", config.DefaultDebugInterval.Seconds(), "seconds between debug snapshots")
	fl.BoolVar(&opts.debug, "debug", false, "print diagnostic snapshots and verbose events")

	return cmd
}

// changedFlags records which of the named flags were set on the command line.
func changedFlags(cmd *cobra.Command, names ...string) map[string]bool {
	changed := make(map[string]bool, len(names))
	for _, name := range names {
		changed[name] = cmd.Flags().Changed(name)
	}
	return changed
}

// runWatch is the watch command body: load the roster and directory, build
// the control plane, start one session per monkey, then run the orchestrator
// loop until interrupted or every session has died.
func runWatch(ctx context.Context, w io.Writer, stdin io.Reader, opts *watchOptions) error {
	if err := config.LoadDotenv(".env"); err != nil {
		return err
	}

	console := control.NewConsole(w)

	accounts, err := config.LoadAccounts(opts.accounts)
	if err != nil {
		return err
	}
	monkeys := config.PickMonkeys(accounts, opts.count, opts.changed["count"])
	if len(monkeys) == 0 {
		console.Println("No monkey accounts found.")
		return nil
	}
	console.Printf("Found %d monkey account(s).", len(monkeys))

	servers := config.LoadServers(opts.servers)
	channelNames := config.ChannelNames(servers)

	cfg, err := buildWatchConfig(opts, servers, channelNames)
	if err != nil {
		return err
	}

	if cfg.DefaultChannel.IsSet() {
		console.Printf("Default channel: %s (%s/%s)",
			cfg.DefaultChannel.Label, cfg.DefaultChannel.GuildID, cfg.DefaultChannel.ChannelID)
	}
	if cfg.Debug {
		console.Printf("Using debug base %d with step %d.", cfg.DebugBase, cfg.DebugStep)
		console.Printf("Discord URL: %s", cfg.URL)
	}
	if cfg.StartupDelay > 0 {
		console.Printf("Waiting %.1fs before attaching...", cfg.StartupDelay.Seconds())
		if !sleepCtx(ctx, cfg.StartupDelay) {
			return nil
		}
	}
	if f, ok := stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		console.Println("Interactive console ready. Type help for commands.")
	}

	monkeyIDs := make([]string, len(monkeys))
	for idx, acct := range monkeys {
		monkeyIDs[idx] = config.AccountID(acct, idx)
	}

	index := directory.Build(servers)
	dispatcher := dispatch.NewDispatcher(index, cfg.DefaultChannel, monkeyIDs)
	dedupe := events.NewGlobalDedupe(cfg.DedupeLimit)
	orch := watch.NewOrchestrator(console, dispatcher.Dispatch, dedupe, cfg.AdminUserIDs, cfg.Debug)

	responder := control.NewResponder(dispatcher.Dispatch, console)
	control.StartStdinListener(ctx, stdin, responder)
	if _, err := control.StartServer(ctx, fmt.Sprintf("127.0.0.1:%d", cfg.ControlPort), responder); err != nil {
		if cfg.Debug {
			console.Printf("control server failed to start: %v", err)
		}
	}
	if err := control.WatchConfigFiles(ctx, []string{opts.accounts, opts.servers}, orch.Events); err != nil {
		if cfg.Debug {
			console.Printf("config watcher failed to start: %v", err)
		}
	}

	attacher := watch.DevToolsAttacher{Inner: browser.NewAttacher(browser.Options{
		URL:           cfg.URL,
		AttachTimeout: cfg.AttachTimeout,
		InjectTimeout: cfg.InjectTimeout,
		InjectScript:  browser.InjectScript(cfg.SnapshotLimit, cfg.MaxQueueSize),
		DebugScript:   browser.DebugScript(),
	})}

	var live atomic.Int64
	var wg sync.WaitGroup
	for idx := range monkeys {
		sess := watch.NewSession(watch.SessionConfig{
			AccountID:    monkeyIDs[idx],
			Index:        idx,
			Watch:        cfg,
			Attacher:     attacher,
			ChannelNames: channelNames,
			Commands:     dispatcher.Queue(monkeyIDs[idx]),
			Events:       orch.Events,
			Console:      console,
		})
		live.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer live.Add(-1)
			sess.Run(ctx)
		}()
	}

	orch.Loop(ctx, func() bool { return live.Load() > 0 })

	if ctx.Err() != nil {
		console.Println("Stopping message watchers...")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(watcherJoinTimeout):
	}
	return nil
}

// buildWatchConfig layers the tuning sources: TOML overlay, then environment,
// then defaults for whatever is still zero, then explicit flags on top.
func buildWatchConfig(opts *watchOptions, servers []config.Server, channelNames map[string]string) (config.WatchConfig, error) {
	cfg := config.WatchConfig{
		AccountsPath: opts.accounts,
		ServersPath:  opts.servers,
		Debug:        opts.debug,
	}

	overlay, err := config.LoadOverlay("monkeywatch.toml")
	if err != nil {
		return config.WatchConfig{}, err
	}
	cfg = overlay.Apply(cfg)

	envBase, ok, err := config.ParseEnvInt(os.Getenv(config.EnvDebugPortBase), config.EnvDebugPortBase)
	if err != nil {
		return config.WatchConfig{}, err
	}
	if ok && envBase != 0 {
		cfg.DebugBase = envBase
	}
	envStep, ok, err := config.ParseEnvInt(os.Getenv(config.EnvDebugPortStep), config.EnvDebugPortStep)
	if err != nil {
		return config.WatchConfig{}, err
	}
	if ok && envStep != 0 {
		cfg.DebugStep = envStep
	}
	envPort, ok, err := config.ParseEnvInt(os.Getenv(config.EnvControlPort), config.EnvControlPort)
	if err != nil {
		return config.WatchConfig{}, err
	}
	if ok && envPort != 0 {
		cfg.ControlPort = envPort
	}
	if raw := config.LookupAdminUser(); raw != "" {
		cfg.AdminUserIDs = config.AdminUserIDs(raw)
	}

	guildID := config.ParseEnvStr(os.Getenv(config.EnvDefaultGuildID))
	channelID := config.ParseEnvStr(os.Getenv(config.EnvDefaultChannelID))
	serverName := config.ParseEnvStr(os.Getenv(config.EnvDefaultServerName))
	channelName := config.ParseEnvStr(os.Getenv(config.EnvDefaultChannelName))
	if guildID == "" && channelID == "" && serverName == "" && channelName == "" {
		serverName = config.DefaultServerName
		channelName = config.DefaultChannelName
	}
	cfg.DefaultChannel = config.ResolveDefaultChannel(servers, channelNames, guildID, channelID, serverName, channelName)

	cfg = cfg.WithDefaults()

	// Flags beat everything, including the defaults: --startup-delay 0
	// really means no delay.
	if opts.changed["debug-base"] {
		cfg.DebugBase = opts.debugBase
	}
	if opts.changed["debug-step"] {
		cfg.DebugStep = opts.debugStep
	}
	if opts.changed["url"] {
		cfg.URL = opts.url
	}
	if opts.changed["attach-timeout"] {
		cfg.AttachTimeout = seconds(opts.attachTimeout)
	}
	if opts.changed["inject-timeout"] {
		cfg.InjectTimeout = seconds(opts.injectTimeout)
	}
	if opts.changed["poll-interval"] {
		cfg.PollInterval = seconds(opts.pollInterval)
	}
	if opts.changed["startup-delay"] {
		cfg.StartupDelay = seconds(opts.startupDelay)
	}
	if opts.changed["debug-interval"] {
		cfg.DebugInterval = seconds(opts.debugInterval)
	}

	if err := cfg.Validate(); err != nil {
		return config.WatchConfig{}, err
	}
	return cfg, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// sleepCtx waits for d or until ctx is done. Returns false when cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
