// Package integration provides end-to-end tests that drive a real control
// socket, dispatcher, orchestrator, and session over TCP, exercising the
// command→queue→session→event→console path without a browser.
package integration_test

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"monkeywatch/pkg/config"
	"monkeywatch/pkg/control"
	"monkeywatch/pkg/directory"
	"monkeywatch/pkg/dispatch"
	"monkeywatch/pkg/events"
	"monkeywatch/pkg/watch"
)

// syncBuffer lets tests read console output that goroutines still write to.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// pageTab fakes one Discord tab: Navigate moves the page path, pushed raw
// payloads come back from DrainEvents, SubmitText records sends.
type pageTab struct {
	mu        sync.Mutex
	path      string
	navigated []string
	queue     [][]byte
	submitted []string
}

func newPageTab(path string) *pageTab {
	return &pageTab{path: path}
}

func (p *pageTab) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	p.path = strings.TrimPrefix(url, "https://discord.com")
	return nil
}

func (p *pageTab) CurrentURL(context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return "https://discord.com" + p.path
}

func (p *pageTab) CurrentPath(context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path
}

func (p *pageTab) ChannelKey(context.Context) string { return "" }

func (p *pageTab) SetDebugFlags(context.Context, bool) {}

func (p *pageTab) Inject(context.Context) (bool, string) { return true, "attached" }

func (p *pageTab) DrainEvents(context.Context) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	batch := p.queue
	p.queue = nil
	return batch
}

func (p *pageTab) Snapshot(context.Context) []byte { return []byte("{}") }

func (p *pageTab) WaitVisibleTextbox(context.Context) error { return nil }

func (p *pageTab) SubmitText(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = append(p.submitted, text)
	return nil
}

func (p *pageTab) Release() {}

// push enqueues one raw payload for the next drain.
func (p *pageTab) push(raw string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, []byte(raw))
}

func (p *pageTab) sends() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.submitted)
}

func (p *pageTab) visits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.navigated)
}

// pageAttacher hands out one tab per debugger address.
type pageAttacher struct {
	tabs map[string]watch.Tab
}

func (a pageAttacher) Attach(_ context.Context, address string) (watch.Tab, error) {
	tab, ok := a.tabs[address]
	if !ok {
		return nil, fmt.Errorf("no tab for %s", address)
	}
	return tab, nil
}

// watchCore is a fully wired watch: control server, dispatcher, orchestrator,
// and one session per tab, all running until the test finishes.
type watchCore struct {
	t       *testing.T
	out     *syncBuffer
	tabs    []*pageTab
	addr    string
	cancel  context.CancelFunc
	stopped chan struct{}
}

func startWatchCore(t *testing.T, monkeyCount int, adminIDs []string) *watchCore {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}

	servers := []config.Server{{
		ServerID: "100",
		Name:     "Home Tree",
		Channels: []config.Channel{
			{ID: "101", Name: "test-jungle"},
			{ID: "102", Name: "general"},
		},
	}}
	channelNames := config.ChannelNames(servers)
	index := directory.Build(servers)
	defaultChannel := config.DefaultChannel{GuildID: "100", ChannelID: "101", Label: "test-jungle"}

	cfg := config.WatchConfig{
		DebugBase:      9222,
		DebugStep:      1,
		URL:            "https://discord.com/app",
		AttachTimeout:  100 * time.Millisecond,
		InjectTimeout:  100 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		DebugInterval:  time.Hour,
		DefaultChannel: defaultChannel,
	}

	monkeyIDs := make([]string, monkeyCount)
	tabs := make([]*pageTab, monkeyCount)
	attacher := pageAttacher{tabs: make(map[string]watch.Tab, monkeyCount)}
	for i := 0; i < monkeyCount; i++ {
		monkeyIDs[i] = fmt.Sprintf("monkey-%d", i+1)
		tabs[i] = newPageTab("/channels/100/101")
		attacher.tabs[cfg.DebugAddress(i)] = tabs[i]
	}

	dispatcher := dispatch.NewDispatcher(index, defaultChannel, monkeyIDs)
	out := &syncBuffer{}
	console := control.NewConsole(out)
	dedupe := events.NewGlobalDedupe(100)
	orch := watch.NewOrchestrator(console, dispatcher.Dispatch, dedupe, adminIDs, false)

	ctx, cancel := context.WithCancel(context.Background())

	responder := control.NewResponder(dispatcher.Dispatch, console)
	srv, err := control.StartServer(ctx, "127.0.0.1:0", responder)
	if err != nil {
		cancel()
		t.Fatalf("start control server: %v", err)
	}

	var live atomic.Int64
	for i := 0; i < monkeyCount; i++ {
		sess := watch.NewSession(watch.SessionConfig{
			AccountID:    monkeyIDs[i],
			Index:        i,
			Watch:        cfg,
			Attacher:     attacher,
			ChannelNames: channelNames,
			Commands:     dispatcher.Queue(monkeyIDs[i]),
			Events:       orch.Events,
			Console:      console,
		})
		live.Add(1)
		go func() {
			defer live.Add(-1)
			sess.Run(ctx)
		}()
	}

	stopped := make(chan struct{})
	go func() {
		orch.Loop(ctx, func() bool { return live.Load() > 0 })
		close(stopped)
	}()

	core := &watchCore{
		t:       t,
		out:     out,
		tabs:    tabs,
		addr:    srv.Addr().String(),
		cancel:  cancel,
		stopped: stopped,
	}
	t.Cleanup(core.stop)
	return core
}

func (c *watchCore) stop() {
	c.cancel()
	select {
	case <-c.stopped:
	case <-time.After(3 * time.Second):
		c.t.Error("orchestrator loop did not stop")
	}
}

// send dials the control socket, sends one line, and returns the first
// response line.
func (c *watchCore) send(line string) string {
	c.t.Helper()
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		c.t.Fatalf("dial control server: %v", err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		c.t.Fatalf("send %q: %v", line, err)
	}
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		c.t.Fatalf("no response for %q", line)
	}
	return scanner.Text()
}

// waitFor polls a condition until it's true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, desc string, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", desc)
}

// TestControlSocketDrivesSession sends operator commands over a real TCP
// connection and verifies the session executes them against its tab:
//  1. the session boots watching the default channel
//  2. goto navigates the tab and the switch is announced
//  3. say types into the tab
//  4. home returns to the default channel
//  5. query and error responses come back synchronously
func TestControlSocketDrivesSession(t *testing.T) {
	core := startWatchCore(t, 1, nil)
	tab := core.tabs[0]

	waitFor(t, 3*time.Second, "initial channel banner", func() bool {
		return strings.Contains(core.out.String(), "monkey-1 watching: test-jungle")
	})

	if got := core.send("goto general"); got != "ok" {
		t.Fatalf("goto response = %q, want ok", got)
	}
	waitFor(t, 3*time.Second, "navigation to general", func() bool {
		return slices.Contains(tab.visits(), "https://discord.com/channels/100/102")
	})
	waitFor(t, 3*time.Second, "switch banner for general", func() bool {
		return strings.Contains(core.out.String(), "monkey-1 watching: general")
	})

	if got := core.send("say hello jungle"); got != "ok" {
		t.Fatalf("say response = %q, want ok", got)
	}
	waitFor(t, 3*time.Second, "text submitted", func() bool {
		return slices.Contains(tab.sends(), "hello jungle")
	})

	if got := core.send("home"); got != "ok" {
		t.Fatalf("home response = %q, want ok", got)
	}
	waitFor(t, 3*time.Second, "navigation back home", func() bool {
		return slices.Contains(tab.visits(), "https://discord.com/channels/100/101")
	})

	if got := core.send("servers"); !strings.HasPrefix(got, "servers:") {
		t.Fatalf("servers response = %q, want listing header", got)
	}
	if got := core.send("dance party"); got != "unknown command: dance" {
		t.Fatalf("bad-command response = %q", got)
	}
}

// TestAdminChatMessageDrivesCommands verifies the in-chat command path: a
// message from an allow-listed author is mirrored AND dispatched, duplicates
// and non-admin authors are mirrored only.
func TestAdminChatMessageDrivesCommands(t *testing.T) {
	core := startWatchCore(t, 1, []string{"900"})
	tab := core.tabs[0]

	waitFor(t, 3*time.Second, "initial channel banner", func() bool {
		return strings.Contains(core.out.String(), "monkey-1 watching: test-jungle")
	})

	tab.push(`{"id": "m-1", "channel_id": "101", "author": "Zoo Keeper", "author_id": "900", "content": "monkeys say banana"}`)
	waitFor(t, 3*time.Second, "admin say executed", func() bool {
		return slices.Contains(tab.sends(), "banana")
	})
	if !strings.Contains(core.out.String(), "test-jungle Zoo Keeper: monkeys say banana") {
		t.Errorf("admin message not mirrored:\n%s", core.out.String())
	}

	// Repeat of the same message id, then a message from a stranger: neither
	// may dispatch. The closing admin command proves both were processed.
	tab.push(`{"id": "m-1", "channel_id": "101", "author": "Zoo Keeper", "author_id": "900", "content": "monkeys say banana"}`)
	tab.push(`{"id": "m-2", "channel_id": "101", "author": "intruder", "author_id": "777", "content": "monkeys say stolen"}`)
	tab.push(`{"id": "m-3", "channel_id": "101", "author": "Zoo Keeper", "author_id": "900", "content": "monkeys say kiwi"}`)

	waitFor(t, 3*time.Second, "second admin say executed", func() bool {
		return slices.Contains(tab.sends(), "kiwi")
	})
	want := []string{"banana", "kiwi"}
	if got := tab.sends(); !slices.Equal(got, want) {
		t.Errorf("sends = %v, want %v", got, want)
	}
	if !strings.Contains(core.out.String(), "test-jungle intruder: monkeys say stolen") {
		t.Errorf("non-admin message not mirrored:\n%s", core.out.String())
	}
}

// TestBroadcastAndDedupeAcrossSessions runs two sessions: a broadcast goto
// reaches both tabs, a targeted goto reaches one, and a message scraped by
// both accounts prints once.
func TestBroadcastAndDedupeAcrossSessions(t *testing.T) {
	core := startWatchCore(t, 2, nil)

	waitFor(t, 3*time.Second, "both sessions watching", func() bool {
		out := core.out.String()
		return strings.Contains(out, "monkey-1 watching: test-jungle") &&
			strings.Contains(out, "monkey-2 watching: test-jungle")
	})

	if got := core.send("goto 1:2"); got != "ok" {
		t.Fatalf("broadcast goto response = %q, want ok", got)
	}
	for i, tab := range core.tabs {
		waitFor(t, 3*time.Second, fmt.Sprintf("monkey-%d navigated to general", i+1), func() bool {
			return slices.Contains(tab.visits(), "https://discord.com/channels/100/102")
		})
	}

	if got := core.send("@monkey-2 goto test-jungle"); got != "ok" {
		t.Fatalf("targeted goto response = %q, want ok", got)
	}
	waitFor(t, 3*time.Second, "monkey-2 navigated home", func() bool {
		return slices.Contains(core.tabs[1].visits(), "https://discord.com/channels/100/101")
	})
	if visits := core.tabs[0].visits(); slices.Contains(visits, "https://discord.com/channels/100/101") {
		t.Errorf("targeted goto reached monkey-1: %v", visits)
	}

	raw := `{"id": "dup-1", "channel_id": "102", "author": "alice", "content": "who threw that"}`
	core.tabs[0].push(raw)
	core.tabs[1].push(raw)

	waitFor(t, 3*time.Second, "message mirrored", func() bool {
		return strings.Contains(core.out.String(), "general alice: who threw that")
	})
	time.Sleep(100 * time.Millisecond)
	if got := strings.Count(core.out.String(), "general alice: who threw that"); got != 1 {
		t.Errorf("deduplicated message printed %d times", got)
	}
}
