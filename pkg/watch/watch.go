// Package watch runs one Session per monkey account against its browser
// tab and funnels everything the sessions see through the Orchestrator,
// which owns deduplication, admin command routing, and console output.
package watch

import (
	"context"
	"time"

	"monkeywatch/pkg/browser"
)

// Tab is the browser surface a session drives. The DevTools adapter
// satisfies it; tests substitute a fake.
type Tab interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) string
	CurrentPath(ctx context.Context) string
	ChannelKey(ctx context.Context) string
	SetDebugFlags(ctx context.Context, on bool)
	Inject(ctx context.Context) (bool, string)
	DrainEvents(ctx context.Context) [][]byte
	Snapshot(ctx context.Context) []byte
	WaitVisibleTextbox(ctx context.Context) error
	SubmitText(ctx context.Context, text string) error
	Release()
}

// Attacher opens a Tab on a debugger address.
type Attacher interface {
	Attach(ctx context.Context, address string) (Tab, error)
}

// DevToolsAttacher adapts the concrete DevTools attacher to the Attacher
// interface.
type DevToolsAttacher struct {
	Inner *browser.Attacher
}

// Attach connects to the debugger at address.
func (a DevToolsAttacher) Attach(ctx context.Context, address string) (Tab, error) {
	tab, err := a.Inner.Attach(ctx, address)
	if err != nil {
		return nil, err
	}
	return tab, nil
}

// channelURL builds the canonical channel URL.
func channelURL(guildID, channelID string) string {
	return "https://discord.com/channels/" + guildID + "/" + channelID
}

// sleep waits for d or until ctx is done. Returns false when cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
