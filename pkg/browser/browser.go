// Package browser drives already-running Chrome instances over the DevTools
// protocol. An Attacher finds the Discord tab behind a remote-debugging
// address and hands back a Tab that can inject the watcher script, drain its
// message queue, navigate, and type into the message box. Nothing outside
// this package inspects page markup.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	probeInterval       = 300 * time.Millisecond
	probeRequestTimeout = time.Second
	injectRetryDelay    = 500 * time.Millisecond
	textboxPollInterval = 200 * time.Millisecond
	minWaitFloor        = 500 * time.Millisecond
	callTimeout         = 10 * time.Second
)

// Options configure an Attacher and every Tab it produces.
type Options struct {
	// URL is opened when the browser has no Discord tab yet.
	URL string
	// AttachTimeout bounds the version probe and the in-page waits that
	// confirm navigation and find the message box.
	AttachTimeout time.Duration
	// InjectTimeout bounds the watcher injection retry loop.
	InjectTimeout time.Duration

	InjectScript string
	DebugScript  string
}

// Attacher connects to remote-debugging endpoints. One Attacher serves any
// number of addresses; each Attach call yields an independent Tab.
type Attacher struct {
	opts   Options
	httpc  *http.Client
	dialer *websocket.Dialer
}

// NewAttacher returns an Attacher with the given options.
func NewAttacher(opts Options) *Attacher {
	return &Attacher{
		opts:   opts,
		httpc:  &http.Client{Timeout: 5 * time.Second},
		dialer: websocket.DefaultDialer,
	}
}

// Attach waits for the debugger at address to answer its version probe, then
// picks the Discord tab (steering or opening one if needed) and connects to
// it. A probe timeout is reported as *AttachError; a reachable browser with
// no steerable page tab as ErrNoDiscordTab.
func (a *Attacher) Attach(ctx context.Context, address string) (*Tab, error) {
	if err := a.waitReady(ctx, address); err != nil {
		return nil, err
	}
	return a.selectOrOpenTab(ctx, address)
}

func (a *Attacher) waitReady(ctx context.Context, address string) error {
	url := fmt.Sprintf("http://%s/json/version", address)
	deadline := time.Now().Add(a.opts.AttachTimeout)
	lastError := ""
	for time.Now().Before(deadline) && ctx.Err() == nil {
		status, err := a.probe(ctx, url)
		switch {
		case err != nil:
			lastError = err.Error()
		case status == http.StatusOK:
			return nil
		default:
			lastError = fmt.Sprintf("unexpected status %d", status)
		}
		sleep(ctx, probeInterval)
	}
	if lastError == "" {
		lastError = "no response"
	}
	return &AttachError{Address: address, Reason: lastError}
}

func (a *Attacher) probe(ctx context.Context, url string) (int, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeRequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := a.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// target is one entry from the /json/list endpoint.
type target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func (a *Attacher) selectOrOpenTab(ctx context.Context, address string) (*Tab, error) {
	targets, err := a.listTargets(ctx, address)
	if err != nil {
		return nil, err
	}

	var fallback *target
	for i := range targets {
		tgt := &targets[i]
		if tgt.Type != "page" || tgt.WebSocketDebuggerURL == "" {
			continue
		}
		if strings.Contains(tgt.URL, "discord.com") {
			return a.dial(ctx, tgt.WebSocketDebuggerURL)
		}
		if fallback == nil {
			fallback = tgt
		}
	}

	if fallback != nil {
		tab, err := a.dial(ctx, fallback.WebSocketDebuggerURL)
		if err != nil {
			return nil, err
		}
		if err := tab.Navigate(ctx, a.opts.URL); err != nil {
			tab.Release()
			return nil, ErrNoDiscordTab
		}
		return tab, nil
	}

	opened, err := a.newTarget(ctx, address)
	if err != nil {
		return nil, ErrNoDiscordTab
	}
	return a.dial(ctx, opened.WebSocketDebuggerURL)
}

func (a *Attacher) listTargets(ctx context.Context, address string) ([]target, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/json/list", address), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list targets: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var targets []target
	if err := json.Unmarshal(body, &targets); err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return targets, nil
}

// newTarget asks the browser for a fresh tab already pointed at the Discord
// URL. Chrome wants PUT here since 111.
func (a *Attacher) newTarget(ctx context.Context, address string) (target, error) {
	url := fmt.Sprintf("http://%s/json/new?%s", address, a.opts.URL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, nil)
	if err != nil {
		return target{}, err
	}
	resp, err := a.httpc.Do(req)
	if err != nil {
		return target{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return target{}, fmt.Errorf("new target: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return target{}, err
	}
	var opened target
	if err := json.Unmarshal(body, &opened); err != nil {
		return target{}, fmt.Errorf("new target: %w", err)
	}
	if opened.WebSocketDebuggerURL == "" {
		return target{}, fmt.Errorf("new target: no debugger url in response")
	}
	return opened, nil
}

func (a *Attacher) dial(ctx context.Context, wsURL string) (*Tab, error) {
	conn, resp, err := a.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return &Tab{conn: conn, opts: a.opts}, nil
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
