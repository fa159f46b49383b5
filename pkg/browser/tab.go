package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

const (
	currentURLScript  = "location.href || ''"
	currentPathScript = "location.pathname || ''"
	channelKeyScript  = "(window.__monkeyMessageWatcher && window.__monkeyMessageWatcher.channelKey) || ''"
	drainScript       = "(window.__monkeyMessageQueue || []).splice(0)"
	debugFlagsScript  = "window.__monkeyMessageVerbose = %t; window.__monkeyDispatcherScanEnabled = %t;"

	// focusTextboxScript finds the visible message box and focuses it so
	// inserted text lands in the right editor.
	focusTextboxScript = `(() => {
  const boxes = document.querySelectorAll("div[role='textbox'][contenteditable='true']");
  for (const box of boxes) {
    const rect = box.getBoundingClientRect();
    const style = window.getComputedStyle(box);
    if (rect.width > 0 && rect.height > 0 && style.visibility !== 'hidden' && style.display !== 'none') {
      box.focus();
      return true;
    }
  }
  return false;
})()`
)

// Tab is one attached DevTools page session. Method calls serialize on the
// underlying connection, so a Tab may be shared, though each worker normally
// owns one for its lifetime.
type Tab struct {
	opts Options

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID int64
}

// roundTrip sends one protocol command and waits for its reply, skipping the
// event frames Chrome interleaves on the same socket.
func (t *Tab) roundTrip(ctx context.Context, method string, params any) (gjson.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return gjson.Result{}, err
	}

	t.nextID++
	id := t.nextID
	payload, err := json.Marshal(struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
		Params any    `json:"params,omitempty"`
	}{ID: id, Method: method, Params: params})
	if err != nil {
		return gjson.Result{}, err
	}

	deadline := time.Now().Add(callTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return gjson.Result{}, err
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return gjson.Result{}, err
	}

	for {
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return gjson.Result{}, err
		}
		_, frame, err := t.conn.ReadMessage()
		if err != nil {
			return gjson.Result{}, err
		}
		msg := gjson.ParseBytes(frame)
		if msg.Get("id").Int() != id {
			continue
		}
		if errMsg := msg.Get("error.message"); errMsg.Exists() {
			return gjson.Result{}, fmt.Errorf("%s: %s", method, errMsg.String())
		}
		return msg.Get("result"), nil
	}
}

// evaluate runs a script in the page and returns its JSON value.
func (t *Tab) evaluate(ctx context.Context, expression string) (gjson.Result, error) {
	result, err := t.roundTrip(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
	})
	if err != nil {
		return gjson.Result{}, err
	}
	if ex := result.Get("exceptionDetails"); ex.Exists() {
		desc := ex.Get("exception.description").String()
		if desc == "" {
			desc = ex.Get("text").String()
		}
		return gjson.Result{}, fmt.Errorf("script exception: %s", desc)
	}
	return result.Get("result.value"), nil
}

// Navigate points the tab at url. The page keeps loading after Navigate
// returns; callers that need the new document poll for it.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	result, err := t.roundTrip(ctx, "Page.navigate", map[string]any{"url": url})
	if err != nil {
		return err
	}
	if errText := result.Get("errorText").String(); errText != "" {
		return fmt.Errorf("navigate: %s", errText)
	}
	return nil
}

// CurrentURL returns the tab's location, or "" when the page cannot answer.
func (t *Tab) CurrentURL(ctx context.Context) string {
	value, err := t.evaluate(ctx, currentURLScript)
	if err != nil {
		return ""
	}
	return value.String()
}

// CurrentPath returns the tab's location path. When the page cannot answer
// directly the path is cut out of the full URL instead.
func (t *Tab) CurrentPath(ctx context.Context) string {
	value, err := t.evaluate(ctx, currentPathScript)
	if err == nil && value.Type == gjson.String {
		return value.String()
	}
	url := t.CurrentURL(ctx)
	if _, rest, ok := strings.Cut(url, "://"); ok {
		if _, path, ok := strings.Cut(rest, "/"); ok {
			return "/" + path
		}
	}
	return ""
}

// ChannelKey returns the watcher's guild:channel key, or "" before the
// watcher is attached.
func (t *Tab) ChannelKey(ctx context.Context) string {
	value, err := t.evaluate(ctx, channelKeyScript)
	if err != nil || value.Type != gjson.String {
		return ""
	}
	return value.String()
}

// SetDebugFlags toggles the in-page verbose and scan switches. Failures are
// ignored; the flags only affect diagnostics.
func (t *Tab) SetDebugFlags(ctx context.Context, on bool) {
	_, _ = t.evaluate(ctx, fmt.Sprintf(debugFlagsScript, on, on))
}

// Inject evaluates the watcher script until it reports ok or the inject
// timeout passes. The returned status carries the script's status text on
// success and the last failure otherwise.
func (t *Tab) Inject(ctx context.Context) (bool, string) {
	deadline := time.Now().Add(t.opts.InjectTimeout)
	lastError := "unknown"
	for time.Now().Before(deadline) && ctx.Err() == nil {
		value, err := t.evaluate(ctx, t.opts.InjectScript)
		if err != nil {
			lastError = err.Error()
			sleep(ctx, injectRetryDelay)
			continue
		}
		if !value.IsObject() {
			lastError = value.String()
			sleep(ctx, injectRetryDelay)
			continue
		}
		if value.Get("ok").Bool() {
			status := "attached"
			if s := value.Get("status"); s.Exists() {
				status = s.String()
			}
			return true, status
		}
		errText := lastError
		if e := value.Get("error"); e.Exists() {
			errText = e.String()
		}
		if diag := value.Get("diag"); diag.Exists() {
			errText = fmt.Sprintf("%s diag=%s", errText, canonicalJSON([]byte(diag.Raw)))
		}
		lastError = errText
		sleep(ctx, injectRetryDelay)
	}
	return false, lastError
}

// DrainEvents empties the in-page message queue and returns the raw payload
// objects. Anything that is not a JSON object is dropped.
func (t *Tab) DrainEvents(ctx context.Context) [][]byte {
	value, err := t.evaluate(ctx, drainScript)
	if err != nil || !value.IsArray() {
		return nil
	}
	var out [][]byte
	value.ForEach(func(_, item gjson.Result) bool {
		if item.IsObject() {
			out = append(out, []byte(item.Raw))
		}
		return true
	})
	return out
}

// Snapshot runs the diagnostic script and returns its result as canonical
// JSON. Failures and non-object results are wrapped so callers always get an
// object.
func (t *Tab) Snapshot(ctx context.Context) []byte {
	value, err := t.evaluate(ctx, t.opts.DebugScript)
	if err != nil {
		return wrapSnapshot("error", err.Error())
	}
	if value.IsObject() {
		return canonicalJSON([]byte(value.Raw))
	}
	return wrapSnapshot("value", value.String())
}

// WaitVisibleTextbox polls for a visible message box, focusing it once
// found. The wait is bounded by the attach timeout with a half second floor.
func (t *Tab) WaitVisibleTextbox(ctx context.Context) error {
	timeout := t.opts.AttachTimeout
	if timeout < minWaitFloor {
		timeout = minWaitFloor
	}
	deadline := time.Now().Add(timeout)
	lastError := ""
	for time.Now().Before(deadline) && ctx.Err() == nil {
		value, err := t.evaluate(ctx, focusTextboxScript)
		if err != nil {
			lastError = err.Error()
		} else if value.Bool() {
			return nil
		}
		sleep(ctx, textboxPollInterval)
	}
	if lastError == "" {
		lastError = "no visible textbox found"
	}
	return errors.New(lastError)
}

// SubmitText types text into the focused message box and presses Enter.
func (t *Tab) SubmitText(ctx context.Context, text string) error {
	if _, err := t.roundTrip(ctx, "Input.insertText", map[string]any{"text": text}); err != nil {
		return err
	}
	enter := []map[string]any{
		{"type": "rawKeyDown", "windowsVirtualKeyCode": 13, "nativeVirtualKeyCode": 13, "key": "Enter", "code": "Enter"},
		{"type": "char", "text": "\r", "key": "Enter"},
		{"type": "keyUp", "windowsVirtualKeyCode": 13, "nativeVirtualKeyCode": 13, "key": "Enter", "code": "Enter"},
	}
	for _, params := range enter {
		if _, err := t.roundTrip(ctx, "Input.dispatchKeyEvent", params); err != nil {
			return err
		}
	}
	return nil
}

// Release closes the devtools connection. The browser and its tabs keep
// running.
func (t *Tab) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.Close()
}

func wrapSnapshot(key, text string) []byte {
	payload, err := json.Marshal(map[string]string{key: text})
	if err != nil {
		return []byte("{}")
	}
	return payload
}

// canonicalJSON sorts object keys and strips whitespace so diagnostic output
// is stable across runs.
func canonicalJSON(raw []byte) []byte {
	sorted := pretty.PrettyOptions(raw, &pretty.Options{SortKeys: true})
	return pretty.Ugly(sorted)
}
