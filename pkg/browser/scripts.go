package browser

import (
	_ "embed"
	"strconv"
	"strings"
)

// The watcher script carries its queue bounds as placeholders so the same
// file serves any configuration.
//
//go:embed js/inject.js
var injectTemplate string

//go:embed js/debug.js
var debugScript string

// InjectScript returns the in-page watcher script with the snapshot and
// queue limits filled in.
func InjectScript(snapshotLimit, maxQueueSize int) string {
	script := strings.ReplaceAll(injectTemplate, "__SNAPSHOT_LIMIT__", strconv.Itoa(snapshotLimit))
	return strings.ReplaceAll(script, "__MAX_QUEUE_SIZE__", strconv.Itoa(maxQueueSize))
}

// DebugScript returns the diagnostic snapshot script.
func DebugScript() string {
	return debugScript
}
