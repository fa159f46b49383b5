package browser

import (
	"errors"
	"fmt"
)

// ErrNoDiscordTab reports that a reachable browser had no page tab the
// attacher could steer to Discord.
var ErrNoDiscordTab = errors.New("no usable Discord tab")

// AttachError reports that a remote debugger never answered its version
// probe within the attach timeout. Reason keeps the last probe failure.
type AttachError struct {
	Address string
	Reason  string
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("debugger not reachable at %s (%s)", e.Address, e.Reason)
}
