package control

import (
	"fmt"
	"io"
	"sync"
)

// Console serializes operator-visible output. Watch sessions, the
// orchestrator, and the control surfaces all print through one Console so
// concurrent lines never interleave.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole returns a console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Println writes one line.
func (c *Console) Println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

// Printf formats and writes one line. The newline is appended.
func (c *Console) Printf(format string, args ...any) {
	c.Println(fmt.Sprintf(format, args...))
}
