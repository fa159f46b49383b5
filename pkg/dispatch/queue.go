package dispatch

import (
	"sync"

	"monkeywatch/pkg/command"
)

// Queue is the per-monkey command mailbox. Any control surface may Put;
// exactly one worker session Drains. It never blocks and never drops.
type Queue struct {
	mu   sync.Mutex
	cmds []command.Command
}

// Put appends a command.
func (q *Queue) Put(cmd command.Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cmds = append(q.cmds, cmd)
}

// Drain returns all queued commands in enqueue order and clears the queue.
func (q *Queue) Drain() []command.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.cmds) == 0 {
		return nil
	}
	out := make([]command.Command, len(q.cmds))
	copy(out, q.cmds)
	q.cmds = q.cmds[:0]
	return out
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cmds)
}
