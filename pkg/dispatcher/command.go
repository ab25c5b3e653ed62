package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Command is a dashboard data request handled by the dispatch loop.
type Command int

const (
	// CmdSmallDashData is the compact payload for the wall-mounted display.
	CmdSmallDashData Command = iota
	// CmdFullDashData is the complete payload with all chart series.
	CmdFullDashData
)

func (c Command) String() string {
	switch c {
	case CmdSmallDashData:
		return "small"
	case CmdFullDashData:
		return "full"
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ErrClosed means the dispatcher side of the channel pair went away; the
// owning process tears the pair down and starts a fresh dispatcher.
var ErrClosed = errors.New("dispatcher channels closed")

// Comms is the web layer's handle on the dispatcher's channel pair. The
// exclusive lock around the send/receive pair guarantees a single outstanding
// command and keeps responses paired with their command.
type Comms struct {
	mu        sync.Mutex
	commands  chan<- Command
	responses <-chan string
}

// NewComms wraps a channel pair.
func NewComms(commands chan<- Command, responses <-chan string) *Comms {
	return &Comms{commands: commands, responses: responses}
}

// Swap replaces the channel pair after a dispatcher restart.
func (c *Comms) Swap(commands chan<- Command, responses <-chan string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = commands
	c.responses = responses
}

// Exchange sends one command and waits for its response.
func (c *Comms) Exchange(ctx context.Context, cmd Command) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case resp, ok := <-c.responses:
		if !ok {
			return "", ErrClosed
		}
		return resp, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
