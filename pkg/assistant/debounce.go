package assistant

import (
	"sync"
	"time"

	"github.com/hyunwoolee/bandi/pkg/bus"
)

// DefaultDebounceWindow is how long after the last message a channel
// stays quiet before its buffered content dispatches.
const DefaultDebounceWindow = 1500 * time.Millisecond

type pendingBuffer struct {
	content    string
	sender     string
	senderID   string
	generation uint64
	timer      *time.Timer
}

// Coalescer merges bursts of inbound messages per channel into one
// pipeline dispatch. Each arrival supersedes the pending buffer:
// content is newline-concatenated, the sender becomes the most recent
// one, and the flush timer restarts from now. A generation counter
// guards the flush so a superseded timer that already fired can never
// dispatch stale content.
type Coalescer struct {
	window   time.Duration
	dispatch func(bus.InboundMessage)

	mu      sync.Mutex
	pending map[string]*pendingBuffer
}

func NewCoalescer(window time.Duration, dispatch func(bus.InboundMessage)) *Coalescer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Coalescer{
		window:   window,
		dispatch: dispatch,
		pending:  make(map[string]*pendingBuffer),
	}
}

// Add buffers a message for its channel and (re)starts the flush timer.
func (c *Coalescer) Add(msg bus.InboundMessage) {
	key := msg.Channel + "/" + msg.ChatID

	c.mu.Lock()
	defer c.mu.Unlock()

	buf, ok := c.pending[key]
	if ok {
		buf.timer.Stop()
		buf.content = buf.content + "\n" + msg.Content
	} else {
		buf = &pendingBuffer{content: msg.Content}
		c.pending[key] = buf
	}
	buf.sender = msg.SenderName
	buf.senderID = msg.SenderID
	buf.generation++

	gen := buf.generation
	buf.timer = time.AfterFunc(c.window, func() {
		c.flush(key, gen, msg)
	})
}

func (c *Coalescer) flush(key string, gen uint64, template bus.InboundMessage) {
	c.mu.Lock()
	buf, ok := c.pending[key]
	if !ok || buf.generation != gen {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	c.mu.Unlock()

	out := template
	out.Content = buf.content
	out.SenderName = buf.sender
	out.SenderID = buf.senderID
	c.dispatch(out)
}

// Stop cancels every pending flush. Buffered content is discarded.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, buf := range c.pending {
		buf.timer.Stop()
		delete(c.pending, key)
	}
}
