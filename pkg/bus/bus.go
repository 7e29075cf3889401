package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	bufferSize     = 100
	publishTimeout = 100 * time.Millisecond
)

// mailbox is a bounded queue shared by both bus directions. put waits
// for at most publishTimeout when the buffer is full, then drops the
// value and counts it.
type mailbox[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{ch: make(chan T, bufferSize)}
}

func (m *mailbox[T]) put(v T) {
	select {
	case m.ch <- v:
		return
	default:
	}

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case m.ch <- v:
	case <-timer.C:
		m.dropped.Add(1)
	}
}

func (m *mailbox[T]) take(ctx context.Context) (T, bool) {
	var zero T
	select {
	case v, ok := <-m.ch:
		if !ok {
			return zero, false
		}
		return v, true
	case <-ctx.Done():
		return zero, false
	}
}

// MessageBus decouples channels from the pipeline: channels put
// inbound traffic on one mailbox, the dispatcher drains replies from
// the other. Publishing never blocks longer than publishTimeout.
type MessageBus struct {
	inbound  *mailbox[InboundMessage]
	outbound *mailbox[OutboundMessage]
	mu       sync.RWMutex
	closed   bool
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  newMailbox[InboundMessage](),
		outbound: newMailbox[OutboundMessage](),
	}
}

// PublishInbound enqueues a received message. After Close it is a
// no-op.
func (mb *MessageBus) PublishInbound(msg InboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}
	mb.inbound.put(msg)
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return mb.inbound.take(ctx)
}

func (mb *MessageBus) PublishOutbound(msg OutboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}
	mb.outbound.put(msg)
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return mb.outbound.take(ctx)
}

// Close shuts both mailboxes; pending consumers see ok=false.
func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.inbound.ch)
	close(mb.outbound.ch)
}

func (mb *MessageBus) DroppedInbound() uint64 {
	return mb.inbound.dropped.Load()
}

func (mb *MessageBus) DroppedOutbound() uint64 {
	return mb.outbound.dropped.Load()
}
