package assistant

import (
	"sync"
	"testing"
	"time"

	"github.com/hyunwoolee/bandi/pkg/bus"
)

type dispatchRecorder struct {
	mu   sync.Mutex
	got  []bus.InboundMessage
	done chan struct{}
}

func newDispatchRecorder() *dispatchRecorder {
	return &dispatchRecorder{done: make(chan struct{}, 16)}
}

func (r *dispatchRecorder) dispatch(msg bus.InboundMessage) {
	r.mu.Lock()
	r.got = append(r.got, msg)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *dispatchRecorder) messages() []bus.InboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bus.InboundMessage(nil), r.got...)
}

func (r *dispatchRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for dispatch")
	}
}

func TestCoalescerMergesBurstIntoOneDispatch(t *testing.T) {
	rec := newDispatchRecorder()
	c := NewCoalescer(150*time.Millisecond, rec.dispatch)
	defer c.Stop()

	msg := func(content string) bus.InboundMessage {
		return bus.InboundMessage{Channel: "messenger", ChatID: "1", SenderName: "Lee", Content: content}
	}

	c.Add(msg("one"))
	time.Sleep(50 * time.Millisecond)
	c.Add(msg("two"))
	time.Sleep(30 * time.Millisecond)
	c.Add(msg("three"))

	rec.wait(t)
	got := rec.messages()
	if len(got) != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", len(got))
	}
	if got[0].Content != "one\ntwo\nthree" {
		t.Fatalf("unexpected combined content: %q", got[0].Content)
	}
}

func TestCoalescerUsesMostRecentSender(t *testing.T) {
	rec := newDispatchRecorder()
	c := NewCoalescer(100*time.Millisecond, rec.dispatch)
	defer c.Stop()

	c.Add(bus.InboundMessage{Channel: "messenger", ChatID: "1", SenderName: "Lee", SenderID: "3", Content: "a"})
	c.Add(bus.InboundMessage{Channel: "messenger", ChatID: "1", SenderName: "Kim", SenderID: "4", Content: "b"})

	rec.wait(t)
	got := rec.messages()
	if len(got) != 1 || got[0].SenderName != "Kim" || got[0].SenderID != "4" {
		t.Fatalf("expected most recent sender, got %+v", got)
	}
}

func TestCoalescerChannelsAreIndependent(t *testing.T) {
	rec := newDispatchRecorder()
	c := NewCoalescer(80*time.Millisecond, rec.dispatch)
	defer c.Stop()

	c.Add(bus.InboundMessage{Channel: "messenger", ChatID: "1", Content: "home"})
	c.Add(bus.InboundMessage{Channel: "messenger", ChatID: "2", Content: "work"})

	rec.wait(t)
	rec.wait(t)
	got := rec.messages()
	if len(got) != 2 {
		t.Fatalf("expected two dispatches, got %d", len(got))
	}
	if got[0].Content == got[1].Content {
		t.Fatalf("channels merged: %+v", got)
	}
}

func TestCoalescerRescheduleExtendsDeadline(t *testing.T) {
	rec := newDispatchRecorder()
	c := NewCoalescer(100*time.Millisecond, rec.dispatch)
	defer c.Stop()

	c.Add(bus.InboundMessage{Channel: "messenger", ChatID: "1", Content: "first"})
	time.Sleep(60 * time.Millisecond)
	c.Add(bus.InboundMessage{Channel: "messenger", ChatID: "1", Content: "second"})

	// The original deadline has passed; only the rescheduled one may
	// fire, and only once.
	time.Sleep(60 * time.Millisecond)
	rec.wait(t)
	time.Sleep(150 * time.Millisecond)

	got := rec.messages()
	if len(got) != 1 {
		t.Fatalf("expected one dispatch, got %d: %+v", len(got), got)
	}
	if got[0].Content != "first\nsecond" {
		t.Fatalf("unexpected content: %q", got[0].Content)
	}
}

func TestCoalescerStopDiscardsPending(t *testing.T) {
	rec := newDispatchRecorder()
	c := NewCoalescer(50*time.Millisecond, rec.dispatch)

	c.Add(bus.InboundMessage{Channel: "messenger", ChatID: "1", Content: "never sent"})
	c.Stop()

	time.Sleep(120 * time.Millisecond)
	if got := rec.messages(); len(got) != 0 {
		t.Fatalf("expected no dispatches after stop, got %+v", got)
	}
}
