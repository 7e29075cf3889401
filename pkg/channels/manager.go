package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyunwoolee/bandi/pkg/bus"
	"github.com/hyunwoolee/bandi/pkg/logger"
)

// Manager owns the channel set, starts and stops them together, and
// routes outbound traffic to the right surface.
type Manager struct {
	bus *bus.MessageBus

	mu       sync.RWMutex
	channels map[string]Channel
}

func NewManager(b *bus.MessageBus) *Manager {
	return &Manager{
		bus:      b,
		channels: make(map[string]Channel),
	}
}

func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// StartAll starts every registered channel. On failure the channels
// already started are stopped again before returning.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var started []Channel
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			for _, prev := range started {
				if stopErr := prev.Stop(ctx); stopErr != nil {
					logger.WarnCF("channels", "rollback stop failed", map[string]interface{}{
						"channel": prev.Name(),
						"error":   stopErr.Error(),
					})
				}
			}
			return fmt.Errorf("start channel %s: %w", name, err)
		}
		started = append(started, ch)
		logger.InfoCF("channels", "channel started", map[string]interface{}{"channel": name})
	}

	go m.dispatchOutbound(ctx)
	return nil
}

func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "stop failed", map[string]interface{}{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
}

// dispatchOutbound drains the outbound side of the bus and delivers
// each message to its channel. Runs until the bus closes or the
// context is cancelled.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		if err := m.SendMessage(ctx, msg.Channel, msg.ChatID, msg.Content); err != nil {
			logger.ErrorCF("channels", "outbound delivery failed", map[string]interface{}{
				"channel": msg.Channel,
				"chat_id": msg.ChatID,
				"error":   err.Error(),
			})
		}
	}
}

// SendMessage delivers directly to a named channel. Implements the
// transport used by the pipeline and heartbeat.
func (m *Manager) SendMessage(ctx context.Context, channel, chatID, content string) error {
	ch, ok := m.Get(channel)
	if !ok {
		return fmt.Errorf("unknown channel %q", channel)
	}
	return ch.Send(ctx, bus.OutboundMessage{Channel: channel, ChatID: chatID, Content: content})
}

func (m *Manager) SetTyping(ctx context.Context, channel, chatID string) {
	if ch, ok := m.Get(channel); ok {
		ch.SetTyping(ctx, chatID)
	}
}

func (m *Manager) ClearTyping(ctx context.Context, channel, chatID string) {
	if ch, ok := m.Get(channel); ok {
		ch.ClearTyping(ctx, chatID)
	}
}
