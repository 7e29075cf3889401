package channels

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hyunwoolee/bandi/pkg/bus"
	"github.com/hyunwoolee/bandi/pkg/logger"
	"github.com/hyunwoolee/bandi/pkg/messenger"
)

const catchUpFetchLimit = 10

// MessengerChannel is the primary surface on the Huni Messenger
// platform. Inbound traffic arrives through the webhook gateway, not
// here; this channel owns registration, outbound delivery, typing
// signals, and the startup catch-up scan.
type MessengerChannel struct {
	*BaseChannel
	client     *messenger.Client
	dataDir    string
	webhookURL string
}

func NewMessengerChannel(b *bus.MessageBus, client *messenger.Client, dataDir, webhookURL string, allowList []string) *MessengerChannel {
	return &MessengerChannel{
		BaseChannel: NewBaseChannel("messenger", b, allowList),
		client:      client,
		dataDir:     dataDir,
		webhookURL:  webhookURL,
	}
}

// Start restores or obtains the bot API key, subscribes the webhook,
// and scans rooms for messages that arrived while the bot was down.
func (c *MessengerChannel) Start(ctx context.Context) error {
	if key := messenger.LoadSavedKey(c.dataDir); key != "" {
		c.client.SetAPIKey(key)
		logger.InfoC("messenger", "restored saved API key")
	} else {
		if err := c.client.RegisterBot(ctx); err != nil {
			return fmt.Errorf("start messenger channel: %w", err)
		}
		if err := messenger.SaveKey(c.dataDir, c.client.APIKey()); err != nil {
			logger.WarnCF("messenger", "could not persist API key", map[string]interface{}{"error": err.Error()})
		}
	}

	if c.webhookURL != "" {
		if err := c.client.RegisterWebhook(ctx, c.webhookURL, []string{"new_message"}); err != nil {
			return fmt.Errorf("start messenger channel: %w", err)
		}
	}

	c.setRunning(true)
	go c.catchUp(ctx)
	return nil
}

func (c *MessengerChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	return nil
}

func (c *MessengerChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	roomID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("messenger send: bad room id %q: %w", msg.ChatID, err)
	}
	return c.client.SendMessage(ctx, roomID, msg.Content)
}

func (c *MessengerChannel) SetTyping(ctx context.Context, chatID string) {
	if roomID, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		c.client.SendTyping(ctx, roomID)
	}
}

func (c *MessengerChannel) ClearTyping(ctx context.Context, chatID string) {
	if roomID, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		c.client.StopTyping(ctx, roomID)
	}
}

// catchUp finds rooms whose most recent message is an unanswered human
// text message and replays it through the inbound bus, so questions
// asked while the bot was offline still get answered.
func (c *MessengerChannel) catchUp(ctx context.Context) {
	info, err := c.client.GetBotInfo(ctx)
	if err != nil {
		logger.WarnCF("messenger", "catch-up skipped, bot info unavailable", map[string]interface{}{"error": err.Error()})
		return
	}

	rooms, err := c.client.GetRooms(ctx, info.ID)
	if err != nil {
		logger.WarnCF("messenger", "catch-up skipped, rooms unavailable", map[string]interface{}{"error": err.Error()})
		return
	}

	replayed := 0
	for _, room := range rooms {
		msgs, err := c.client.GetRoomMessages(ctx, room.ID, catchUpFetchLimit)
		if err != nil {
			logger.DebugCF("messenger", "catch-up fetch failed", map[string]interface{}{
				"room":  room.ID,
				"error": err.Error(),
			})
			continue
		}

		pending := lastUnansweredHuman(msgs, c.client.BotName())
		if pending == nil {
			continue
		}

		c.Publish(bus.InboundMessage{
			SenderID:   pending.SenderName,
			SenderName: pending.SenderName,
			ChatID:     strconv.FormatInt(room.ID, 10),
			Content:    pending.Content,
			ReceivedAt: time.Now(),
			Metadata:   map[string]string{"catchup": "true"},
		})
		replayed++
	}

	if replayed > 0 {
		logger.InfoCF("messenger", "catch-up replayed pending messages", map[string]interface{}{"count": replayed})
	}
}

// lastUnansweredHuman returns the newest human text message when
// nothing from the bot follows it. Messages are assumed oldest-first.
func lastUnansweredHuman(msgs []messenger.RoomMessage, botName string) *messenger.RoomMessage {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.IsBot || m.SenderName == botName {
			return nil
		}
		if m.Type != "" && m.Type != "text" {
			continue
		}
		if m.Content == "" {
			continue
		}
		return &msgs[i]
	}
	return nil
}
