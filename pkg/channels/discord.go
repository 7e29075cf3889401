package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hyunwoolee/bandi/pkg/bus"
	"github.com/hyunwoolee/bandi/pkg/logger"
)

const (
	discordMessageLimit   = 1900
	typingRefreshInterval = 8 * time.Second
)

// DiscordChannel is an optional secondary surface. In guild channels
// the bot only reacts when mentioned; DMs always go through.
type DiscordChannel struct {
	*BaseChannel
	token   string
	session *discordgo.Session

	typingMu sync.Mutex
	typing   map[string]chan struct{}
}

func NewDiscordChannel(b *bus.MessageBus, token string, allowList []string) *DiscordChannel {
	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", b, allowList),
		token:       token,
		typing:      make(map[string]chan struct{}),
	}
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(c.handleMessage)

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	c.session = session
	c.setRunning(true)
	logger.InfoC("discord", "channel started")
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	c.setRunning(false)

	c.typingMu.Lock()
	for chatID, stop := range c.typing {
		close(stop)
		delete(c.typing, chatID)
	}
	c.typingMu.Unlock()

	if c.session != nil {
		if err := c.session.Close(); err != nil {
			return fmt.Errorf("close discord session: %w", err)
		}
	}
	return nil
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if c.session == nil {
		return fmt.Errorf("discord send: session not started")
	}
	for _, chunk := range splitMessage(msg.Content, discordMessageLimit) {
		if _, err := c.session.ChannelMessageSend(msg.ChatID, chunk); err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
	}
	return nil
}

// SetTyping keeps the typing indicator alive until cleared. Discord
// drops the indicator after ~10 seconds, so it is refreshed on a
// shorter interval.
func (c *DiscordChannel) SetTyping(ctx context.Context, chatID string) {
	if c.session == nil {
		return
	}

	c.typingMu.Lock()
	if _, exists := c.typing[chatID]; exists {
		c.typingMu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.typing[chatID] = stop
	c.typingMu.Unlock()

	_ = c.session.ChannelTyping(chatID)
	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = c.session.ChannelTyping(chatID)
			}
		}
	}()
}

func (c *DiscordChannel) ClearTyping(ctx context.Context, chatID string) {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	if stop, exists := c.typing[chatID]; exists {
		close(stop)
		delete(c.typing, chatID)
	}
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	isDM := m.GuildID == ""
	mentioned := false
	for _, user := range m.Mentions {
		if user.ID == s.State.User.ID {
			mentioned = true
			break
		}
	}
	if !isDM && !mentioned {
		return
	}

	content := stripMention(m.Content, s.State.User.ID)
	if content == "" {
		return
	}

	c.Publish(bus.InboundMessage{
		SenderID:   m.Author.ID + "|" + m.Author.Username,
		SenderName: m.Author.Username,
		ChatID:     m.ChannelID,
		Content:    content,
		IsMention:  mentioned,
		ReceivedAt: time.Now(),
	})
}

func stripMention(content, userID string) string {
	content = strings.ReplaceAll(content, "<@"+userID+">", "")
	content = strings.ReplaceAll(content, "<@!"+userID+">", "")
	return strings.TrimSpace(content)
}

// splitMessage chunks content to fit the platform limit, preferring
// newline boundaries and falling back to spaces, then a hard cut.
func splitMessage(content string, limit int) []string {
	if len(content) <= limit {
		return []string{content}
	}

	var chunks []string
	for len(content) > limit {
		cut := strings.LastIndex(content[:limit], "\n")
		if cut <= 0 {
			cut = strings.LastIndex(content[:limit], " ")
		}
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimSpace(content[:cut]))
		content = strings.TrimSpace(content[cut:])
	}
	if content != "" {
		chunks = append(chunks, content)
	}
	return chunks
}
