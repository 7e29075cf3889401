package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hyunwoolee/bandi/pkg/logger"
)

// Client talks to the Huni Messenger bot API. The bot registers itself
// by name on first start; the platform returns the same key for an
// existing name, and the key is persisted so restarts skip
// registration.
type Client struct {
	baseURL    string
	botName    string
	httpClient *http.Client

	mu     sync.RWMutex
	apiKey string
	botID  int64
}

type Room struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type RoomMessage struct {
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	IsBot      bool   `json:"isBot"`
}

type BotInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func NewClient(baseURL, botName string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		botName:    botName,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
}

func (c *Client) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

func (c *Client) BotName() string {
	return c.botName
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := c.APIKey(); key != "" {
		req.Header.Set("x-api-key", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messenger request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read messenger response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("messenger %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode messenger response: %w", err)
		}
	}
	return nil
}

// RegisterBot registers the bot by name and stores the returned API
// key. Registering an existing name returns its existing key.
func (c *Client) RegisterBot(ctx context.Context) error {
	var resp struct {
		APIKey string `json:"apiKey"`
		Key    string `json:"key"`
		ID     int64  `json:"id"`
		Bot    struct {
			ID int64 `json:"id"`
		} `json:"bot"`
	}

	if err := c.doJSON(ctx, http.MethodPost, "/api/bots", map[string]string{"name": c.botName}, &resp); err != nil {
		return fmt.Errorf("register bot: %w", err)
	}

	key := resp.APIKey
	if key == "" {
		key = resp.Key
	}
	if key == "" {
		return fmt.Errorf("register bot: no api key in response")
	}

	c.mu.Lock()
	c.apiKey = key
	if resp.Bot.ID != 0 {
		c.botID = resp.Bot.ID
	} else {
		c.botID = resp.ID
	}
	c.mu.Unlock()

	logger.InfoCF("messenger", "bot registered", map[string]interface{}{"name": c.botName})
	return nil
}

// RegisterWebhook subscribes to platform events. Idempotent: an
// existing webhook with the same URL is reused.
func (c *Client) RegisterWebhook(ctx context.Context, url string, events []string) error {
	var existing []struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/webhooks", nil, &existing); err == nil {
		for _, wh := range existing {
			if wh.URL == url {
				logger.InfoCF("messenger", "webhook already registered", map[string]interface{}{"url": url})
				return nil
			}
		}
	}

	payload := map[string]interface{}{"url": url, "events": events}
	if err := c.doJSON(ctx, http.MethodPost, "/api/webhooks", payload, nil); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}

	logger.InfoCF("messenger", "webhook registered", map[string]interface{}{"url": url})
	return nil
}

func (c *Client) SendMessage(ctx context.Context, roomID int64, content string) error {
	payload := map[string]interface{}{"roomId": roomID, "content": content, "type": "text"}
	if err := c.doJSON(ctx, http.MethodPost, "/api/send-message", payload, nil); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendTyping and StopTyping are best-effort; failures are logged and
// swallowed.
func (c *Client) SendTyping(ctx context.Context, roomID int64) {
	if err := c.doJSON(ctx, http.MethodPost, "/api/typing", map[string]interface{}{"roomId": roomID}, nil); err != nil {
		logger.DebugCF("messenger", "typing signal failed", map[string]interface{}{"error": err.Error()})
	}
}

func (c *Client) StopTyping(ctx context.Context, roomID int64) {
	if err := c.doJSON(ctx, http.MethodPost, "/api/stop-typing", map[string]interface{}{"roomId": roomID}, nil); err != nil {
		logger.DebugCF("messenger", "stop typing failed", map[string]interface{}{"error": err.Error()})
	}
}

func (c *Client) GetBotInfo(ctx context.Context) (*BotInfo, error) {
	var info BotInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/bots/me", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) GetRooms(ctx context.Context, botID int64) ([]Room, error) {
	var rooms []Room
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/bots/%d/rooms", botID), nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) GetRoomMessages(ctx context.Context, roomID int64, limit int) ([]RoomMessage, error) {
	var msgs []RoomMessage
	path := fmt.Sprintf("/api/rooms/%d/messages?limit=%d", roomID, limit)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// LoadSavedKey restores a persisted API key from dataDir, empty when
// none exists.
func LoadSavedKey(dataDir string) string {
	data, err := os.ReadFile(filepath.Join(dataDir, ".apikey"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func SaveKey(dataDir, key string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dataDir, ".apikey"), []byte(key), 0600)
}
