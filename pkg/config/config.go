package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Workspace     string              `json:"workspace" env:"BANDI_WORKSPACE"`
	Messenger     MessengerConfig     `json:"messenger"`
	LLM           LLMConfig           `json:"llm"`
	Channels      ChannelsConfig      `json:"channels"`
	Gateway       GatewayConfig       `json:"gateway"`
	Heartbeat     HeartbeatConfig     `json:"heartbeat"`
	History       HistoryConfig       `json:"history"`
	Notifications NotificationsConfig `json:"notifications"`
	mu            sync.RWMutex
}

// MessengerConfig describes the primary chat platform. The bot registers
// itself by name and receives new-message events on the gateway webhook.
type MessengerConfig struct {
	URL         string `json:"url" env:"BANDI_MESSENGER_URL"`
	BotName     string `json:"bot_name" env:"BANDI_MESSENGER_BOT_NAME"`
	HomeChannel string `json:"home_channel" env:"BANDI_MESSENGER_HOME_CHANNEL"`
}

type LLMConfig struct {
	APIBase        string  `json:"api_base" env:"BANDI_LLM_API_BASE"`
	Model          string  `json:"model" env:"BANDI_LLM_MODEL"`
	TimeoutSeconds int     `json:"timeout_seconds" env:"BANDI_LLM_TIMEOUT_SECONDS"`
	MaxAttempts    int     `json:"max_attempts" env:"BANDI_LLM_MAX_ATTEMPTS"`
	BaseDelayMS    int     `json:"base_delay_ms" env:"BANDI_LLM_BASE_DELAY_MS"`
	Temperature    float64 `json:"temperature" env:"BANDI_LLM_TEMPERATURE"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token     string              `json:"token" env:"BANDI_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"BANDI_CHANNELS_DISCORD_ALLOW_FROM"`
}

type GatewayConfig struct {
	Host           string `json:"host" env:"BANDI_GATEWAY_HOST"`
	Port           int    `json:"port" env:"BANDI_GATEWAY_PORT"`
	IncomingSecret string `json:"incoming_secret" env:"BANDI_GATEWAY_INCOMING_SECRET"`
}

type HeartbeatConfig struct {
	Enabled     bool   `json:"enabled" env:"BANDI_HEARTBEAT_ENABLED"`
	Interval    int    `json:"interval" env:"BANDI_HEARTBEAT_INTERVAL"` // minutes
	ActiveHours string `json:"active_hours" env:"BANDI_HEARTBEAT_ACTIVE_HOURS"`
}

type HistoryConfig struct {
	MaxMessages int `json:"max_messages" env:"BANDI_HISTORY_MAX_MESSAGES"`
}

type NotificationsConfig struct {
	Enabled bool `json:"enabled" env:"BANDI_NOTIFICATIONS_ENABLED"`
}

func DefaultConfig() *Config {
	return &Config{
		Workspace: "~/.bandi/workspace",
		Messenger: MessengerConfig{
			URL:         "http://localhost:3000",
			BotName:     "Bandi",
			HomeChannel: "1",
		},
		LLM: LLMConfig{
			APIBase:        "http://localhost:10007",
			Model:          "",
			TimeoutSeconds: 120,
			MaxAttempts:    3,
			BaseDelayMS:    2000,
			Temperature:    0.7,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 3939,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:     true,
			Interval:    60,
			ActiveHours: "08:00-23:00",
		},
		History: HistoryConfig{
			MaxMessages: 50,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Workspace)
}

// DataDir is where all durable state lives: the sqlite database, daily
// logs, skills, and the status snapshot.
func (c *Config) DataDir() string {
	return filepath.Join(c.WorkspacePath(), "data")
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
