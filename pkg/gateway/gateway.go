package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hyunwoolee/bandi/pkg/bus"
	"github.com/hyunwoolee/bandi/pkg/logger"
)

const secretHeader = "x-webhook-secret"

// Inbound is where accepted webhook traffic goes. Satisfied by the
// messenger channel, which stamps the channel name and applies the
// allowlist before the message reaches the bus.
type Inbound interface {
	Publish(msg bus.InboundMessage)
}

type Config struct {
	Host           string
	Port           int
	BotName        string
	HomeChatID     string
	IncomingSecret string
}

// Server receives new-message events from the messenger platform and
// synthetic triggers from external services, filters them, and feeds
// the inbound path.
type Server struct {
	cfg     Config
	inbound Inbound
	httpSrv *http.Server
	ready   atomic.Bool
}

func NewServer(cfg Config, inbound Inbound) *Server {
	s := &Server{cfg: cfg, inbound: inbound}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("POST /webhook/incoming/", s.handleIncoming)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	logger.InfoCF("gateway", "listening", map[string]interface{}{"addr": s.httpSrv.Addr})
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway listen: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	return s.httpSrv.Shutdown(ctx)
}

// SetReady flips the readiness probe once startup wiring is complete.
func (s *Server) SetReady() {
	s.ready.Store(true)
}

type webhookPayload struct {
	Event  string `json:"event"`
	RoomID int64  `json:"roomId"`
	Data   struct {
		Content    string `json:"content"`
		Type       string `json:"type"`
		SenderName string `json:"senderName"`
		SenderID   int64  `json:"senderId"`
		IsBot      bool   `json:"isBot"`
	} `json:"data"`
}

// handleWebhook accepts new_message events. Everything that should not
// reach the model is dropped here: non-text, empty, the bot's own
// messages, other bots, and unmentioned group chatter.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	writeOK(w)

	if payload.Event != "new_message" {
		return
	}
	if payload.Data.Type != "" && payload.Data.Type != "text" {
		return
	}
	content := strings.TrimSpace(payload.Data.Content)
	if content == "" {
		return
	}
	if payload.Data.IsBot || payload.Data.SenderName == s.cfg.BotName {
		return
	}

	chatID := strconv.FormatInt(payload.RoomID, 10)
	isHome := chatID == s.cfg.HomeChatID
	mentioned := false

	// Group rooms require an explicit mention, which is stripped
	// before processing.
	if !isHome {
		mention := "@" + s.cfg.BotName
		if !strings.Contains(strings.ToLower(content), strings.ToLower(mention)) {
			return
		}
		mentioned = true
		content = stripMentionTag(content, mention)
		if content == "" {
			return
		}
	}

	s.inbound.Publish(bus.InboundMessage{
		SenderID:   fmt.Sprintf("%d|%s", payload.Data.SenderID, payload.Data.SenderName),
		SenderName: payload.Data.SenderName,
		ChatID:     chatID,
		Content:    content,
		IsMention:  mentioned,
		ReceivedAt: time.Now(),
	})
}

// handleIncoming converts an arbitrary external payload into a message
// on the home channel. When a secret is configured the request must
// carry it.
func (s *Server) handleIncoming(w http.ResponseWriter, r *http.Request) {
	if s.cfg.IncomingSecret != "" && r.Header.Get(secretHeader) != s.cfg.IncomingSecret {
		http.Error(w, "invalid webhook secret", http.StatusUnauthorized)
		return
	}

	source := strings.Trim(strings.TrimPrefix(r.URL.Path, "/webhook/incoming/"), "/")
	if source == "" {
		source = "external"
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		payload = map[string]interface{}{}
	}

	var content string
	if msg, ok := payload["message"].(string); ok {
		content = fmt.Sprintf("[Webhook from %s] %s", source, msg)
	} else {
		pretty, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			pretty = []byte("{}")
		}
		content = fmt.Sprintf("[Webhook from %s] %s", source, pretty)
	}

	logger.InfoCF("gateway", "incoming webhook", map[string]interface{}{"source": source})

	s.inbound.Publish(bus.InboundMessage{
		SenderID:   "webhook:" + source,
		SenderName: "webhook:" + source,
		ChatID:     s.cfg.HomeChatID,
		Content:    content,
		ReceivedAt: time.Now(),
	})

	writeOK(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	writeOK(w)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func stripMentionTag(content, mention string) string {
	lower := strings.ToLower(content)
	needle := strings.ToLower(mention)
	var b strings.Builder
	for {
		idx := strings.Index(lower, needle)
		if idx < 0 {
			b.WriteString(content)
			break
		}
		b.WriteString(content[:idx])
		content = content[idx+len(needle):]
		lower = lower[idx+len(needle):]
	}
	return strings.TrimSpace(b.String())
}
