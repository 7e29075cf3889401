package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyunwoolee/bandi/pkg/config"
	"github.com/hyunwoolee/bandi/pkg/logger"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Reply struct {
	Content      string
	FinishReason string
}

// Completer is the model call surface the pipeline and heartbeat
// depend on.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (*Reply, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint with
// bounded retry on network-class failures.
type Client struct {
	apiBase     string
	model       string
	temperature float64
	maxAttempts int
	baseDelay   time.Duration
	httpClient  *http.Client
}

func NewClient(cfg config.LLMConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseDelay := time.Duration(cfg.BaseDelayMS) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}

	return &Client{
		apiBase:     strings.TrimRight(cfg.APIBase, "/"),
		model:       strings.TrimSpace(cfg.Model),
		temperature: cfg.Temperature,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Complete performs the chat call, retrying network-class failures with
// exponential backoff. Non-transient failures return immediately.
func (c *Client) Complete(ctx context.Context, messages []Message) (*Reply, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		reply, err := c.completeOnce(ctx, messages)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if !IsConnectivity(err) {
			return nil, err
		}
		if attempt == c.maxAttempts {
			break
		}

		delay := c.baseDelay * time.Duration(1<<(attempt-1))
		logger.WarnCF("llm", "model call failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, &ConnectivityError{Err: ctx.Err()}
		}
	}
	return nil, lastErr
}

func (c *Client) completeOnce(ctx context.Context, messages []Message) (*Reply, error) {
	if c.apiBase == "" {
		return nil, fmt.Errorf("model API base not configured")
	}

	requestBody := map[string]interface{}{
		"messages":    messages,
		"temperature": c.temperature,
	}
	if c.model != "" {
		requestBody["model"] = c.model
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectivityError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("model API request failed: status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 500 {
			// 5xx means the server side is unhealthy; treat it like a
			// connection failure so it retries and trips the cooldown.
			return nil, &ConnectivityError{Err: err}
		}
		return nil, err
	}

	return parseResponse(body)
}

func parseResponse(body []byte) (*Reply, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(apiResponse.Choices) == 0 {
		return &Reply{Content: "", FinishReason: "stop"}, nil
	}

	choice := apiResponse.Choices[0]
	return &Reply{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
	}, nil
}
