package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hyunwoolee/bandi/pkg/config"
)

func testConfig(apiBase string) config.LLMConfig {
	return config.LLMConfig{
		APIBase:        apiBase,
		Model:          "test-model",
		TimeoutSeconds: 5,
		MaxAttempts:    3,
		BaseDelayMS:    1,
		Temperature:    0.7,
	}
}

func TestCompleteParsesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hello there"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	reply, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply.Content != "hello there" || reply.FinishReason != "stop" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestCompleteRetriesConnectivityFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatalf("response writer does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			conn.Close()
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"recovered"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	reply, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply.Content != "recovered" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsConnectivity(err) {
		t.Fatalf("expected connectivity error for 5xx, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected all attempts used, got %d", calls.Load())
	}
}

func TestCompleteRecoversAfterServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"back up"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	reply, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply.Content != "back up" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestCompleteDoesNotRetryApplicationErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if IsConnectivity(err) {
		t.Fatalf("status errors are not connectivity errors: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestConnectionRefusedIsConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsConnectivity(err) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	reply, err := c.Complete(context.Background(), nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply.Content != "" {
		t.Fatalf("expected empty content, got %q", reply.Content)
	}
}
