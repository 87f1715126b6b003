package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestChatNonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		json.NewEncoder(w).Encode(chatResponse{
			Model:   req.Model,
			Message: Message{Role: "assistant", Content: "hello"},
			Done:    true,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "test-model", time.Second)
	got, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "hello" {
		t.Errorf("Chat = %q, want %q", got, "hello")
	}
}

func TestChatStreamAccumulatesTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(chatResponse{Message: Message{Content: "hel"}})
		enc.Encode(chatResponse{Message: Message{Content: "lo"}})
		enc.Encode(chatResponse{Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "test-model", time.Second)

	var tokens []string
	got, err := c.ChatStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	if got != "hello" {
		t.Errorf("reply = %q, want %q", got, "hello")
	}
	if strings.Join(tokens, "") != "hello" {
		t.Errorf("streamed tokens = %v, want concatenation %q", tokens, "hello")
	}
}

type failingClient struct{}

func (failingClient) Chat(ctx context.Context, messages []Message) (string, error) {
	return "", errors.New("connection refused")
}

func (failingClient) ChatStream(ctx context.Context, messages []Message, cb StreamCallback) (string, error) {
	return "", errors.New("connection refused")
}

func (failingClient) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestDrafterDegradesGracefully(t *testing.T) {
	d := NewDrafter(failingClient{})
	if got := d.Draft(context.Background(), "summarize this"); got != Unavailable {
		t.Errorf("Draft with failing backend = %q, want sentinel", got)
	}

	var nilDrafter *Drafter
	if got := nilDrafter.Draft(context.Background(), "x"); got != Unavailable {
		t.Errorf("nil Drafter = %q, want sentinel", got)
	}
}
