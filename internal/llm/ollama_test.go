package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"assistgen-backend/internal/models"
)

func TestOllamaStreamReframesChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("Expected stream=true")
		}
		if req.KeepAlive != -1 {
			t.Errorf("Expected keep_alive=-1, got %d", req.KeepAlive)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hi" {
			t.Errorf("Unexpected messages: %v", req.Messages)
		}

		chunks := []ollamaChatResponse{
			{Message: models.ChatMessage{Role: models.RoleAssistant, Content: "<think>"}},
			{Message: models.ChatMessage{Role: models.RoleAssistant, Content: "Hel"}},
			{Message: models.ChatMessage{Role: models.RoleAssistant, Content: "lo"}},
			{Done: true},
		}
		enc := json.NewEncoder(w)
		for _, c := range chunks {
			enc.Encode(c)
		}
	}))
	defer srv.Close()

	provider := NewOllama(srv.URL, "test-model")
	body, err := provider.Stream(context.Background(), []models.ChatMessage{
		{Role: models.RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer body.Close()

	out, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("Failed to read stream: %v", err)
	}

	expected := "data: <think>\n\ndata: Hel\n\ndata: lo\n\ndata: [DONE]\n\n"
	if string(out) != expected {
		t.Errorf("Expected %q, got %q", expected, string(out))
	}
}

func TestOllamaStreamSkipsMalformedLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json\n")
		io.WriteString(w, `{"message":{"content":"ok"},"done":false}`+"\n")
		io.WriteString(w, `{"done":true}`+"\n")
	}))
	defer srv.Close()

	provider := NewOllama(srv.URL, "test-model")
	body, err := provider.Stream(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer body.Close()

	out, _ := io.ReadAll(body)
	expected := "data: ok\n\ndata: [DONE]\n\n"
	if string(out) != expected {
		t.Errorf("Expected %q, got %q", expected, string(out))
	}
}

func TestOllamaStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	provider := NewOllama(srv.URL, "missing-model")
	_, err := provider.Stream(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})

	var httpErr *UpstreamHTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected UpstreamHTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", httpErr.Status)
	}
}

func TestOllamaStreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from now on

	provider := NewOllama(srv.URL, "test-model")
	_, err := provider.Stream(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})

	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got %v", err)
	}
}
