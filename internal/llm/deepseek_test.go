package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"assistgen-backend/internal/models"
)

func sseChunk(reasoning, content string) string {
	return fmt.Sprintf(
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"reasoning_content":%q,"content":%q}}]}`,
		reasoning, content)
}

func TestDeepSeekStreamReframesDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Unexpected authorization header: %q", auth)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{
			sseChunk("weighing", ""),
			sseChunk(" options", ""),
			sseChunk("", "Hello"),
			sseChunk("", " world"),
		} {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	provider := NewDeepSeek("test-key", srv.URL+"/v1", "deepseek-reasoner")
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

	expected := "data: <think>weighing</think>\n\n" +
		"data: <think> options</think>\n\n" +
		"data: Hello\n\n" +
		"data:  world\n\n" +
		"data: [DONE]\n\n"
	if string(out) != expected {
		t.Errorf("Expected %q, got %q", expected, string(out))
	}
}

func TestDeepSeekStreamAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"invalid api key","type":"authentication_error"}}`)
	}))
	defer srv.Close()

	provider := NewDeepSeek("bad-key", srv.URL+"/v1", "deepseek-chat")
	_, err := provider.Stream(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})

	var httpErr *UpstreamHTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected UpstreamHTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", httpErr.Status)
	}
}

func TestDeepSeekStreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from now on

	provider := NewDeepSeek("test-key", srv.URL+"/v1", "deepseek-chat")
	_, err := provider.Stream(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})

	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestDeepSeekMultiLineDeltaSplitsFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", sseChunk("", "line one\nline two"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	provider := NewDeepSeek("test-key", srv.URL+"/v1", "deepseek-chat")
	body, err := provider.Stream(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer body.Close()

	out, _ := io.ReadAll(body)
	expected := "data: line one\n\ndata: line two\n\ndata: [DONE]\n\n"
	if string(out) != expected {
		t.Errorf("Expected %q, got %q", expected, string(out))
	}
}
