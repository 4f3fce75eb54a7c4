package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"assistgen-backend/internal/models"
)

// Ollama streams completions from a local Ollama server's /api/chat
// endpoint. Reasoning models such as deepseek-r1 emit think markers inline
// in the content, so fragments are forwarded as-is.
type Ollama struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewOllama(baseURL, model string) *Ollama {
	// No overall client timeout: responses stream for the lifetime of the
	// conversation turn. Idle detection is the relay's job.
	return &Ollama{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		model:      model,
	}
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaChatRequest struct {
	Model     string               `json:"model"`
	Messages  []models.ChatMessage `json:"messages"`
	Stream    bool                 `json:"stream"`
	KeepAlive int                  `json:"keep_alive"`
	Options   ollamaOptions        `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaChatResponse struct {
	Message models.ChatMessage `json:"message"`
	Done    bool               `json:"done"`
}

func (o *Ollama) Stream(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:     o.model,
		Messages:  messages,
		Stream:    true,
		KeepAlive: -1,
		Options:   ollamaOptions{Temperature: 0.7},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &UpstreamHTTPError{Status: resp.StatusCode}
	}

	pr, pw := io.Pipe()
	go func() {
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				// Malformed line from the provider; skip it and keep reading.
				continue
			}
			if chunk.Message.Content != "" {
				if err := writeFrames(pw, chunk.Message.Content); err != nil {
					return
				}
			}
			if chunk.Done {
				writeDone(pw)
				pw.Close()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			pw.CloseWithError(err)
			return
		}
		writeDone(pw)
		pw.Close()
	}()
	return pr, nil
}
