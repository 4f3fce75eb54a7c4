package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"assistgen-backend/internal/models"
)

// DeepSeek streams completions from a DeepSeek-compatible (OpenAI wire
// format) endpoint. Reasoning deltas from deepseek-reasoner arrive in a
// separate field and are re-framed with think markers.
type DeepSeek struct {
	client *openai.Client
	model  string
}

func NewDeepSeek(apiKey, baseURL, model string) *DeepSeek {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &DeepSeek{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (d *DeepSeek) Name() string { return "deepseek" }

func (d *DeepSeek) Stream(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	req := openai.ChatCompletionRequest{
		Model:    d.model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}

	s, err := d.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
			return nil, &UpstreamHTTPError{Status: apiErr.HTTPStatusCode}
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer s.Close()
		for {
			resp, err := s.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					writeDone(pw)
					pw.Close()
				} else {
					pw.CloseWithError(err)
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta
			if delta.ReasoningContent != "" {
				if err := writeThinkFrames(pw, delta.ReasoningContent); err != nil {
					return
				}
			}
			if delta.Content != "" {
				if err := writeFrames(pw, delta.Content); err != nil {
					return
				}
			}
		}
	}()
	return pr, nil
}

func toOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}
