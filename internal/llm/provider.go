package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"assistgen-backend/internal/models"
)

// ErrUpstreamUnavailable means the outbound connection to the model
// provider could not be established.
var ErrUpstreamUnavailable = errors.New("upstream provider unreachable")

// UpstreamHTTPError is returned when the provider answered the initial
// request with a non-2xx status.
type UpstreamHTTPError struct {
	Status int
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.Status)
}

// Provider opens a single streaming completion request for a conversation
// and returns its output as a byte stream already framed in the relay's
// `data: <fragment>` line protocol, terminated by `data: [DONE]`.
// Retries, if any, are the caller's policy.
type Provider interface {
	Name() string
	Stream(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error)
}

// writeFrames emits one `data:` frame per line of the fragment. Fragments
// are newline-free on the wire; a delta containing newlines is split into
// consecutive frames.
func writeFrames(w io.Writer, fragment string) error {
	for _, line := range strings.Split(fragment, "\n") {
		if line == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
			return err
		}
	}
	return nil
}

// writeThinkFrames emits reasoning fragments wrapped in think markers so
// the relay classifies them as reasoning content.
func writeThinkFrames(w io.Writer, fragment string) error {
	for _, line := range strings.Split(fragment, "\n") {
		if line == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: <think>%s</think>\n\n", line); err != nil {
			return err
		}
	}
	return nil
}

func writeDone(w io.Writer) error {
	_, err := io.WriteString(w, "data: [DONE]\n\n")
	return err
}
