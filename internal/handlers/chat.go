package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"assistgen-backend/internal/llm"
	"assistgen-backend/internal/models"
	"assistgen-backend/internal/stream"
)

// ChatHandler serves the streaming chat, reason and search endpoints. Each
// request gets its own relay instance, so concurrent streams share no
// mutable state.
type ChatHandler struct {
	chat        llm.Provider
	reason      llm.Provider
	search      llm.Provider
	idleTimeout time.Duration
}

func NewChatHandler(chat, reason, search llm.Provider, idleTimeout time.Duration) *ChatHandler {
	return &ChatHandler{
		chat:        chat,
		reason:      reason,
		search:      search,
		idleTimeout: idleTimeout,
	}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, h.chat)
}

func (h *ChatHandler) Reason(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, h.reason)
}

func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, h.search)
}

func (h *ChatHandler) relay(w http.ResponseWriter, r *http.Request, provider llm.Provider) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "At least one message is required", r))
		return
	}

	upstream, err := provider.Stream(r.Context(), req.Messages)
	if err != nil {
		// No bytes sent yet, so upstream failures map to HTTP statuses.
		var httpErr *llm.UpstreamHTTPError
		switch {
		case errors.As(err, &httpErr):
			writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR",
				fmt.Sprintf("%s returned HTTP %d", provider.Name(), httpErr.Status), r))
		case errors.Is(err, llm.ErrUpstreamUnavailable):
			writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_UNAVAILABLE",
				fmt.Sprintf("%s is unreachable", provider.Name()), r))
		default:
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to open model stream", r))
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	relay := stream.NewRelay(nil, h.idleTimeout)
	if err := relay.Run(r.Context(), upstream, w); err != nil {
		// Headers are out; surface a terminal error frame and let the
		// connection close end the stream for the client.
		switch {
		case errors.Is(err, context.Canceled):
			log.Printf("%s stream: client disconnected", provider.Name())
		case errors.Is(err, stream.ErrUpstreamTimeout):
			log.Printf("%s stream: upstream idle timeout", provider.Name())
			fmt.Fprint(w, "data: stream error: upstream timed out\n")
		default:
			log.Printf("%s stream failed: %v", provider.Name(), err)
			fmt.Fprint(w, "data: stream error: upstream connection lost\n")
		}
		return
	}

	log.Printf("%s stream complete: think=%d response=%d chars",
		provider.Name(), len(relay.Think()), len(relay.Response()))
}
