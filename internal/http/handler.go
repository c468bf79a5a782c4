package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/josinaldojr/ragchat/internal/rag"
)

const chatTimeout = 2 * time.Minute

// ChatService starts a streamed answer for a conversation.
type ChatService interface {
	Chat(ctx context.Context, messages []rag.Message) (rag.ChatStream, error)
}

type Handler struct {
	chat ChatService
}

func NewHandler(chat ChatService) *Handler {
	return &Handler{chat: chat}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Chat streams the model's answer as plain text, flushing after every fragment.
// Once the first byte is written the status is fixed, so later stream errors only
// end the response.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	var req rag.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
	defer cancel()

	stream, err := h.chat.Chat(ctx, req.Messages)
	if errors.Is(err, rag.ErrNoUserMessage) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("chat failed")
		http.Error(w, "failed to generate response", http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("chat stream interrupted")
			return
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			logger.Debug().Err(err).Msg("client went away")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
