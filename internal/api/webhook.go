package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/taskmate/tmbot/internal/chat"
)

// UpdateParser decodes a platform webhook request. ok is false for update
// types the bot ignores.
type UpdateParser interface {
	ParseWebhook(r *http.Request) (upd chat.Update, ok bool, err error)
}

// Enqueuer accepts updates for ordered per-chat processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, u chat.Update) error
}

// WebhookHandler feeds pushed updates into the chat queue.
type WebhookHandler struct {
	parser UpdateParser
	queue  Enqueuer
	logger *slog.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(parser UpdateParser, queue Enqueuer, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{parser: parser, queue: queue, logger: logger}
}

// ServeHTTP acknowledges every decodable update. The platform retries on
// non-2xx, so only undecodable bodies and a stopping queue are refused.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("request_id", chiMiddleware.GetReqID(r.Context()))

	upd, ok, err := h.parser.ParseWebhook(r)
	if err != nil {
		logger.Warn("Rejected webhook body", "error", err)
		Error(w, http.StatusBadRequest, "invalid update")
		return
	}
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.queue.Enqueue(r.Context(), upd); err != nil {
		logger.Warn("Failed to enqueue update", "chat_id", upd.ChatID, "error", err)
		Error(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Register mounts the handler at path.
func (h *WebhookHandler) Register(r chi.Router, path string) {
	if path == "" {
		path = "/webhook"
	}
	r.Post(path, h.ServeHTTP)
}
