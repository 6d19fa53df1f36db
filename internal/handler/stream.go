package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/middleware"
	"github.com/storefront/messaging/internal/model"
	"github.com/storefront/messaging/internal/stream"
)

// StreamHandler - SSE-поток notification_count. Идентичность не требуется на уровне
// middleware: без неё поток отвечает одним событием error и закрывается.
type StreamHandler struct {
	notifier *stream.Notifier
}

func NewStreamHandler(n *stream.Notifier) *StreamHandler {
	return &StreamHandler{notifier: n}
}

type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (s *sseWriter) WriteEvent(event model.EventType, data string) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// Поток живёт дольше WriteTimeout сервера.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Debugf("stream: clear write deadline: %v", err)
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	identity := middleware.GetRecipient(r.Context())
	if err := h.notifier.Serve(r.Context(), identity, &sseWriter{w: w, rc: rc}); err != nil {
		logger.Debugf("stream %s closed: %v", identity.LogKey(), err)
	}
}
