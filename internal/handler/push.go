package handler

import (
	"context"
	"net/http"

	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/middleware"
	"github.com/storefront/messaging/internal/push"
)

// PushSubscriber - хранилище подписок (микросервис пушей).
type PushSubscriber interface {
	Subscribe(ctx context.Context, userID string, sub push.Subscription) error
	Unsubscribe(ctx context.Context, userID, endpoint string) error
}

// PushHandler обрабатывает подписку на пуш-уведомления (только пользователи).
type PushHandler struct {
	client PushSubscriber
}

func NewPushHandler(client PushSubscriber) *PushHandler {
	return &PushHandler{client: client}
}

type subscribeRequest struct {
	Subscription push.Subscription `json:"subscription"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Subscription.Valid() {
		writeError(w, r, apperr.Validation("subscription.endpoint (https) and subscription.keys required"))
		return
	}
	if err := h.client.Subscribe(r.Context(), middleware.GetUserID(r.Context()), req.Subscription); err != nil {
		writeError(w, r, apperr.Transient("push subscribe", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Endpoint == "" {
		writeError(w, r, apperr.Validation("endpoint required"))
		return
	}
	if err := h.client.Unsubscribe(r.Context(), middleware.GetUserID(r.Context()), req.Endpoint); err != nil {
		writeError(w, r, apperr.Transient("push unsubscribe", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
