package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/model"
	"github.com/storefront/messaging/internal/service"
)

// UserSyncer сохраняет отображаемые поля пользователя (имя, аватар).
type UserSyncer interface {
	Upsert(ctx context.Context, u *model.UserPublic) error
}

// InternalHandler - вход для сервисов-производителей (заказы, рассылки, профили).
// Доступ ограничивает middleware.InternalOnly.
type InternalHandler struct {
	notifs *service.NotificationService
	users  UserSyncer
}

func NewInternalHandler(notifs *service.NotificationService, users UserSyncer) *InternalHandler {
	return &InternalHandler{notifs: notifs, users: users}
}

// createNotificationRequest: пустые recipient_kind и recipient_id - глобальное уведомление.
type createNotificationRequest struct {
	RecipientKind string `json:"recipient_kind"`
	RecipientID   string `json:"recipient_id"`
	Type          string `json:"type"`
	Content       string `json:"content"`
	Link          string `json:"link"`
}

func (req createNotificationRequest) recipient() (*model.Recipient, error) {
	kind := strings.TrimSpace(req.RecipientKind)
	id := strings.TrimSpace(req.RecipientID)
	if kind == "" && id == "" {
		return nil, nil
	}
	if kind == "" {
		kind = string(model.RecipientUser)
	}
	rc := model.Recipient{Kind: model.RecipientKind(kind), ID: id}
	if !rc.Valid() {
		return nil, apperr.Validation("invalid recipient")
	}
	return &rc, nil
}

func (h *InternalHandler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rc, err := req.recipient()
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.notifs.Create(r.Context(), service.CreateNotificationInput{
		Recipient: rc,
		Type:      req.Type,
		Content:   req.Content,
		Link:      req.Link,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *InternalHandler) SyncUser(w http.ResponseWriter, r *http.Request) {
	var u model.UserPublic
	if err := decodeJSON(w, r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	u.ID = strings.TrimSpace(u.ID)
	u.Username = strings.TrimSpace(u.Username)
	if u.ID == "" || u.Username == "" {
		writeError(w, r, apperr.Validation("id and username required"))
		return
	}
	if err := h.users.Upsert(r.Context(), &u); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
