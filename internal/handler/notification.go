package handler

import (
	"net/http"
	"strings"

	"github.com/storefront/messaging/internal/middleware"
	"github.com/storefront/messaging/internal/model"
	"github.com/storefront/messaging/internal/service"
)

type NotificationHandler struct {
	notifs *service.NotificationService
}

func NewNotificationHandler(notifs *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifs: notifs}
}

// List: параметры ?page=&page_size=&filter=all|unread|read&category=&sort=newest|oldest.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.notifs.List(r.Context(), middleware.GetRecipient(r.Context()), model.NotificationQuery{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", model.DefaultPageSize),
		Filter:   model.NotificationFilter(strings.ToLower(q.Get("filter"))),
		Category: strings.TrimSpace(q.Get("category")),
		Sort:     model.NotificationSort(strings.ToLower(q.Get("sort"))),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.notifs.MarkRead(r.Context(), middleware.GetRecipient(r.Context()), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifs.UnreadCount(r.Context(), middleware.GetRecipient(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}
