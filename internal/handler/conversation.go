package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storefront/messaging/internal/middleware"
	"github.com/storefront/messaging/internal/service"
)

type ConversationHandler struct {
	messages *service.MessageService
}

func NewConversationHandler(messages *service.MessageService) *ConversationHandler {
	return &ConversationHandler{messages: messages}
}

type openConversationRequest struct {
	RecipientID string `json:"recipient_id"`
}

type sendMessageRequest struct {
	RecipientID string `json:"recipient_id,omitempty"`
	Content     string `json:"content"`
	MediaRef    string `json:"media_ref,omitempty"`
}

// List - беседы текущего пользователя, свежие сверху.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.messages.ListConversations(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Open возвращает беседу с recipient_id, создавая её при первом контакте.
func (h *ConversationHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.messages.GetOrCreate(r.Context(), middleware.GetUserID(r.Context()), req.RecipientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Messages отдаёт историю по возрастанию времени и помечает входящие прочитанными.
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messages.ListMessages(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// Append пишет сообщение в существующую беседу; получатель - второй участник.
func (h *ConversationHandler) Append(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.messages.Append(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()), req.Content, req.MediaRef)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// Send пишет сообщение по получателю, открывая беседу при необходимости.
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.messages.Send(r.Context(), middleware.GetUserID(r.Context()), req.RecipientID, req.Content, req.MediaRef)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

