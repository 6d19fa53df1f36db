package ws

import "github.com/storefront/messaging/internal/model"

// IncomingMessage - сообщение клиента серверу.
type IncomingMessage struct {
	Type model.EventType `json:"type"`

	// join / leave: владелец комнаты, по умолчанию identity самого соединения.
	UserID string `json:"user_id,omitempty"`

	// для send_message
	RecipientID string `json:"recipient_id,omitempty"`
	Content     string `json:"content,omitempty"`
	MediaRef    string `json:"media_ref,omitempty"`
}

// OutgoingMessage - сообщение сервера клиенту.
type OutgoingMessage struct {
	Type    model.EventType `json:"type"`
	Payload any             `json:"payload"`
}

// RoomPayload - подтверждение join/leave.
type RoomPayload struct {
	Room string `json:"room"`
}

// ErrorPayload - текст ошибки для пользователя.
type ErrorPayload struct {
	Message string `json:"message"`
}

func errorEvent(msg string) OutgoingMessage {
	return OutgoingMessage{Type: model.EventError, Payload: ErrorPayload{Message: msg}}
}
