package model

import "time"

// Message принадлежит ровно одному Conversation. IsRead - "получатель уже загрузил сообщение",
// меняется только false -> true.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	RecipientID    string    `json:"recipient_id,omitempty"`
	Content        string    `json:"content"`
	MediaRef       string    `json:"media_ref,omitempty"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}
