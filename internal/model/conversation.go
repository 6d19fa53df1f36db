package model

import "time"

// Conversation определяется канонической парой (ParticipantLow, ParticipantHigh),
// где ParticipantLow = min(a, b), ParticipantHigh = max(a, b).
type Conversation struct {
	ID              string    `json:"id"`
	ParticipantLow  string    `json:"participant_low"`
	ParticipantHigh string    `json:"participant_high"`
	CreatedAt       time.Time `json:"created_at"`
}

// CanonicalPair упорядочивает id участников: порядок аргументов не влияет на пару.
func CanonicalPair(a, b string) (low, high string) {
	if a <= b {
		return a, b
	}
	return b, a
}

func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.ParticipantLow == userID || c.ParticipantHigh == userID)
}

// Other возвращает второго участника (не userID).
func (c *Conversation) Other(userID string) string {
	if c.ParticipantLow == userID {
		return c.ParticipantHigh
	}
	return c.ParticipantLow
}

// ConversationSummary - строка списка диалогов пользователя.
type ConversationSummary struct {
	ConversationID string     `json:"conversation_id"`
	Other          UserPublic `json:"other"`
	LastMessage    string     `json:"last_message"`
	LastMediaRef   string     `json:"last_media_ref,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	UnreadCount    int        `json:"unread_count"`
}
