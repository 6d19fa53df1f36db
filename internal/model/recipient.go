package model

import "strings"

// RecipientKind - вид получателя: авторизованный пользователь или анонимная (гостевая) сессия.
type RecipientKind string

const (
	RecipientUser  RecipientKind = "user"
	RecipientGuest RecipientKind = "guest"
)

// Recipient - идентичность получателя уведомлений и владельца комнаты в Fanout Router.
type Recipient struct {
	Kind RecipientKind `json:"kind"`
	ID   string        `json:"id"`
}

func UserRecipient(id string) Recipient  { return Recipient{Kind: RecipientUser, ID: id} }
func GuestRecipient(id string) Recipient { return Recipient{Kind: RecipientGuest, ID: id} }

// Valid - есть ли идентичность вообще (пустой Recipient означает "нет сессии").
func (r Recipient) Valid() bool {
	if strings.TrimSpace(r.ID) == "" {
		return false
	}
	return r.Kind == RecipientUser || r.Kind == RecipientGuest
}

// IsUser - только пользователи участвуют в беседах.
func (r Recipient) IsUser() bool { return r.Kind == RecipientUser }

// Key - ключ комнаты и кеша: "<kind>:<id>".
func (r Recipient) Key() string { return string(r.Kind) + ":" + r.ID }

// LogKey - Key для логов: гостевая сессия сама является секретом, поэтому маскируется.
func (r Recipient) LogKey() string {
	if r.Kind != RecipientGuest {
		return r.Key()
	}
	id := strings.TrimSpace(r.ID)
	if len(id) <= 4 {
		return string(r.Kind) + ":****"
	}
	return string(r.Kind) + ":" + id[:4] + "***"
}
