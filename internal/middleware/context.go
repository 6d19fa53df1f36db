package middleware

import (
	"context"

	"github.com/storefront/messaging/internal/model"
)

type contextKey string

const RecipientKey contextKey = "recipient"

func WithRecipient(ctx context.Context, rc model.Recipient) context.Context {
	return context.WithValue(ctx, RecipientKey, rc)
}

// GetRecipient возвращает идентичность из контекста (устанавливается Identity); пустая - если сессии нет.
func GetRecipient(ctx context.Context) model.Recipient {
	v, _ := ctx.Value(RecipientKey).(model.Recipient)
	return v
}

// GetUserID возвращает id только для авторизованного пользователя.
func GetUserID(ctx context.Context) string {
	rc := GetRecipient(ctx)
	if !rc.IsUser() {
		return ""
	}
	return rc.ID
}
