// Package auth определяет получателя (identity) запроса. Сессии выдают внешние сервисы,
// здесь они только проверяются.
package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/model"
)

const (
	GuestHeader = "X-Guest-Session"
	GuestQuery  = "guest_session"
)

// Resolver возвращает identity из r. Без учётных данных - нулевой Recipient и nil;
// непрошедшие проверку учётные данные - ErrUnauthorized.
type Resolver interface {
	Resolve(r *http.Request) (model.Recipient, error)
}

type ResolverFunc func(r *http.Request) (model.Recipient, error)

func (f ResolverFunc) Resolve(r *http.Request) (model.Recipient, error) { return f(r) }

// Chain перебирает резолверы по порядку; решает первый, нашедший учётные данные.
func Chain(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(r *http.Request) (model.Recipient, error) {
		for _, res := range resolvers {
			if res == nil {
				continue
			}
			rc, err := res.Resolve(r)
			if err != nil {
				return model.Recipient{}, err
			}
			if rc.Valid() {
				return rc, nil
			}
		}
		return model.Recipient{}, nil
	})
}

// Guest берёт id анонимной сессии из заголовка X-Guest-Session (или из параметра
// guest_session для клиентов EventSource). Id должен быть UUID.
func Guest() Resolver {
	return ResolverFunc(func(r *http.Request) (model.Recipient, error) {
		id := strings.TrimSpace(r.Header.Get(GuestHeader))
		if id == "" {
			id = strings.TrimSpace(r.URL.Query().Get(GuestQuery))
		}
		if id == "" {
			return model.Recipient{}, nil
		}
		u, err := uuid.Parse(id)
		if err != nil {
			return model.Recipient{}, apperr.Unauthorized("invalid guest session")
		}
		return model.GuestRecipient(u.String()), nil
	})
}
