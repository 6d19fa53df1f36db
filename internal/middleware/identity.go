package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/auth"
	"github.com/storefront/messaging/internal/logger"
)

// Identity кладёт в контекст идентичность запроса. Запрос без сессии или с невалидной сессией
// проходит дальше без идентичности: отказ решают RequireIdentity / RequireUser или сам handler
// (поток уведомлений отвечает событием error, а не HTTP-кодом).
func Identity(resolver auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc, err := resolver.Resolve(r)
			if err != nil {
				if apperr.IsTransient(err) {
					logger.Warnf("identity %s %s: %v", r.Method, r.URL.Path, err)
				} else {
					logger.Debugf("identity %s %s: %v", r.Method, r.URL.Path, err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if rc.Valid() {
				r = r.WithContext(WithRecipient(r.Context(), rc))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(apperr.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": apperr.Message(err)})
}

var errNoIdentity = apperr.Unauthorized("unauthorized")

// RequireIdentity отклоняет запросы без пользователя или гостевой сессии (401).
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetRecipient(r.Context()).Valid() {
			writeJSONError(w, errNoIdentity)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser пропускает только авторизованных пользователей: гостю 403, без сессии 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := GetRecipient(r.Context())
		switch {
		case !rc.Valid():
			writeJSONError(w, errNoIdentity)
		case !rc.IsUser():
			writeJSONError(w, apperr.Forbidden("sign in required"))
		default:
			next.ServeHTTP(w, r)
		}
	})
}
