package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/model"
)

// JWT проверяет bearer-токены HS256, subject - id пользователя. Клиенты EventSource
// не умеют ставить заголовки и передают токен в ?token=.
type JWT struct {
	secret []byte
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret)}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (j *JWT) Resolve(r *http.Request) (model.Recipient, error) {
	tok := bearerToken(r)
	if tok == "" {
		return model.Recipient{}, nil
	}
	userID, err := j.Parse(tok)
	if err != nil {
		return model.Recipient{}, apperr.Unauthorized("invalid token")
	}
	return model.UserRecipient(userID), nil
}

// Parse проверяет токен и возвращает subject.
func (j *JWT) Parse(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrSignatureInvalid
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sub) == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return sub, nil
}
