package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/model"
)

// maxSignedBody - предел тела, читаемого для проверки подписи.
const maxSignedBody = 1 << 20

// Service проверяет подписанную сессию (X-Session-Id, X-Timestamp, X-Signature) через
// микросервис авторизации: POST {baseURL}/internal/validate.
type Service struct {
	baseURL string
	client  *http.Client
}

func NewService(baseURL string, client *http.Client) *Service {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Service{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func headerOrQuery(r *http.Request, header, query string) string {
	if v := r.Header.Get(header); v != "" {
		return v
	}
	return r.URL.Query().Get(query)
}

func (s *Service) Resolve(r *http.Request) (model.Recipient, error) {
	sessionID := headerOrQuery(r, "X-Session-Id", "session_id")
	timestamp := headerOrQuery(r, "X-Timestamp", "timestamp")
	signature := headerOrQuery(r, "X-Signature", "signature")
	if sessionID == "" && timestamp == "" && signature == "" {
		return model.Recipient{}, nil
	}
	if sessionID == "" || timestamp == "" || signature == "" {
		return model.Recipient{}, apperr.Unauthorized("incomplete session credentials")
	}

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
		if err != nil {
			return model.Recipient{}, apperr.Validation("unreadable body")
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	reqBody := map[string]string{
		"session_id": sessionID,
		"timestamp":  timestamp,
		"signature":  signature,
		"method":     r.Method,
		"path":       r.URL.Path,
		"body":       string(body),
	}
	jsonBody, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.baseURL+"/internal/validate", bytes.NewReader(jsonBody))
	if err != nil {
		return model.Recipient{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		logger.Warnf("auth: validate session: %v", err)
		return model.Recipient{}, apperr.Transient("auth.Service.Resolve", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.Recipient{}, apperr.Unauthorized("invalid session")
	}
	var result struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.UserID == "" {
		return model.Recipient{}, apperr.Unauthorized("invalid session")
	}
	return model.UserRecipient(result.UserID), nil
}
