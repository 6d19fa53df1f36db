package handler

import (
	"net/http"

	"github.com/storefront/messaging/internal/config"
	"github.com/storefront/messaging/internal/stream"
)

// ConfigHandler отдаёт публичные параметры конфигурации клиенту (без авторизации).
type ConfigHandler struct {
	cfg    *config.Config
	stream stream.Config
}

func NewConfigHandler(cfg *config.Config, sc stream.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, stream: sc}
}

// GetPushConfig возвращает публичный VAPID-ключ для подписки на пуши (если включены).
func (h *ConfigHandler) GetPushConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg.PushServiceURL == "" || h.cfg.PushVAPIDPublicKey == "" {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":          true,
		"vapid_public_key": h.cfg.PushVAPIDPublicKey,
	})
}

// GetStreamConfig - интервалы потока, чтобы клиент выбрал паузу переподключения.
func (h *ConfigHandler) GetStreamConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"base_interval_ms":  h.stream.BaseInterval.Milliseconds(),
		"idle_interval_ms":  h.stream.IdleInterval.Milliseconds(),
		"idle_after_ticks":  h.stream.IdleAfter,
		"max_display_count": stream.MaxDisplayCount,
	})
}
