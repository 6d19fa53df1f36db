package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/storefront/messaging/internal/auth"
	"github.com/storefront/messaging/internal/config"
	"github.com/storefront/messaging/internal/metrics"
	"github.com/storefront/messaging/internal/middleware"
	"github.com/storefront/messaging/internal/service"
	"github.com/storefront/messaging/internal/stream"
	"github.com/storefront/messaging/internal/ws"
)

// Deps - всё, что нужно HTTP-слою. Metrics и RateLimiter могут быть nil.
type Deps struct {
	Config        *config.Config
	Resolver      auth.Resolver
	Messages      *service.MessageService
	Notifications *service.NotificationService
	Users         UserSyncer
	Notifier      *stream.Notifier
	Hub           *ws.Hub
	Push          PushSubscriber
	Metrics       *metrics.Metrics
	RateLimiter   *middleware.RateLimiter
}

// skipCompress - WebSocket (нужен http.Hijacker) и SSE (каждое событие сразу уходит клиенту) не сжимаются.
func skipCompress(next http.Handler) http.Handler {
	compressed := chimw.Compress(5)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") || strings.HasSuffix(r.URL.Path, "/stream") {
			next.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

func NewRouter(d Deps) http.Handler {
	conv := NewConversationHandler(d.Messages)
	notif := NewNotificationHandler(d.Notifications)
	internal := NewInternalHandler(d.Notifications, d.Users)
	streamH := NewStreamHandler(d.Notifier)
	wsH := NewWSHandler(d.Hub, d.Config.CORSAllowedOrigins, d.Config.WSSendBufferSize)
	pushH := NewPushHandler(d.Push)
	configH := NewConfigHandler(d.Config, d.Notifier.Config())

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	r.Use(skipCompress)
	r.Use(middleware.RequestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.Origins(),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Guest-Session", "X-Session-Id", "X-Timestamp", "X-Signature"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Config.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	r.Get("/api/config/push", configH.GetPushConfig)
	r.Get("/api/config/stream", configH.GetStreamConfig)

	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.InternalOnly(d.Config.InternalSecret))
		r.Post("/notifications", internal.CreateNotification)
		r.Post("/users", internal.SyncUser)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(d.Resolver))

		// Поток сам отвечает событием error, если идентичности нет.
		r.Get("/api/notifications/stream", streamH.Serve)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity)
			r.Get("/ws", wsH.ServeWS)
		})

		r.Group(func(r chi.Router) {
			if d.RateLimiter != nil {
				r.Use(d.RateLimiter.Handler)
			}

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireIdentity)
				r.Get("/api/notifications", notif.List)
				r.Post("/api/notifications/read", notif.MarkRead)
				r.Get("/api/notifications/unread-count", notif.UnreadCount)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser)
				r.Get("/api/conversations", conv.List)
				r.Post("/api/conversations", conv.Open)
				r.Get("/api/conversations/{id}/messages", conv.Messages)
				r.Post("/api/conversations/{id}/messages", conv.Append)
				r.Post("/api/messages", conv.Send)
				r.Post("/api/push/subscribe", pushH.Subscribe)
				r.Delete("/api/push/subscribe", pushH.Unsubscribe)
			})
		})
	})

	return r
}
