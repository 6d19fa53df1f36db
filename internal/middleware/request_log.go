package middleware

import (
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/storefront/messaging/internal/logger"
)

const slowRequest = time.Second

// longLived - WebSocket и SSE: их длительность не означает медленный ответ.
func longLived(r *http.Request, w chimw.WrapResponseWriter) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") ||
		w.Header().Get("Content-Type") == "text/event-stream"
}

// RequestLog пишет method, path, статус и длительность: 5xx и медленные запросы всегда,
// остальное на уровне debug.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		took := time.Since(start)
		switch {
		case ww.Status() >= http.StatusInternalServerError:
			logger.Errorf("http %s %s -> %d %v", r.Method, r.URL.Path, ww.Status(), took)
		case took > slowRequest && !longLived(r, ww):
			logger.Warnf("http %s %s -> %d slow %v", r.Method, r.URL.Path, ww.Status(), took)
		default:
			logger.Debugf("http %s %s -> %d %v", r.Method, r.URL.Path, ww.Status(), took)
		}
	})
}
