package middleware

import (
	"net/http"
	"sync"
	"time"
)

const (
	rateLimitWindow   = time.Minute
	rateLimitMaxIP    = 200
	rateLimitMaxIdent = 100
)

type rateLimiter struct {
	mu     sync.Mutex
	times  map[string][]time.Time
	max    int
	window time.Duration
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{times: make(map[string][]time.Time), max: max, window: window}
}

func (r *rateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	cutoff := now.Add(-r.window)
	slice := r.times[key]
	i := 0
	for _, t := range slice {
		if t.After(cutoff) {
			slice[i] = t
			i++
		}
	}
	slice = slice[:i]
	if len(slice) >= r.max {
		r.times[key] = slice
		return false
	}
	r.times[key] = append(slice, now)
	return true
}

// sweep удаляет ключи без обращений в окне.
func (r *rateLimiter) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-r.window)
	for k, slice := range r.times {
		if len(slice) == 0 || !slice[len(slice)-1].After(cutoff) {
			delete(r.times, k)
		}
	}
}

// RateLimiter ограничивает запросы к /api/* по IP и по идентичности (пользователь или гость). 429 при превышении.
type RateLimiter struct {
	byIP    *rateLimiter
	byIdent *rateLimiter
}

func NewRateLimiter(maxPerIP, maxPerIdentity int) *RateLimiter {
	if maxPerIP <= 0 {
		maxPerIP = rateLimitMaxIP
	}
	if maxPerIdentity <= 0 {
		maxPerIdentity = rateLimitMaxIdent
	}
	return &RateLimiter{
		byIP:    newRateLimiter(maxPerIP, rateLimitWindow),
		byIdent: newRateLimiter(maxPerIdentity, rateLimitWindow),
	}
}

func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.byIP.allow(clientIP(r)) {
			http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
			return
		}
		if rc := GetRecipient(r.Context()); rc.Valid() {
			if !l.byIdent.allow(rc.Key()) {
				http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Sweep чистит устаревшие ключи; вызывается периодически из main.
func (l *RateLimiter) Sweep() {
	l.byIP.sweep()
	l.byIdent.sweep()
}
