// Package metrics - коллекторы Prometheus ядра сообщений.
// nil *Metrics допустим и ничего не пишет.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "messaging"

type Metrics struct {
	reg *prometheus.Registry

	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheInvalidations *prometheus.CounterVec
	staleServed        prometheus.Counter

	fanoutDelivered prometheus.Counter
	fanoutDropped   prometheus.Counter
	wsConnections   prometheus.Gauge
	rooms           prometheus.Gauge

	streamsActive prometheus.Gauge
	streamEvents  *prometheus.CounterVec

	messagesSent         prometheus.Counter
	notificationsCreated *prometheus.CounterVec
}

// New регистрирует все коллекторы в собственном реестре.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "unread_cache", Name: "hits_total",
			Help: "Unread-count lookups served from cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "unread_cache", Name: "misses_total",
			Help: "Unread-count lookups recomputed from the store.",
		}),
		cacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "unread_cache", Name: "invalidations_total",
			Help: "Cache invalidations by scope (recipient, all).",
		}, []string{"scope"}),
		staleServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "unread_cache", Name: "stale_served_total",
			Help: "Last-known counts returned after a transient store failure.",
		}),
		fanoutDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fanout", Name: "delivered_total",
			Help: "Events queued to live channels.",
		}),
		fanoutDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fanout", Name: "dropped_total",
			Help: "Events dropped because a channel was slow or closing.",
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "fanout", Name: "connections",
			Help: "Live WebSocket channels.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "fanout", Name: "rooms",
			Help: "Non-empty rooms.",
		}),
		streamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "stream", Name: "active",
			Help: "Open notification-count streams.",
		}),
		streamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "events_total",
			Help: "Stream events written by type.",
		}, []string{"event"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_sent_total",
			Help: "Messages appended.",
		}),
		notificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_created_total",
			Help: "Notifications created by scope (recipient, global).",
		}, []string{"scope"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheHits, m.cacheMisses, m.cacheInvalidations, m.staleServed,
		m.fanoutDelivered, m.fanoutDropped, m.wsConnections, m.rooms,
		m.streamsActive, m.streamEvents,
		m.messagesSent, m.notificationsCreated,
	)
	return m
}

// Handler отдаёт /metrics; при выключенных метриках - 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) CacheInvalidated(scope string) {
	if m != nil {
		m.cacheInvalidations.WithLabelValues(scope).Inc()
	}
}

func (m *Metrics) StaleServed() {
	if m != nil {
		m.staleServed.Inc()
	}
}

func (m *Metrics) FanoutDelivered(n int) {
	if m != nil && n > 0 {
		m.fanoutDelivered.Add(float64(n))
	}
}

func (m *Metrics) FanoutDropped() {
	if m != nil {
		m.fanoutDropped.Inc()
	}
}

func (m *Metrics) SetConnections(n int) {
	if m != nil {
		m.wsConnections.Set(float64(n))
	}
}

func (m *Metrics) SetRooms(n int) {
	if m != nil {
		m.rooms.Set(float64(n))
	}
}

func (m *Metrics) StreamOpened() {
	if m != nil {
		m.streamsActive.Inc()
	}
}

func (m *Metrics) StreamClosed() {
	if m != nil {
		m.streamsActive.Dec()
	}
}

func (m *Metrics) StreamEvent(event string) {
	if m != nil {
		m.streamEvents.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) MessageSent() {
	if m != nil {
		m.messagesSent.Inc()
	}
}

func (m *Metrics) NotificationCreated(global bool) {
	if m == nil {
		return
	}
	scope := "recipient"
	if global {
		scope = "global"
	}
	m.notificationsCreated.WithLabelValues(scope).Inc()
}
