package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	tele "gopkg.in/telebot.v4"
)

// metricsContext wraps tele.Context to count sent messages and detect keyboard usage.
type metricsContext struct{ tele.Context }

func (m metricsContext) incMessages(hasKB bool) {
	n := 0
	if v := m.Get("messages"); v != nil {
		if nv, ok := v.(int); ok {
			n = nv
		}
	}
	m.Set("messages", n+1)
	if hasKB {
		m.Set("kb", true)
	}
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating message counters.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// Reply proxies tele.Context.Reply while updating message counters.
func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// Edit proxies tele.Context.Edit while updating message counters.
func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// EditOrSend proxies tele.Context.EditOrSend while updating message counters.
func (m metricsContext) EditOrSend(what interface{}, opts ...interface{}) error {
	err := m.Context.EditOrSend(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// EditOrReply proxies tele.Context.EditOrReply while updating message counters.
func (m metricsContext) EditOrReply(what interface{}, opts ...interface{}) error {
	err := m.Context.EditOrReply(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// MessageMetricsMiddleware instruments context to track messages count and keyboard usage.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set("messages", 0)
		c.Set("kb", false)
		return next(metricsContext{Context: c})
	}
}

// GetCounters reads message count and keyboard presence flags from context.
func GetCounters(c tele.Context) (int, bool) {
	msgs := 0
	if v := c.Get("messages"); v != nil {
		if n, ok := v.(int); ok {
			msgs = n
		}
	}
	kb := false
	if v := c.Get("kb"); v != nil {
		if b, ok := v.(bool); ok {
			kb = b
		}
	}
	return msgs, kb
}

// UpdateMetrics holds Prometheus collectors for incoming updates.
type UpdateMetrics struct {
	Updates  *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Replies  prometheus.Counter
}

// NewUpdateMetrics creates and registers update collectors on reg.
func NewUpdateMetrics(reg prometheus.Registerer) *UpdateMetrics {
	m := &UpdateMetrics{
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airdrop",
			Subsystem: "tg",
			Name:      "updates_total",
			Help:      "Incoming Telegram updates by kind and outcome.",
		}, []string{"kind", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "airdrop",
			Subsystem: "tg",
			Name:      "update_duration_seconds",
			Help:      "Time spent handling an update.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		Replies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airdrop",
			Subsystem: "tg",
			Name:      "replies_total",
			Help:      "Messages sent or edited in response to updates.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Updates, m.Duration, m.Replies)
	}
	return m
}

// Middleware counts messages sent by handlers and records update outcomes.
func (m *UpdateMetrics) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	counted := MessageMetricsMiddleware(next)
	return func(c tele.Context) error {
		start := time.Now()
		kind := UpdateKind(c.Update())
		err := counted(c)
		m.Duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		m.Updates.WithLabelValues(kind, statusLabel(err)).Inc()
		if msgs, _ := GetCounters(c); msgs > 0 {
			m.Replies.Add(float64(msgs))
		}
		return err
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}
