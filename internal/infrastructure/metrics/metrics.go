// Package metrics exposes prometheus collectors for payment events and the
// outbox relay.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"stoq/internal/domain/events"
	"stoq/internal/infrastructure/storage/postgres"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

// Metrics holds the collectors. Build it with New.
type Metrics struct {
	EventsTotal       *prometheus.CounterVec
	PaidValueTotal    *prometheus.CounterVec
	OutboxDeliveries  *prometheus.CounterVec
	OutboxDuration    *prometheus.HistogramVec
	OutboxDeadLetters prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg uses the
// default registerer. Collectors already registered under the same name are
// reused.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Domain events seen, by topic.",
		}, []string{"topic"}),
		PaidValueTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_paid_value_total",
			Help:      "Sum of paid payment values, by method and direction.",
		}, []string{"method", "direction"}),
		OutboxDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_deliveries_total",
			Help:      "Outbox delivery attempts, by event type and result.",
		}, []string{"event_type", "result"}),
		OutboxDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_delivery_duration_seconds",
			Help:      "Latency of outbox deliveries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		OutboxDeadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dead_letters_total",
			Help:      "Outbox messages moved to the dead-letter table.",
		}),
	}

	m.EventsTotal = register(reg, m.EventsTotal)
	m.PaidValueTotal = register(reg, m.PaidValueTotal)
	m.OutboxDeliveries = register(reg, m.OutboxDeliveries)
	m.OutboxDuration = register(reg, m.OutboxDuration)
	m.OutboxDeadLetters = register(reg, m.OutboxDeadLetters)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
	return c
}

// Publish implements events.Publisher. It counts in-process events.
func (m *Metrics) Publish(_ context.Context, e events.Event) error {
	m.EventsTotal.WithLabelValues(string(e.Topic)).Inc()
	if paid, ok := e.Payload.(events.PaymentPaid); ok {
		m.observePaid(paid)
	}
	return nil
}

func (m *Metrics) observePaid(p events.PaymentPaid) {
	m.PaidValueTotal.WithLabelValues(p.Method, p.Direction).Add(p.Value.Abs().InexactFloat64())
}

// Handle implements postgres.OutboxHandler. It counts relayed events; a
// payment.paid payload that does not decode is an error.
func (m *Metrics) Handle(_ context.Context, msg *postgres.OutboxMessage) error {
	m.EventsTotal.WithLabelValues(msg.EventType).Inc()
	if events.Topic(msg.EventType) != events.TopicPaymentPaid {
		return nil
	}
	var paid events.PaymentPaid
	if err := json.Unmarshal(msg.Payload, &paid); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	m.observePaid(paid)
	return nil
}

// Instrument wraps next, recording the result and latency of every delivery.
func (m *Metrics) Instrument(next postgres.OutboxHandler) postgres.OutboxHandler {
	return postgres.OutboxHandlerFunc(func(ctx context.Context, msg *postgres.OutboxMessage) error {
		start := time.Now()
		err := next.Handle(ctx, msg)
		result := resultSuccess
		if err != nil {
			result = resultError
		}
		m.OutboxDeliveries.WithLabelValues(msg.EventType, result).Inc()
		m.OutboxDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
		return err
	})
}

// DeadLettered records n messages moved to the dead-letter table.
func (m *Metrics) DeadLettered(n int64) {
	if n > 0 {
		m.OutboxDeadLetters.Add(float64(n))
	}
}

// RegisterPool exposes pool usage gauges read from stats on every scrape.
func RegisterPool(namespace string, reg prometheus.Registerer, stats func() postgres.PoolStats) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gauge := func(name, help string, read func(postgres.PoolStats) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(stats()) })
	}
	reg.MustRegister(
		gauge("total_conns", "Open connections.", func(s postgres.PoolStats) float64 { return float64(s.TotalConns) }),
		gauge("acquired_conns", "Connections in use.", func(s postgres.PoolStats) float64 { return float64(s.AcquiredConns) }),
		gauge("idle_conns", "Idle connections.", func(s postgres.PoolStats) float64 { return float64(s.IdleConns) }),
		gauge("max_conns", "Pool size limit.", func(s postgres.PoolStats) float64 { return float64(s.MaxConns) }),
	)
}
