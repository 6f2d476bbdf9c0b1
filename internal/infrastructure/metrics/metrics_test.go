package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoq/internal/core/id"
	"stoq/internal/core/types"
	"stoq/internal/domain/events"
	"stoq/internal/infrastructure/storage/postgres"
)

func paidEvent(value string) events.Event {
	return events.Event{
		Topic:       events.TopicPaymentPaid,
		AggregateID: id.New(),
		Payload: events.PaymentPaid{
			PaymentID: id.New(), GroupID: id.New(),
			Method: "money", Direction: "in", Value: types.MustMoney(value),
		},
	}
}

func TestPublishCountsTopicsAndPaidValue(t *testing.T) {
	m := New("stoq", prometheus.NewRegistry())
	ctx := context.Background()

	require.NoError(t, m.Publish(ctx, paidEvent("10.50")))
	require.NoError(t, m.Publish(ctx, paidEvent("4.50")))
	require.NoError(t, m.Publish(ctx, events.Event{Topic: events.TopicSaleReturned}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("payment.paid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("sale.returned")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.PaidValueTotal.WithLabelValues("money", "in")))
}

func TestHandleDecodesRelayedPayload(t *testing.T) {
	m := New("stoq", prometheus.NewRegistry())
	payload, err := json.Marshal(paidEvent("7.25").Payload)
	require.NoError(t, err)

	err = m.Handle(context.Background(), &postgres.OutboxMessage{EventType: "payment.paid", Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, 7.25, testutil.ToFloat64(m.PaidValueTotal.WithLabelValues("money", "in")))

	err = m.Handle(context.Background(), &postgres.OutboxMessage{EventType: "payment.paid", Payload: []byte("{")})
	assert.Error(t, err)
}

func TestInstrumentRecordsResults(t *testing.T) {
	m := New("stoq", prometheus.NewRegistry())
	boom := errors.New("boom")
	h := m.Instrument(postgres.OutboxHandlerFunc(func(_ context.Context, msg *postgres.OutboxMessage) error {
		if msg.EventType == "group.cancelled" {
			return boom
		}
		return nil
	}))

	ctx := context.Background()
	require.NoError(t, h.Handle(ctx, &postgres.OutboxMessage{EventType: "payment.cancelled"}))
	assert.ErrorIs(t, h.Handle(ctx, &postgres.OutboxMessage{EventType: "group.cancelled"}), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxDeliveries.WithLabelValues("payment.cancelled", resultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxDeliveries.WithLabelValues("group.cancelled", resultError)))

	m.DeadLettered(0)
	m.DeadLettered(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxDeadLetters))
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := New("stoq", reg)
	second := New("stoq", reg)
	assert.Same(t, first.EventsTotal, second.EventsTotal)
}

func TestRegisterPool(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterPool("stoq", reg, func() postgres.PoolStats {
		return postgres.PoolStats{TotalConns: 4, AcquiredConns: 1, IdleConns: 3, MaxConns: 25}
	})
	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
