// Package events defines the domain events published by the payment core.
// Publishing happens inside the caller's transaction; the postgres publisher
// writes to the transactional outbox so events commit or roll back with it.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"stoq/internal/core/id"
	"stoq/internal/core/types"
)

// Topic names an event type.
type Topic string

const (
	TopicPaymentPaid      Topic = "payment.paid"
	TopicPaymentCancelled Topic = "payment.cancelled"
	TopicGroupCancelled   Topic = "group.cancelled"
	TopicSaleReturned     Topic = "sale.returned"
	TopicSaleTraded       Topic = "sale.traded"
)

// Event is one domain event.
type Event struct {
	Topic         Topic
	AggregateType string
	AggregateID   id.ID
	OccurredAt    time.Time
	Payload       any
}

// PaymentPaid is the payload of TopicPaymentPaid.
type PaymentPaid struct {
	PaymentID id.ID       `json:"paymentId"`
	GroupID   id.ID       `json:"groupId"`
	Method    string      `json:"method"`
	Direction string      `json:"direction"`
	Value     types.Money `json:"value"`
}

// PaymentCancelled is the payload of TopicPaymentCancelled.
type PaymentCancelled struct {
	PaymentID id.ID `json:"paymentId"`
	GroupID   id.ID `json:"groupId"`
}

// GroupCancelled is the payload of TopicGroupCancelled.
type GroupCancelled struct {
	GroupID   id.ID `json:"groupId"`
	Cancelled int   `json:"cancelled"`
}

// SaleReturned is the payload of TopicSaleReturned and TopicSaleTraded.
type SaleReturned struct {
	ReturnedSaleID id.ID       `json:"returnedSaleId"`
	SaleID         *id.ID      `json:"saleId,omitempty"`
	NewSaleID      *id.ID      `json:"newSaleId,omitempty"`
	ReturnedTotal  types.Money `json:"returnedTotal"`
	TotalAmount    types.Money `json:"totalAmount"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Bus fans an event out to every publisher, joining their errors.
type Bus struct {
	publishers []Publisher
}

// NewBus creates a bus over pubs; nil entries are skipped.
func NewBus(pubs ...Publisher) *Bus {
	b := &Bus{}
	for _, p := range pubs {
		if p != nil {
			b.publishers = append(b.publishers, p)
		}
	}
	return b
}

// Publish implements Publisher.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if b == nil {
		return nil
	}
	var errs []error
	for _, p := range b.publishers {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory. When Err is set Publish fails
// with it and records nothing.
type Recorder struct {
	Err error

	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Topics returns the recorded topics in order.
func (r *Recorder) Topics() []Topic {
	var out []Topic
	for _, e := range r.Events() {
		out = append(out, e.Topic)
	}
	return out
}
