package events

import (
	"context"
	"time"

	"unimarket/pkg/kafka"
	"unimarket/pkg/logger"
)

// Topics carrying booking lifecycle events
const (
	TopicBookingInitiated    = "bookings.initiated"
	TopicBookingInitiatedDLQ = "bookings.initiated.dlq"
)

const EventTypeBookingInitiated = "booking.initiated"

// BookingInitiated is published after intake hands a payer off to the
// gateway checkout. The auditor consumes it to verify the payment soon
// after the payer returns, without waiting for the next sweep.
type BookingInitiated struct {
	BookingID   string    `json:"booking_id"`
	TxRef       string    `json:"tx_ref"`
	UserID      string    `json:"user_id"`
	EventID     string    `json:"event_id"`
	Price       int64     `json:"price"`
	InitiatedAt time.Time `json:"initiated_at"`
}

// Publisher emits booking lifecycle events. Publishing is advisory: the
// periodic sweep settles any booking whose event is lost, so failures are
// logged and swallowed.
type Publisher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

func NewPublisher(producer *kafka.Producer, source string, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		source:   source,
		log:      log.WithComponent("events"),
	}
}

func (p *Publisher) BookingInitiated(ctx context.Context, event BookingInitiated) {
	if p == nil || p.producer == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventType(EventTypeBookingInitiated).
		WithCorrelationID(event.TxRef).
		WithSource(p.source).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Warn("Failed to publish booking initiated event",
			"booking_id", event.BookingID,
			"tx_ref", event.TxRef,
			"error", err,
		)
		return
	}

	p.log.Debug("Published booking initiated event",
		"booking_id", event.BookingID,
		"tx_ref", event.TxRef,
	)
}
