package auditor

import (
	"context"
	"time"

	"unimarket/internal/bookings/events"
	"unimarket/internal/bookings/service"
	apperrors "unimarket/pkg/errors"
	"unimarket/pkg/kafka"
	"unimarket/pkg/logger"
	"unimarket/pkg/model"
)

// Engine is the slice of the reconciler the auditor drives
type Engine interface {
	ReconcileByID(ctx context.Context, id string) (service.Outcome, *model.Booking, error)
	ReconcilePending(ctx context.Context, batchSize int) (map[service.Outcome]int, error)
}

// Auditor settles pending bookings from two directions: a periodic sweep
// over the whole ledger, and booking-initiated events that let it verify
// a payment shortly after the payer finishes checkout.
type Auditor struct {
	engine    Engine
	interval  time.Duration
	batchSize int
	log       *logger.Logger
}

func New(engine Engine, interval time.Duration, batchSize int, log *logger.Logger) *Auditor {
	return &Auditor{
		engine:    engine,
		interval:  interval,
		batchSize: batchSize,
		log:       log.WithComponent("auditor"),
	}
}

// Run sweeps until the context is cancelled. The first sweep fires
// immediately so a restart picks up the backlog without waiting a tick.
func (a *Auditor) Run(ctx context.Context) error {
	a.log.Info("Auditor started", "interval", a.interval, "batch_size", a.batchSize)

	a.sweep(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("Auditor stopped")
			return ctx.Err()
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

func (a *Auditor) sweep(ctx context.Context) {
	start := time.Now()

	counts, err := a.engine.ReconcilePending(ctx, a.batchSize)
	if err != nil {
		a.log.Warn("Sweep finished with error",
			"duration", time.Since(start),
			"counts", outcomeFields(counts),
			"error", err,
		)
		return
	}

	if len(counts) == 0 {
		a.log.Debug("Sweep found nothing to reconcile", "duration", time.Since(start))
		return
	}

	a.log.Info("Sweep completed",
		"duration", time.Since(start),
		"counts", outcomeFields(counts),
	)
}

// HandleInitiated is the consumer handler for booking-initiated events.
// Gateway outages are transient: the message is retried and eventually
// the sweep covers the booking anyway. A vanished booking is permanent.
func (a *Auditor) HandleInitiated(ctx context.Context, msg kafka.Message) error {
	var event events.BookingInitiated
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("malformed booking initiated event", err)
	}
	if event.BookingID == "" {
		return kafka.NewPermanentError("booking initiated event missing booking_id", nil)
	}

	outcome, _, err := a.engine.ReconcileByID(ctx, event.BookingID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeGatewayUnavailable) {
			return kafka.NewTransientError("gateway unavailable", err)
		}
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			a.log.Warn("Booking from event no longer exists", "booking_id", event.BookingID)
			return kafka.NewPermanentError("booking not found", err)
		}
		return kafka.NewPermanentError("reconciliation failed", err)
	}

	a.log.Info("Event-triggered reconciliation finished",
		"booking_id", event.BookingID,
		"tx_ref", event.TxRef,
		"outcome", outcome,
	)
	return nil
}

func outcomeFields(counts map[service.Outcome]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[string(k)] = v
	}
	return out
}
