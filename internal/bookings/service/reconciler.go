package service

import (
	"context"
	"errors"
	"time"

	bookingserrors "unimarket/internal/bookings/errors"
	"unimarket/internal/bookings/repository"
	"unimarket/internal/gateway"
	"unimarket/pkg/config"
	apperrors "unimarket/pkg/errors"
	"unimarket/pkg/model"
)

// Outcome classifies a single reconciliation attempt
type Outcome string

const (
	// OutcomePaid means the gateway confirmed payment and the booking settled
	OutcomePaid Outcome = "paid"
	// OutcomeFailed means the gateway reported the payment failed
	OutcomeFailed Outcome = "failed"
	// OutcomeStillPending means the payer has not completed checkout yet
	OutcomeStillPending Outcome = "still_pending"
	// OutcomeUnavailable means the gateway could not be reached; nothing changed
	OutcomeUnavailable Outcome = "gateway_unavailable"
	// OutcomeRejected means the gateway refused the verification request; nothing changed
	OutcomeRejected Outcome = "gateway_rejected"
	// OutcomeAlreadySettled means the booking was terminal before we verified
	OutcomeAlreadySettled Outcome = "already_settled"
	// OutcomeSkipped means another verification for this booking is in flight
	OutcomeSkipped Outcome = "skipped"
)

// PaymentGateway is the slice of the gateway client the engine needs
type PaymentGateway interface {
	Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error)
	Verify(ctx context.Context, txRef string) (*gateway.VerifyResult, error)
}

// PermitSender delivers the stall permit once a booking settles as paid
type PermitSender interface {
	SendPermit(ctx context.Context, booking *model.Booking) error
}

// Reconciler drives pending bookings to their terminal state. It is the
// only writer of paid and failed statuses; every path into settlement
// funnels through Reconcile.
type Reconciler struct {
	repo     repository.BookingRepository
	gateway  PaymentGateway
	permits  PermitSender
	inflight *InflightSet
	cfg      *config.Config
}

func NewReconciler(
	repo repository.BookingRepository,
	gw PaymentGateway,
	permits PermitSender,
	cfg *config.Config,
) *Reconciler {
	return &Reconciler{
		repo:     repo,
		gateway:  gw,
		permits:  permits,
		inflight: NewInflightSet(),
		cfg:      cfg,
	}
}

// ReconcileByID verifies one booking by ledger id and returns the record
// as it stands afterwards.
func (r *Reconciler) ReconcileByID(ctx context.Context, id string) (Outcome, *model.Booking, error) {
	booking, err := r.repo.FindByID(ctx, id)
	if err != nil {
		return "", nil, r.mapLookupError(err, id)
	}
	return r.Reconcile(ctx, booking)
}

// ReconcileByTxRef verifies the booking that owns a transaction reference.
// This is the return-page path: the payer comes back from checkout holding
// only the tx_ref.
func (r *Reconciler) ReconcileByTxRef(ctx context.Context, txRef string) (Outcome, *model.Booking, error) {
	if txRef == "" {
		return "", nil, apperrors.InvalidInput("Transaction reference cannot be empty")
	}

	booking, err := r.repo.FindByTxRef(ctx, txRef)
	if err != nil {
		return "", nil, r.mapLookupError(err, txRef)
	}
	return r.Reconcile(ctx, booking)
}

// Reconcile runs one verification attempt for a booking. Terminal records
// are returned untouched without a gateway call. At most one verification
// per booking runs at a time in this process; concurrent callers get
// OutcomeSkipped and the current record.
func (r *Reconciler) Reconcile(ctx context.Context, booking *model.Booking) (Outcome, *model.Booking, error) {
	if booking == nil {
		return "", nil, apperrors.InvalidInput("Booking cannot be nil")
	}

	if !booking.IsPending() {
		return OutcomeAlreadySettled, booking, nil
	}

	if !r.inflight.TryAcquire(booking.ID) {
		r.cfg.Log.Debug("Verification already in flight", "booking_id", booking.ID)
		return OutcomeSkipped, booking, nil
	}
	defer r.inflight.Release(booking.ID)

	// Re-read under the slot: another caller may have settled the record
	// between our lookup and the acquire.
	fresh, err := r.repo.FindByID(ctx, booking.ID)
	if err != nil {
		return "", nil, r.mapLookupError(err, booking.ID)
	}
	if !fresh.IsPending() {
		return OutcomeAlreadySettled, fresh, nil
	}

	if fresh.TxRef == "" {
		// Checkout was never initiated; there is nothing to ask the
		// gateway about. The record stays pending until intake retries.
		r.cfg.Log.Warn("Pending booking has no transaction reference", "booking_id", fresh.ID)
		return OutcomeStillPending, fresh, nil
	}

	result, err := r.gateway.Verify(ctx, fresh.TxRef)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			r.cfg.Log.Warn("Gateway unavailable during verification",
				"booking_id", fresh.ID,
				"tx_ref", fresh.TxRef,
				"error", err,
			)
			return OutcomeUnavailable, fresh, apperrors.GatewayUnavailable("Payment verification is temporarily unavailable", err)
		}
		r.cfg.Log.Warn("Gateway rejected verification",
			"booking_id", fresh.ID,
			"tx_ref", fresh.TxRef,
			"error", err,
		)
		return OutcomeRejected, fresh, apperrors.GatewayRejected("Payment gateway rejected the verification request")
	}

	switch {
	case result.Succeeded():
		if result.Reference == "" {
			// A settled payment always carries the gateway's reference;
			// a success without one is malformed and must not settle
			// the record.
			r.cfg.Log.Warn("Gateway reported settlement without a reference",
				"booking_id", fresh.ID,
				"tx_ref", fresh.TxRef,
			)
			return OutcomeUnavailable, fresh, apperrors.GatewayUnavailable("Payment verification returned a malformed settlement", nil)
		}
		return r.settlePaid(ctx, fresh, result)
	case result.Failed():
		return r.settleFailed(ctx, fresh)
	default:
		r.cfg.Log.Debug("Payment still pending at gateway",
			"booking_id", fresh.ID,
			"tx_ref", fresh.TxRef,
		)
		return OutcomeStillPending, fresh, nil
	}
}

// ReconcilePending sweeps a batch of unsettled bookings. Gateway outages
// abort the sweep early since every remaining call would fail the same way.
func (r *Reconciler) ReconcilePending(ctx context.Context, batchSize int) (map[Outcome]int, error) {
	pending, err := r.repo.FindPending(ctx, model.ScopeAll(), batchSize)
	if err != nil {
		return nil, apperrors.Persistence("Failed to load pending bookings", err)
	}

	counts := make(map[Outcome]int)
	for _, booking := range pending {
		outcome, _, err := r.Reconcile(ctx, booking)
		if outcome != "" {
			counts[outcome]++
		}
		if err != nil && apperrors.HasCode(err, apperrors.CodeGatewayUnavailable) {
			r.cfg.Log.Warn("Aborting sweep, gateway unavailable", "reconciled", len(counts))
			return counts, err
		}
		if ctx.Err() != nil {
			return counts, ctx.Err()
		}
	}

	return counts, nil
}

func (r *Reconciler) settlePaid(ctx context.Context, booking *model.Booking, result *gateway.VerifyResult) (Outcome, *model.Booking, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	paid := model.StatusPaid
	completed := model.PaymentCompleted

	patch := &model.BookingPatch{
		Status:        &paid,
		PaymentStatus: &completed,
		PaychanguRef:  &result.Reference,
		VerifiedAt:    &now,
	}

	updated, err := r.repo.Patch(ctx, booking.ID, patch)
	if err != nil {
		return "", nil, apperrors.Persistence("Failed to record settled payment", err)
	}

	r.cfg.Log.Info("Booking settled as paid",
		"booking_id", updated.ID,
		"tx_ref", updated.TxRef,
		"paychangu_ref", updated.PaychanguRef,
		"price", updated.Price,
	)

	// The booking is paid regardless of whether the permit email lands;
	// delivery failures are logged, never surfaced.
	if r.permits != nil {
		if err := r.permits.SendPermit(ctx, updated); err != nil {
			r.cfg.Log.Error("Failed to send stall permit",
				"booking_id", updated.ID,
				"email", updated.Email,
				"error", err,
			)
		}
	}

	return OutcomePaid, updated, nil
}

func (r *Reconciler) settleFailed(ctx context.Context, booking *model.Booking) (Outcome, *model.Booking, error) {
	failed := model.StatusFailed

	updated, err := r.repo.Patch(ctx, booking.ID, &model.BookingPatch{Status: &failed})
	if err != nil {
		return "", nil, apperrors.Persistence("Failed to record failed payment", err)
	}

	r.cfg.Log.Info("Booking settled as failed",
		"booking_id", updated.ID,
		"tx_ref", updated.TxRef,
	)

	return OutcomeFailed, updated, nil
}

func (r *Reconciler) mapLookupError(err error, ref string) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", ref)
	}
	if errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	return apperrors.Persistence("Failed to retrieve booking", err)
}
