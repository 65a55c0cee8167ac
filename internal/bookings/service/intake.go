package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	bookingserrors "unimarket/internal/bookings/errors"
	"unimarket/internal/bookings/events"
	"unimarket/internal/bookings/repository"
	"unimarket/internal/bookings/validator"
	catalog "unimarket/internal/events"
	"unimarket/internal/gateway"
	"unimarket/pkg/config"
	apperrors "unimarket/pkg/errors"
	"unimarket/pkg/model"

	"github.com/google/uuid"
)

// CheckoutResult is what intake hands back to the payer: the ledger
// record and the hosted checkout page to finish payment on.
type CheckoutResult struct {
	Booking     *model.Booking `json:"booking"`
	CheckoutURL string         `json:"checkout_url"`
}

type BookingService interface {
	Checkout(ctx context.Context, userID string, req *model.BookingRequest) (*CheckoutResult, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	List(ctx context.Context, scope model.ListScope, limit int, offset int64) ([]*model.Booking, int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	gateway   PaymentGateway
	catalog   catalog.Source
	validator *validator.BookingValidator
	publisher *events.Publisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	gw PaymentGateway,
	source catalog.Source,
	v *validator.BookingValidator,
	publisher *events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		gateway:   gw,
		catalog:   source,
		validator: v,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Checkout records a stall purchase attempt and opens a gateway checkout
// session for it. The record is written before the gateway is called, so
// a crash mid-checkout leaves a pending record the auditor can settle.
func (s *bookingService) Checkout(ctx context.Context, userID string, req *model.BookingRequest) (*CheckoutResult, error) {
	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	event, ok := s.catalog.Event(req.EventID)
	if !ok {
		return nil, apperrors.InvalidSelection(fmt.Sprintf("Unknown event: %s", req.EventID))
	}
	stall, ok := event.StallType(req.StallType)
	if !ok {
		return nil, apperrors.InvalidSelection(fmt.Sprintf("Event %q has no stall type %q", event.Title, req.StallType))
	}

	price := event.PriceFor(stall.ID, req.Duration)
	if price <= 0 {
		return nil, apperrors.InvalidSelection(fmt.Sprintf("Stall type %q has no %s price for event %q", stall.ID, req.Duration, event.Title))
	}

	if userID == "" {
		userID = model.GuestUserID
	}

	booking := &model.Booking{
		UserID:        userID,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		EventID:       event.ID,
		EventName:     event.Title,
		StallType:     stall.ID,
		StallName:     req.StallName,
		Duration:      req.Duration,
		Price:         price,
		TxRef:         NewTxRef(),
		Status:        model.StatusPending,
		PaymentStatus: model.PaymentAwaitingInitiation,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		if errors.Is(err, bookingserrors.ErrDuplicateTxRef) {
			return nil, apperrors.Conflict("Transaction reference already in use")
		}
		s.cfg.Log.Error("Failed to record booking", "error", err)
		return nil, apperrors.Persistence("Failed to record booking", err)
	}

	firstName, lastName := splitName(req.Name)
	result, err := s.gateway.Initiate(ctx, gateway.InitiateRequest{
		Currency:    s.cfg.PaymentCurrency,
		Amount:      booking.Price,
		TxRef:       booking.TxRef,
		FirstName:   firstName,
		LastName:    lastName,
		Email:       booking.Email,
		CallbackURL: s.cfg.PaymentCallbackURL,
		ReturnURL:   s.cfg.PaymentReturnURL,
	})
	if err != nil {
		// The pending record stays behind either way; a retried checkout
		// creates a fresh record and reference.
		if errors.Is(err, gateway.ErrUnavailable) {
			s.cfg.Log.Error("Gateway unavailable during checkout initiation", "booking_id", booking.ID, "error", err)
			return nil, apperrors.GatewayUnavailable("Payment checkout is temporarily unavailable", err)
		}
		s.cfg.Log.Warn("Gateway rejected checkout initiation", "booking_id", booking.ID, "error", err)
		return nil, apperrors.GatewayRejected("Payment gateway rejected the checkout request")
	}

	initiated := model.PaymentInitiated
	patch := &model.BookingPatch{PaymentStatus: &initiated}
	if result.TxRef != "" && result.TxRef != booking.TxRef {
		// The gateway occasionally normalizes the reference; the ledger
		// carries whichever one verification must be run against.
		patch.TxRef = &result.TxRef
	}

	updated, err := s.repo.Patch(ctx, booking.ID, patch)
	if err != nil {
		s.cfg.Log.Error("Failed to mark booking initiated", "booking_id", booking.ID, "error", err)
		return nil, apperrors.Persistence("Failed to update booking", err)
	}

	s.cfg.Log.Info("Checkout initiated",
		"booking_id", updated.ID,
		"tx_ref", updated.TxRef,
		"event_id", updated.EventID,
		"stall_type", updated.StallType,
		"price", updated.Price,
	)

	if s.publisher != nil {
		s.publisher.BookingInitiated(ctx, events.BookingInitiated{
			BookingID:   updated.ID,
			TxRef:       updated.TxRef,
			UserID:      updated.UserID,
			EventID:     updated.EventID,
			Price:       updated.Price,
			InitiatedAt: time.Now().UTC(),
		})
	}

	return &CheckoutResult{
		Booking:     updated,
		CheckoutURL: result.CheckoutURL,
	}, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Persistence("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) List(ctx context.Context, scope model.ListScope, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, scope)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Persistence("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindAll(ctx, scope, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Persistence("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// NewTxRef mints a ledger-unique transaction reference. The millisecond
// prefix keeps references sortable by creation time in gateway dashboards.
func NewTxRef() string {
	return fmt.Sprintf("UM-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
