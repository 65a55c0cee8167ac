package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	bookingserrors "unimarket/internal/bookings/errors"
	"unimarket/internal/gateway"
	"unimarket/pkg/config"
	apperrors "unimarket/pkg/errors"
	"unimarket/pkg/logger"
	"unimarket/pkg/model"
)

// mockRepo implements repository.BookingRepository with func fields
type mockRepo struct {
	createFunc      func(ctx context.Context, booking *model.Booking) error
	findByIDFunc    func(ctx context.Context, id string) (*model.Booking, error)
	findByTxRefFunc func(ctx context.Context, txRef string) (*model.Booking, error)
	findAllFunc     func(ctx context.Context, scope model.ListScope, limit int, offset int64) ([]*model.Booking, error)
	findPendingFunc func(ctx context.Context, scope model.ListScope, limit int) ([]*model.Booking, error)
	patchFunc       func(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error)
	countFunc       func(ctx context.Context, scope model.ListScope) (int64, error)
}

func (m *mockRepo) Create(ctx context.Context, booking *model.Booking) error {
	return m.createFunc(ctx, booking)
}

func (m *mockRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockRepo) FindByTxRef(ctx context.Context, txRef string) (*model.Booking, error) {
	return m.findByTxRefFunc(ctx, txRef)
}

func (m *mockRepo) FindAll(ctx context.Context, scope model.ListScope, limit int, offset int64) ([]*model.Booking, error) {
	return m.findAllFunc(ctx, scope, limit, offset)
}

func (m *mockRepo) FindPending(ctx context.Context, scope model.ListScope, limit int) ([]*model.Booking, error) {
	return m.findPendingFunc(ctx, scope, limit)
}

func (m *mockRepo) Patch(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
	return m.patchFunc(ctx, id, patch)
}

func (m *mockRepo) Count(ctx context.Context, scope model.ListScope) (int64, error) {
	return m.countFunc(ctx, scope)
}

func (m *mockRepo) EnsureIndexes(ctx context.Context) error { return nil }

// mockGateway implements PaymentGateway with func fields
type mockGateway struct {
	initiateFunc func(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error)
	verifyFunc   func(ctx context.Context, txRef string) (*gateway.VerifyResult, error)
}

func (m *mockGateway) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	return m.initiateFunc(ctx, req)
}

func (m *mockGateway) Verify(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
	return m.verifyFunc(ctx, txRef)
}

// mockPermits implements PermitSender with func fields
type mockPermits struct {
	sendFunc func(ctx context.Context, booking *model.Booking) error
	sent     []*model.Booking
	mu       sync.Mutex
}

func (m *mockPermits) SendPermit(ctx context.Context, booking *model.Booking) error {
	m.mu.Lock()
	m.sent = append(m.sent, booking)
	m.mu.Unlock()
	if m.sendFunc != nil {
		return m.sendFunc(ctx, booking)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		PaymentCurrency: "MWK",
		Log:             logger.New(logger.Config{Output: io.Discard}),
	}
}

func pendingBooking(id string) *model.Booking {
	return &model.Booking{
		ID:            id,
		UserID:        "user-1",
		Name:          "Chikondi Banda",
		Email:         "chikondi@example.com",
		EventID:       "1",
		EventName:     "MUBAS Costume Party",
		StallType:     "drinks",
		StallName:     "Chikondi's Corner",
		Duration:      model.DurationDay,
		Price:         5000,
		TxRef:         "UM-1-abcd1234",
		Status:        model.StatusPending,
		PaymentStatus: model.PaymentInitiated,
	}
}

// apply mimics the repository's atomic patch in tests
func applyPatch(b *model.Booking, patch *model.BookingPatch) *model.Booking {
	out := *b
	if patch.TxRef != nil {
		out.TxRef = *patch.TxRef
	}
	if patch.Status != nil {
		out.Status = *patch.Status
	}
	if patch.PaymentStatus != nil {
		out.PaymentStatus = *patch.PaymentStatus
	}
	if patch.PaychanguRef != nil {
		out.PaychanguRef = *patch.PaychanguRef
	}
	if patch.VerifiedAt != nil {
		out.VerifiedAt = patch.VerifiedAt
	}
	return &out
}

func TestReconcile_PaidSettlement(t *testing.T) {
	booking := pendingBooking("b1")
	var gotPatch *model.BookingPatch

	repo := &mockRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		patchFunc: func(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
			gotPatch = patch
			return applyPatch(booking, patch), nil
		},
	}
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			return &gateway.VerifyResult{Status: gateway.PaymentSuccess, Reference: "PC-REF-9"}, nil
		},
	}
	permits := &mockPermits{}

	r := NewReconciler(repo, gw, permits, testConfig())

	outcome, updated, err := r.Reconcile(context.Background(), booking)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomePaid {
		t.Fatalf("expected OutcomePaid, got %s", outcome)
	}

	if gotPatch == nil {
		t.Fatal("expected a patch to be written")
	}
	if gotPatch.Status == nil || *gotPatch.Status != model.StatusPaid {
		t.Error("expected patch to set status=paid")
	}
	if gotPatch.PaymentStatus == nil || *gotPatch.PaymentStatus != model.PaymentCompleted {
		t.Error("expected patch to set payment_status=completed")
	}
	if gotPatch.PaychanguRef == nil || *gotPatch.PaychanguRef != "PC-REF-9" {
		t.Error("expected patch to carry the gateway reference")
	}
	if gotPatch.VerifiedAt == nil {
		t.Error("expected patch to set verified_at")
	}

	if updated.Status != model.StatusPaid {
		t.Errorf("expected updated booking paid, got %s", updated.Status)
	}
	if len(permits.sent) != 1 {
		t.Errorf("expected 1 permit sent, got %d", len(permits.sent))
	}
}

func TestReconcile_PermitFailureStillPaid(t *testing.T) {
	booking := pendingBooking("b1")
	repo := &mockRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		patchFunc: func(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
			return applyPatch(booking, patch), nil
		},
	}
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			return &gateway.VerifyResult{Status: gateway.PaymentSuccess, Reference: "PC-REF-9"}, nil
		},
	}
	permits := &mockPermits{
		sendFunc: func(ctx context.Context, booking *model.Booking) error {
			return errors.New("mailer down")
		},
	}

	r := NewReconciler(repo, gw, permits, testConfig())

	outcome, updated, err := r.Reconcile(context.Background(), booking)
	if err != nil {
		t.Fatalf("permit failure must not surface as an error, got: %v", err)
	}
	if outcome != OutcomePaid {
		t.Fatalf("expected OutcomePaid despite permit failure, got %s", outcome)
	}
	if updated.Status != model.StatusPaid {
		t.Errorf("expected booking paid, got %s", updated.Status)
	}
}

func TestReconcile_FailedSettlement(t *testing.T) {
	booking := pendingBooking("b1")
	var gotPatch *model.BookingPatch

	repo := &mockRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		patchFunc: func(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
			gotPatch = patch
			return applyPatch(booking, patch), nil
		},
	}
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			return &gateway.VerifyResult{Status: gateway.PaymentFailed}, nil
		},
	}

	r := NewReconciler(repo, gw, &mockPermits{}, testConfig())

	outcome, updated, err := r.Reconcile(context.Background(), booking)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected OutcomeFailed, got %s", outcome)
	}
	if gotPatch.Status == nil || *gotPatch.Status != model.StatusFailed {
		t.Error("expected patch to set status=failed")
	}
	if gotPatch.PaymentStatus != nil {
		t.Error("failed settlement must not touch payment_status")
	}
	if updated.Status != model.StatusFailed {
		t.Errorf("expected booking failed, got %s", updated.Status)
	}
}

func TestReconcile_StillPendingLeavesRecordUntouched(t *testing.T) {
	booking := pendingBooking("b1")
	patched := false

	repo := &mockRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		patchFunc: func(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
			patched = true
			return booking, nil
		},
	}
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			return &gateway.VerifyResult{Status: gateway.PaymentPending}, nil
		},
	}

	r := NewReconciler(repo, gw, &mockPermits{}, testConfig())

	outcome, _, err := r.Reconcile(context.Background(), booking)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeStillPending {
		t.Fatalf("expected OutcomeStillPending, got %s", outcome)
	}
	if patched {
		t.Error("a still-pending payment must not write any state")
	}
}

func TestReconcile_GatewayUnavailableLeavesRecordUntouched(t *testing.T) {
	booking := pendingBooking("b1")
	patched := false

	repo := &mockRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		patchFunc: func(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
			patched = true
			return booking, nil
		},
	}
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			return nil, fmt.Errorf("%w: connection refused", gateway.ErrUnavailable)
		},
	}

	r := NewReconciler(repo, gw, &mockPermits{}, testConfig())

	outcome, _, err := r.Reconcile(context.Background(), booking)
	if outcome != OutcomeUnavailable {
		t.Fatalf("expected OutcomeUnavailable, got %s", outcome)
	}
	if !apperrors.HasCode(err, apperrors.CodeGatewayUnavailable) {
		t.Errorf("expected GATEWAY_UNAVAILABLE error, got %v", err)
	}
	if patched {
		t.Error("a gateway outage must not write any state")
	}
}

func TestReconcile_SettlementWithoutReferenceStaysPending(t *testing.T) {
	booking := pendingBooking("b1")
	patched := false

	repo := &mockRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		patchFunc: func(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
			patched = true
			return booking, nil
		},
	}
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			return &gateway.VerifyResult{Status: gateway.PaymentSuccess}, nil
		},
	}

	r := NewReconciler(repo, gw, &mockPermits{}, testConfig())

	outcome, got, err := r.Reconcile(context.Background(), booking)
	if outcome != OutcomeUnavailable {
		t.Fatalf("expected OutcomeUnavailable for a success without a reference, got %s", outcome)
	}
	if !apperrors.HasCode(err, apperrors.CodeGatewayUnavailable) {
		t.Errorf("expected GATEWAY_UNAVAILABLE error, got %v", err)
	}
	if patched {
		t.Error("a malformed settlement must not write any state")
	}
	if got.Status != model.StatusPending {
		t.Errorf("expected booking still pending, got %s", got.Status)
	}
}

func TestReconcile_TerminalRecordSkipsGateway(t *testing.T) {
	booking := pendingBooking("b1")
	booking.Status = model.StatusPaid

	verifyCalls := 0
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			verifyCalls++
			return &gateway.VerifyResult{Status: gateway.PaymentSuccess}, nil
		},
	}

	r := NewReconciler(&mockRepo{}, gw, &mockPermits{}, testConfig())

	outcome, got, err := r.Reconcile(context.Background(), booking)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeAlreadySettled {
		t.Fatalf("expected OutcomeAlreadySettled, got %s", outcome)
	}
	if verifyCalls != 0 {
		t.Errorf("terminal record must not reach the gateway, got %d calls", verifyCalls)
	}
	if got.Status != model.StatusPaid {
		t.Errorf("terminal record must come back unchanged, got %s", got.Status)
	}
}

func TestReconcile_SettledBetweenLookupAndAcquire(t *testing.T) {
	stale := pendingBooking("b1")
	settled := pendingBooking("b1")
	settled.Status = model.StatusPaid

	verifyCalls := 0
	repo := &mockRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return settled, nil
		},
	}
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			verifyCalls++
			return &gateway.VerifyResult{Status: gateway.PaymentSuccess}, nil
		},
	}

	r := NewReconciler(repo, gw, &mockPermits{}, testConfig())

	outcome, _, err := r.Reconcile(context.Background(), stale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeAlreadySettled {
		t.Fatalf("expected OutcomeAlreadySettled after re-read, got %s", outcome)
	}
	if verifyCalls != 0 {
		t.Errorf("expected no gateway call, got %d", verifyCalls)
	}
}

func TestReconcile_MissingTxRefStaysPending(t *testing.T) {
	booking := pendingBooking("b1")
	booking.TxRef = ""
	booking.PaymentStatus = model.PaymentAwaitingInitiation

	verifyCalls := 0
	repo := &mockRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
	}
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			verifyCalls++
			return nil, nil
		},
	}

	r := NewReconciler(repo, gw, &mockPermits{}, testConfig())

	outcome, _, err := r.Reconcile(context.Background(), booking)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeStillPending {
		t.Fatalf("expected OutcomeStillPending, got %s", outcome)
	}
	if verifyCalls != 0 {
		t.Error("a booking without a tx_ref must not reach the gateway")
	}
}

func TestReconcile_ConcurrentCallersShareOneVerify(t *testing.T) {
	booking := pendingBooking("b1")

	var verifyCalls int32
	verifyEntered := make(chan struct{})
	verifyRelease := make(chan struct{})

	repo := &mockRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		patchFunc: func(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
			return applyPatch(booking, patch), nil
		},
	}
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			if atomic.AddInt32(&verifyCalls, 1) == 1 {
				close(verifyEntered)
				<-verifyRelease
			}
			return &gateway.VerifyResult{Status: gateway.PaymentSuccess, Reference: "PC-REF-9"}, nil
		},
	}

	r := NewReconciler(repo, gw, &mockPermits{}, testConfig())

	done := make(chan Outcome, 1)
	go func() {
		outcome, _, _ := r.Reconcile(context.Background(), booking)
		done <- outcome
	}()

	<-verifyEntered

	// Second caller while the first holds the slot
	outcome, _, err := r.Reconcile(context.Background(), booking)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("expected OutcomeSkipped for concurrent caller, got %s", outcome)
	}

	close(verifyRelease)
	if first := <-done; first != OutcomePaid {
		t.Fatalf("expected first caller to settle paid, got %s", first)
	}

	if calls := atomic.LoadInt32(&verifyCalls); calls != 1 {
		t.Errorf("expected exactly one gateway verification, got %d", calls)
	}
}

func TestReconcileByTxRef(t *testing.T) {
	booking := pendingBooking("b1")

	repo := &mockRepo{
		findByTxRefFunc: func(ctx context.Context, txRef string) (*model.Booking, error) {
			if txRef != booking.TxRef {
				return nil, bookingserrors.ErrNotFound
			}
			return booking, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		patchFunc: func(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
			return applyPatch(booking, patch), nil
		},
	}
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			return &gateway.VerifyResult{Status: gateway.PaymentSuccess, Reference: "PC-REF-9"}, nil
		},
	}

	r := NewReconciler(repo, gw, &mockPermits{}, testConfig())

	outcome, _, err := r.ReconcileByTxRef(context.Background(), booking.TxRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomePaid {
		t.Fatalf("expected OutcomePaid, got %s", outcome)
	}

	_, _, err = r.ReconcileByTxRef(context.Background(), "UM-unknown")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND for unknown tx_ref, got %v", err)
	}

	_, _, err = r.ReconcileByTxRef(context.Background(), "")
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for empty tx_ref, got %v", err)
	}
}

func TestReconcilePending_SweepCountsOutcomes(t *testing.T) {
	store := map[string]*model.Booking{
		"b1": pendingBooking("b1"),
		"b2": pendingBooking("b2"),
		"b3": pendingBooking("b3"),
	}
	store["b2"].TxRef = "UM-2-bcde2345"
	store["b3"].TxRef = "UM-3-cdef3456"

	results := map[string]string{
		"UM-1-abcd1234": gateway.PaymentSuccess,
		"UM-2-bcde2345": gateway.PaymentFailed,
		"UM-3-cdef3456": gateway.PaymentPending,
	}

	var mu sync.Mutex
	repo := &mockRepo{
		findPendingFunc: func(ctx context.Context, scope model.ListScope, limit int) ([]*model.Booking, error) {
			return []*model.Booking{store["b1"], store["b2"], store["b3"]}, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			mu.Lock()
			defer mu.Unlock()
			return store[id], nil
		},
		patchFunc: func(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
			mu.Lock()
			defer mu.Unlock()
			store[id] = applyPatch(store[id], patch)
			return store[id], nil
		},
	}
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			return &gateway.VerifyResult{Status: results[txRef], Reference: "PC-" + txRef}, nil
		},
	}

	r := NewReconciler(repo, gw, &mockPermits{}, testConfig())

	counts, err := r.ReconcilePending(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if counts[OutcomePaid] != 1 || counts[OutcomeFailed] != 1 || counts[OutcomeStillPending] != 1 {
		t.Errorf("unexpected outcome counts: %v", counts)
	}
	if store["b1"].Status != model.StatusPaid {
		t.Errorf("expected b1 paid, got %s", store["b1"].Status)
	}
	if store["b2"].Status != model.StatusFailed {
		t.Errorf("expected b2 failed, got %s", store["b2"].Status)
	}
	if store["b3"].Status != model.StatusPending {
		t.Errorf("expected b3 still pending, got %s", store["b3"].Status)
	}
}

func TestReconcilePending_AbortsWhenGatewayDown(t *testing.T) {
	var verifyCalls int32

	repo := &mockRepo{
		findPendingFunc: func(ctx context.Context, scope model.ListScope, limit int) ([]*model.Booking, error) {
			return []*model.Booking{pendingBooking("b1"), pendingBooking("b2")}, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := pendingBooking(id)
			return b, nil
		},
	}
	gw := &mockGateway{
		verifyFunc: func(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
			atomic.AddInt32(&verifyCalls, 1)
			return nil, fmt.Errorf("%w: timeout", gateway.ErrUnavailable)
		},
	}

	r := NewReconciler(repo, gw, &mockPermits{}, testConfig())

	_, err := r.ReconcilePending(context.Background(), 50)
	if !apperrors.HasCode(err, apperrors.CodeGatewayUnavailable) {
		t.Fatalf("expected GATEWAY_UNAVAILABLE, got %v", err)
	}
	if calls := atomic.LoadInt32(&verifyCalls); calls != 1 {
		t.Errorf("sweep should abort after the first outage, got %d calls", calls)
	}
}

func TestInflightSet(t *testing.T) {
	set := NewInflightSet()

	if !set.TryAcquire("b1") {
		t.Fatal("expected first acquire to succeed")
	}
	if set.TryAcquire("b1") {
		t.Fatal("expected second acquire to fail while held")
	}
	if !set.TryAcquire("b2") {
		t.Fatal("expected acquire of a different booking to succeed")
	}
	if set.Size() != 2 {
		t.Errorf("expected 2 in flight, got %d", set.Size())
	}

	set.Release("b1")
	if !set.TryAcquire("b1") {
		t.Fatal("expected acquire after release to succeed")
	}

	// Releasing an unheld slot is a no-op
	set.Release("never-held")
}
