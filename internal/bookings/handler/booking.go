package handler

import (
	"encoding/json"
	"net/http"

	"unimarket/internal/bookings/service"
	"unimarket/internal/events"
	apperrors "unimarket/pkg/errors"
	httputil "unimarket/pkg/http"
	"unimarket/pkg/logger"
	"unimarket/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// Identity headers set by the edge proxy after authentication
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	RoleOperator = "operator"
)

type BookingHandler struct {
	service    service.BookingService
	reconciler *service.Reconciler
	catalog    events.Source
	log        *logger.Logger
}

// VerificationResponse reports where a payment stands after one
// reconciliation attempt
type VerificationResponse struct {
	Outcome string         `json:"outcome"`
	Booking *model.Booking `json:"booking"`
}

func NewBookingHandler(
	svc service.BookingService,
	reconciler *service.Reconciler,
	catalog events.Source,
	log *logger.Logger,
) *BookingHandler {
	return &BookingHandler{
		service:    svc,
		reconciler: reconciler,
		catalog:    catalog,
		log:        log,
	}
}

// Checkout records a stall purchase and returns the hosted checkout URL
func (h *BookingHandler) Checkout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Checkout", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	result, err := h.service.Checkout(r.Context(), r.Header.Get(HeaderUserID), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Checkout", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Checkout", "operation", "WriteCreated", "error", err)
	}
}

// GetByID returns one booking; vendors only see their own records
func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if !h.canView(r, booking) {
		if writeErr := httputil.WriteError(w, apperrors.Forbidden("You do not have access to this booking")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// List returns bookings newest first. Vendors get their own records;
// "scope=all" is the operator view over every booking.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	userID := r.Header.Get(HeaderUserID)
	scope := model.ScopeOwn(userID)

	if r.URL.Query().Get("scope") == "all" {
		if r.Header.Get(HeaderUserRole) != RoleOperator {
			if writeErr := httputil.WriteError(w, apperrors.Forbidden("Only operators may list all bookings")); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
			}
			return
		}
		scope = model.ScopeAll()
	} else if userID == "" {
		if writeErr := httputil.WriteError(w, apperrors.Unauthorized("Missing user identity")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	bookings, total, err := h.service.List(r.Context(), scope, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

// VerifyReturn is the return-page endpoint. The payer lands here after
// checkout holding only the tx_ref; one reconciliation attempt decides
// what they see.
func (h *BookingHandler) VerifyReturn(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	txRef := r.URL.Query().Get("tx_ref")
	if txRef == "" {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Missing 'tx_ref' query parameter")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "VerifyReturn", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	outcome, booking, err := h.reconciler.ReconcileByTxRef(r.Context(), txRef)
	h.writeVerification(w, "VerifyReturn", outcome, booking, err)
}

// Verify runs one reconciliation attempt for a booking by ledger id
func (h *BookingHandler) Verify(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	booking, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Verify", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if !h.canView(r, booking) {
		if writeErr := httputil.WriteError(w, apperrors.Forbidden("You do not have access to this booking")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Verify", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	outcome, updated, err := h.reconciler.Reconcile(r.Context(), booking)
	h.writeVerification(w, "Verify", outcome, updated, err)
}

// ListEvents returns the marketplace event roster
func (h *BookingHandler) ListEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, h.catalog.List()); err != nil {
		h.log.Error("failed to write success response", "handler", "ListEvents", "operation", "WriteSuccess", "error", err)
	}
}

// GetEvent returns one event with its stall types and prices
func (h *BookingHandler) GetEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	event, ok := h.catalog.Event(ps.ByName("id"))
	if !ok {
		if writeErr := httputil.WriteError(w, apperrors.NotFoundWithID("Event", ps.ByName("id"))); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetEvent", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, event); err != nil {
		h.log.Error("failed to write success response", "handler", "GetEvent", "operation", "WriteSuccess", "error", err)
	}
}

// writeVerification maps a reconciliation outcome onto HTTP:
// settled-paid is 200, settled-failed is 402, still in progress is 202,
// and gateway trouble surfaces as the engine's own error.
func (h *BookingHandler) writeVerification(w http.ResponseWriter, handlerName string, outcome service.Outcome, booking *model.Booking, err error) {
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", handlerName, "operation", "WriteError", "error", writeErr)
		}
		return
	}

	resp := VerificationResponse{Outcome: string(outcome), Booking: booking}

	status := http.StatusAccepted
	switch {
	case booking.Status == model.StatusPaid:
		status = http.StatusOK
	case booking.Status == model.StatusFailed:
		status = http.StatusPaymentRequired
	}

	if writeErr := httputil.WriteJSON(w, status, httputil.SuccessResponse{Data: resp}); writeErr != nil {
		h.log.Error("failed to write JSON response", "handler", handlerName, "operation", "WriteJSON", "error", writeErr)
	}
}

func (h *BookingHandler) canView(r *http.Request, booking *model.Booking) bool {
	if r.Header.Get(HeaderUserRole) == RoleOperator {
		return true
	}
	userID := r.Header.Get(HeaderUserID)
	return userID != "" && booking.UserID == userID
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Checkout)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.POST("/api/v1/bookings/id/:id/verify", h.Verify)
	router.GET("/api/v1/payments/verify", h.VerifyReturn)
	router.GET("/api/v1/events", h.ListEvents)
	router.GET("/api/v1/events/id/:id", h.GetEvent)
}
