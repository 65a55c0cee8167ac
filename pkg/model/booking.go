package model

import (
	"time"
)

// Booking status transitions are one-way: pending -> paid or pending -> failed.
// Only the reconciliation engine moves a record into a terminal state.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
)

// Payment status tracks progress through the gateway handshake,
// independent of the coarse booking status.
const (
	PaymentAwaitingInitiation = "awaiting_initiation"
	PaymentInitiated          = "initiated"
	PaymentCompleted          = "completed"
)

const (
	DurationDay  = "day"
	DurationWeek = "week"
)

// GuestUserID is the payer sentinel for unauthenticated checkouts
const GuestUserID = "guest"

// DurationLabel returns the human label used on permits and emails
func DurationLabel(duration string) string {
	if duration == DurationWeek {
		return "1 Week"
	}
	return "1 Day"
}

type Booking struct {
	ID            string     `json:"id,omitempty" bson:"_id,omitempty"`
	UserID        string     `json:"user_id" bson:"user_id"`
	Name          string     `json:"name" bson:"name"`
	Email         string     `json:"email" bson:"email"`
	Phone         string     `json:"phone" bson:"phone"`
	EventID       string     `json:"event_id" bson:"event_id"`
	EventName     string     `json:"event_name" bson:"event_name"`
	StallType     string     `json:"stall_type" bson:"stall_type"`
	StallName     string     `json:"stall_name" bson:"stall_name"`
	Duration      string     `json:"duration" bson:"duration"`
	Price         int64      `json:"price" bson:"price"`
	TxRef         string     `json:"tx_ref" bson:"tx_ref"`
	Status        string     `json:"status" bson:"status"`
	PaymentStatus string     `json:"payment_status" bson:"payment_status"`
	PaychanguRef  string     `json:"paychangu_ref,omitempty" bson:"paychangu_ref,omitempty"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty" bson:"verified_at,omitempty"`
}

// IsPending reports whether the record is still eligible for reconciliation.
// An unset status is treated identically to pending; the repository
// normalizes it at decode time, this guard is the engine's safety net.
func (b *Booking) IsPending() bool {
	return b.Status == "" || b.Status == StatusPending
}

// BookingRequest is the intake form submitted by a vendor
type BookingRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,e164"`
	EventID   string `json:"event_id" validate:"required"`
	StallType string `json:"stall_type" validate:"required"`
	StallName string `json:"stall_name" validate:"required,min=2,max=100"`
	Duration  string `json:"duration" validate:"required,oneof=day week"`
}

// BookingPatch is a partial update applied in a single atomic write.
// Nil fields are left untouched.
type BookingPatch struct {
	TxRef         *string    `bson:"tx_ref,omitempty"`
	Status        *string    `bson:"status,omitempty"`
	PaymentStatus *string    `bson:"payment_status,omitempty"`
	PaychanguRef  *string    `bson:"paychangu_ref,omitempty"`
	VerifiedAt    *time.Time `bson:"verified_at,omitempty"`
}

// IsEmpty reports whether the patch would be a no-op write
func (p *BookingPatch) IsEmpty() bool {
	return p.TxRef == nil && p.Status == nil && p.PaymentStatus == nil &&
		p.PaychanguRef == nil && p.VerifiedAt == nil
}

// ListScope selects whose bookings a query returns
type ListScope struct {
	// UserID filters to one owner's records; empty means all owners
	UserID string
}

// ScopeOwn restricts a listing to the given vendor's bookings
func ScopeOwn(userID string) ListScope {
	return ListScope{UserID: userID}
}

// ScopeAll is the operator view over every booking
func ScopeAll() ListScope {
	return ListScope{}
}
