package testutil

import (
	"unimarket/pkg/model"
)

type BookingRequestBuilder struct {
	req model.BookingRequest
}

func NewBookingRequestBuilder() *BookingRequestBuilder {
	return &BookingRequestBuilder{
		req: model.BookingRequest{
			Name:      "Chisomo Banda",
			Email:     "chisomo@example.com",
			Phone:     "+265991234567",
			EventID:   "1",
			StallType: "drinks",
			StallName: "Chisomo Drinks",
			Duration:  model.DurationDay,
		},
	}
}

func (b *BookingRequestBuilder) WithName(name string) *BookingRequestBuilder {
	b.req.Name = name
	return b
}

func (b *BookingRequestBuilder) WithEmail(email string) *BookingRequestBuilder {
	b.req.Email = email
	return b
}

func (b *BookingRequestBuilder) WithPhone(phone string) *BookingRequestBuilder {
	b.req.Phone = phone
	return b
}

func (b *BookingRequestBuilder) WithEvent(eventID, stallType string) *BookingRequestBuilder {
	b.req.EventID = eventID
	b.req.StallType = stallType
	return b
}

func (b *BookingRequestBuilder) WithDuration(duration string) *BookingRequestBuilder {
	b.req.Duration = duration
	return b
}

func (b *BookingRequestBuilder) Build() model.BookingRequest {
	return b.req
}

// ValidBookingRequest returns a request that passes intake validation
func ValidBookingRequest() model.BookingRequest {
	return NewBookingRequestBuilder().Build()
}

// VendorHeaders returns the identity headers for a signed-in vendor
func VendorHeaders(userID string) map[string]string {
	return map[string]string{
		"X-User-ID": userID,
	}
}

// OperatorHeaders returns the identity headers for a marketplace operator
func OperatorHeaders(userID string) map[string]string {
	return map[string]string{
		"X-User-ID":   userID,
		"X-User-Role": "operator",
	}
}
