package gateway

import "errors"

var (
	// ErrUnavailable covers transport failures, timeouts, and gateway 5xx
	// responses. The caller learned nothing about the payment and must not
	// change any booking state.
	ErrUnavailable = errors.New("payment gateway unavailable")

	// ErrRejected covers explicit refusals from the gateway, such as a
	// declined initiation or a malformed request.
	ErrRejected = errors.New("payment gateway rejected request")
)
