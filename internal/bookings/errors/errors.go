package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrDuplicateTxRef = errors.New("transaction reference already exists")

	ErrUnknownEvent = errors.New("unknown event")

	ErrUnknownStallType = errors.New("unknown stall type for event")

	ErrAlreadySettled = errors.New("booking already settled")

	ErrVerificationInFlight = errors.New("verification already in flight for booking")
)
