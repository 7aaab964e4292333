package mpesa

import "errors"

var (
	// ErrInvalidCredentials is returned when the short code or passkey is missing.
	ErrInvalidCredentials = errors.New("mpesa: short code and passkey are required")
	// ErrAuthRejected is returned when the token endpoint answers with a non-2xx
	// status or without an access token.
	ErrAuthRejected = errors.New("mpesa: access token request rejected")
	// ErrTransport covers network errors and timeouts on either gateway call.
	ErrTransport = errors.New("mpesa: transport failure")
	// ErrInvalidAmount is returned for zero or negative bill amounts.
	ErrInvalidAmount = errors.New("mpesa: amount must be positive")
	// ErrInvalidPhone is returned for empty or non-numeric payer numbers.
	ErrInvalidPhone = errors.New("mpesa: invalid phone number")
)
