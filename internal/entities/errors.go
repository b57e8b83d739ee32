package entities

import "errors"

var (
	// ErrStoreUnavailable wraps every persistence failure that is not a domain outcome.
	ErrStoreUnavailable = errors.New("ledger store unavailable")

	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")

	// ErrInvalidDecision signals a commit with Denied or an unknown entitlement.
	ErrInvalidDecision = errors.New("invalid entitlement decision")

	ErrQuotaDenied = errors.New("no generations left")
)
