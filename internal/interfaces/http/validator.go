package http

import (
	"errors"
	"strconv"
)

const maxAdjustment = 1_000_000

var (
	errInvalidUserID = errors.New("invalid user id")
	errInvalidAmount = errors.New("amount must be a positive integer")
)

// ParseUserID accepts Telegram user ids, which are positive integers.
func ParseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidUserID
	}
	return id, nil
}

// ValidAmount bounds manual balance adjustments.
func ValidAmount(amount int64) error {
	if amount <= 0 || amount > maxAdjustment {
		return errInvalidAmount
	}
	return nil
}

// ParseLimit reads an optional list limit, falling back to def.
func ParseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
