package repository

import (
	"context"
	"errors"
	"fmt"

	"imagebot/internal/entities"
)

// storeErr marks a backend failure as ErrStoreUnavailable while keeping
// the driver error in the chain. A cancelled or expired caller context is
// the caller's failure, not the store's, and is passed through unlabelled.
func storeErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, entities.ErrStoreUnavailable, err)
}

const dateLayout = "2006-01-02"
