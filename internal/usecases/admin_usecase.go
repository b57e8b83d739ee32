package usecases

import (
	"context"
	"fmt"

	"imagebot/internal/entities"
	"imagebot/internal/interfaces"

	"github.com/rs/zerolog"
)

const defaultUserListLimit = 50

// AdminUsecase adjusts paid balances on operator request. Authorization is
// the caller's job; IsAdmin exposes the configured allow-list for it.
type AdminUsecase struct {
	store    interfaces.LedgerStore
	adminIDs map[int64]struct{}
	log      zerolog.Logger
}

func NewAdminUsecase(store interfaces.LedgerStore, adminIDs []int64, log zerolog.Logger) *AdminUsecase {
	ids := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &AdminUsecase{
		store:    store,
		adminIDs: ids,
		log:      log.With().Str("component", "admin").Logger(),
	}
}

func (a *AdminUsecase) IsAdmin(userID int64) bool {
	_, ok := a.adminIDs[userID]
	return ok
}

// Credit adds amount to the user's paid balance and returns the new balance.
func (a *AdminUsecase) Credit(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, entities.ErrInvalidAmount
	}
	balance, err := a.store.AddBalance(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("credit user %d: %w", userID, err)
	}
	a.log.Info().Int64("user_id", userID).Int64("amount", amount).Int64("paid_balance", balance).Msg("balance credited")
	return balance, nil
}

// Debit subtracts amount unless that would take the balance below zero.
func (a *AdminUsecase) Debit(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, entities.ErrInvalidAmount
	}
	balance, err := a.store.SubtractBalance(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("debit user %d: %w", userID, err)
	}
	a.log.Info().Int64("user_id", userID).Int64("amount", amount).Int64("paid_balance", balance).Msg("balance debited")
	return balance, nil
}

func (a *AdminUsecase) GetUser(ctx context.Context, userID int64) (*entities.User, error) {
	return a.store.GetUser(ctx, userID)
}

// ListUsers returns the users with the largest balances first.
func (a *AdminUsecase) ListUsers(ctx context.Context, limit int) ([]entities.User, error) {
	if limit <= 0 || limit > defaultUserListLimit {
		limit = defaultUserListLimit
	}
	return a.store.ListUsers(ctx, limit)
}
