package usecases

import (
	"context"
	"fmt"
	"time"

	"imagebot/internal/entities"
	"imagebot/internal/interfaces"

	"github.com/rs/zerolog"
)

// QuotaOptions configures the entitlement engine.
type QuotaOptions struct {
	FreeDailyLimit int
	// Location defines the calendar day boundary for the free quota.
	Location *time.Location
	// StrictPaidCommit makes paid commits conditional on a positive balance.
	StrictPaidCommit bool
	// Now overrides the clock in tests.
	Now func() time.Time
}

// QuotaUsecase resolves and commits generation entitlements. It holds no
// per-user state: every guarantee comes from single-statement store updates,
// so any number of processes can share one store.
type QuotaUsecase struct {
	store  interfaces.LedgerStore
	limit  int
	loc    *time.Location
	strict bool
	now    func() time.Time
	log    zerolog.Logger
}

func NewQuotaUsecase(store interfaces.LedgerStore, opts QuotaOptions, log zerolog.Logger) *QuotaUsecase {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	limit := opts.FreeDailyLimit
	if limit < 0 {
		limit = 0
	}
	return &QuotaUsecase{
		store:  store,
		limit:  limit,
		loc:    loc,
		strict: opts.StrictPaidCommit,
		now:    now,
		log:    log.With().Str("component", "quota").Logger(),
	}
}

// Today returns the current calendar day in the quota timezone, as a UTC
// midnight value so every backend stores the same date.
func (q *QuotaUsecase) Today() time.Time {
	y, m, d := q.now().In(q.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Register creates the account on first contact; repeated calls are no-ops.
func (q *QuotaUsecase) Register(ctx context.Context, userID int64, displayName string) error {
	return q.store.EnsureUser(ctx, userID, displayName, q.Today())
}

// Resolve decides which entitlement a generation would consume right now.
// It only reads; the decision may be stale by the time Commit runs.
func (q *QuotaUsecase) Resolve(ctx context.Context, userID int64) (entities.Entitlement, error) {
	snap, err := q.store.Snapshot(ctx, userID, q.Today())
	if err != nil {
		return entities.EntitlementDenied, fmt.Errorf("resolve entitlement: %w", err)
	}

	decision := entities.EntitlementDenied
	switch {
	case snap.UsedToday < q.limit:
		decision = entities.EntitlementFree
	case snap.PaidBalance > 0:
		decision = entities.EntitlementPaid
	}

	q.log.Debug().
		Int64("user_id", userID).
		Int("used_today", snap.UsedToday).
		Int64("paid_balance", snap.PaidBalance).
		Stringer("decision", decision).
		Msg("entitlement resolved")
	return decision, nil
}

// Commit records the consumption of a resolved entitlement. Call it only
// after the generation was delivered.
func (q *QuotaUsecase) Commit(ctx context.Context, userID int64, decision entities.Entitlement) error {
	if !decision.Chargeable() {
		q.log.Error().Int64("user_id", userID).Stringer("decision", decision).Msg("commit called with non-chargeable decision")
		return fmt.Errorf("commit %s for user %d: %w", decision, userID, entities.ErrInvalidDecision)
	}

	switch decision {
	case entities.EntitlementFree:
		used, err := q.store.IncrementDailyUsage(ctx, userID, q.Today())
		if err != nil {
			return fmt.Errorf("commit free generation: %w", err)
		}
		q.log.Info().Int64("user_id", userID).Int("used_today", used).Msg("free generation committed")
		return nil

	default:
		balance, err := q.store.DecrementBalance(ctx, userID, q.strict)
		if err != nil {
			return fmt.Errorf("commit paid generation: %w", err)
		}
		q.log.Info().Int64("user_id", userID).Int64("paid_balance", balance).Msg("paid generation committed")
		return nil
	}
}

// Balance returns the paid balance; unknown users have none.
func (q *QuotaUsecase) Balance(ctx context.Context, userID int64) (int64, error) {
	snap, err := q.store.Snapshot(ctx, userID, q.Today())
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return snap.PaidBalance, nil
}

// FreeRemainingToday returns max(limit - used_count, 0).
func (q *QuotaUsecase) FreeRemainingToday(ctx context.Context, userID int64) (int, error) {
	snap, err := q.store.Snapshot(ctx, userID, q.Today())
	if err != nil {
		return 0, fmt.Errorf("get free remaining: %w", err)
	}
	return freeRemaining(q.limit, snap.UsedToday), nil
}

// Status returns both counters from one read.
func (q *QuotaUsecase) Status(ctx context.Context, userID int64) (freeLeft int, balance int64, err error) {
	snap, err := q.store.Snapshot(ctx, userID, q.Today())
	if err != nil {
		return 0, 0, fmt.Errorf("get quota status: %w", err)
	}
	return freeRemaining(q.limit, snap.UsedToday), snap.PaidBalance, nil
}

func freeRemaining(limit, used int) int {
	if left := limit - used; left > 0 {
		return left
	}
	return 0
}
