package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"imagebot/internal/entities"

	"github.com/rs/zerolog"
)

var fixedNow = time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)

func newTestQuota(store *fakeLedger, limit int) *QuotaUsecase {
	return NewQuotaUsecase(store, QuotaOptions{
		FreeDailyLimit:   limit,
		StrictPaidCommit: true,
		Now:              func() time.Time { return fixedNow },
	}, zerolog.Nop())
}

func mustResolve(t *testing.T, q *QuotaUsecase, userID int64) entities.Entitlement {
	t.Helper()
	d, err := q.Resolve(context.Background(), userID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return d
}

func TestQuota_FreshUserGetsOneFreeGeneration(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	q := newTestQuota(store, 1)
	if err := q.Register(ctx, 1, "alice"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if d := mustResolve(t, q, 1); d != entities.EntitlementFree {
		t.Fatalf("first resolve = %s, want free", d)
	}
	if err := q.Commit(ctx, 1, entities.EntitlementFree); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if d := mustResolve(t, q, 1); d != entities.EntitlementDenied {
		t.Errorf("second resolve = %s, want denied", d)
	}
}

func TestQuota_PaidBalanceDrainsToDenied(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	q := newTestQuota(store, 1)
	_ = q.Register(ctx, 1, "bob")
	store.setBalance(1, 3)
	_ = q.Commit(ctx, 1, entities.EntitlementFree)

	for i := 0; i < 3; i++ {
		d := mustResolve(t, q, 1)
		if d != entities.EntitlementPaid {
			t.Fatalf("resolve #%d = %s, want paid", i+1, d)
		}
		if err := q.Commit(ctx, 1, d); err != nil {
			t.Fatalf("Commit #%d failed: %v", i+1, err)
		}
	}
	if _, balance := store.counters(1, q.Today()); balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
	if d := mustResolve(t, q, 1); d != entities.EntitlementDenied {
		t.Errorf("fourth resolve = %s, want denied", d)
	}
}

func TestQuota_FreeBeforePaid(t *testing.T) {
	store := newFakeLedger()
	q := newTestQuota(store, 3)
	store.setBalance(1, 10)

	for i := 0; i < 3; i++ {
		if d := mustResolve(t, q, 1); d != entities.EntitlementFree {
			t.Fatalf("resolve with %d used = %s, want free", i, d)
		}
		_ = q.Commit(context.Background(), 1, entities.EntitlementFree)
	}
	if d := mustResolve(t, q, 1); d != entities.EntitlementPaid {
		t.Errorf("resolve after free exhausted = %s, want paid", d)
	}
}

func TestQuota_ResolveIsReadOnly(t *testing.T) {
	store := newFakeLedger()
	q := newTestQuota(store, 1)
	store.setBalance(1, 2)

	for i := 0; i < 10; i++ {
		mustResolve(t, q, 1)
	}
	used, balance := store.counters(1, q.Today())
	if used != 0 || balance != 2 {
		t.Errorf("counters changed by resolve: used=%d balance=%d", used, balance)
	}
}

func TestQuota_CommitRejectsDenied(t *testing.T) {
	store := newFakeLedger()
	q := newTestQuota(store, 0)
	store.setBalance(1, 0)

	d := mustResolve(t, q, 1)
	if d != entities.EntitlementDenied {
		t.Fatalf("resolve = %s, want denied", d)
	}
	err := q.Commit(context.Background(), 1, d)
	if !errors.Is(err, entities.ErrInvalidDecision) {
		t.Errorf("Commit(denied) err = %v, want ErrInvalidDecision", err)
	}
	if used, balance := store.counters(1, q.Today()); used != 0 || balance != 0 {
		t.Errorf("counters changed: used=%d balance=%d", used, balance)
	}
}

func TestQuota_CommitRejectsUnknownEntitlement(t *testing.T) {
	store := newFakeLedger()
	q := newTestQuota(store, 1)
	store.setBalance(1, 2)

	err := q.Commit(context.Background(), 1, entities.Entitlement(7))
	if !errors.Is(err, entities.ErrInvalidDecision) {
		t.Errorf("err = %v, want ErrInvalidDecision", err)
	}
	if used, balance := store.counters(1, q.Today()); used != 0 || balance != 2 {
		t.Errorf("counters changed: used=%d balance=%d", used, balance)
	}
}

func TestQuota_ConcurrentFreeCommitsAreNotLost(t *testing.T) {
	store := newFakeLedger()
	q := newTestQuota(store, 1)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.Commit(context.Background(), 1, entities.EntitlementFree); err != nil {
				t.Errorf("Commit failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if used, _ := store.counters(1, q.Today()); used != n {
		t.Errorf("used_count = %d, want %d", used, n)
	}
}

func TestQuota_StoreUnavailableIsNotDenied(t *testing.T) {
	store := newFakeLedger()
	store.err = errors.New("connection refused")
	q := newTestQuota(store, 1)

	_, err := q.Resolve(context.Background(), 1)
	if !errors.Is(err, entities.ErrStoreUnavailable) {
		t.Errorf("Resolve err = %v, want ErrStoreUnavailable", err)
	}
	if err := q.Commit(context.Background(), 1, entities.EntitlementFree); !errors.Is(err, entities.ErrStoreUnavailable) {
		t.Errorf("Commit err = %v, want ErrStoreUnavailable", err)
	}
}

func TestQuota_StrictPaidCommit(t *testing.T) {
	store := newFakeLedger()
	store.setBalance(1, 0)

	strict := newTestQuota(store, 0)
	if err := strict.Commit(context.Background(), 1, entities.EntitlementPaid); !errors.Is(err, entities.ErrInsufficientBalance) {
		t.Errorf("strict commit err = %v, want ErrInsufficientBalance", err)
	}

	lenient := NewQuotaUsecase(store, QuotaOptions{Now: func() time.Time { return fixedNow }}, zerolog.Nop())
	if err := lenient.Commit(context.Background(), 1, entities.EntitlementPaid); err != nil {
		t.Fatalf("lenient commit failed: %v", err)
	}
	if _, balance := store.counters(1, fixedNow); balance != -1 {
		t.Errorf("lenient balance = %d, want -1", balance)
	}
}

func TestQuota_TodayFollowsTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	late := time.Date(2026, 10, 19, 22, 30, 0, 0, time.UTC)

	q := NewQuotaUsecase(newFakeLedger(), QuotaOptions{
		FreeDailyLimit: 1,
		Location:       loc,
		Now:            func() time.Time { return late },
	}, zerolog.Nop())

	want := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	if got := q.Today(); !got.Equal(want) {
		t.Errorf("Today = %v, want %v", got, want)
	}
}

func TestQuota_NewDayRestoresFreeGeneration(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	now := fixedNow
	q := NewQuotaUsecase(store, QuotaOptions{FreeDailyLimit: 1, Now: func() time.Time { return now }}, zerolog.Nop())

	_ = q.Commit(ctx, 1, entities.EntitlementFree)
	if d := mustResolve(t, q, 1); d != entities.EntitlementDenied {
		t.Fatalf("same day resolve = %s, want denied", d)
	}

	now = now.Add(24 * time.Hour)
	if d := mustResolve(t, q, 1); d != entities.EntitlementFree {
		t.Errorf("next day resolve = %s, want free", d)
	}
}

func TestQuota_Status(t *testing.T) {
	ctx := context.Background()
	store := newFakeLedger()
	q := newTestQuota(store, 2)
	store.setBalance(1, 7)
	_ = q.Commit(ctx, 1, entities.EntitlementFree)

	free, balance, err := q.Status(ctx, 1)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if free != 1 || balance != 7 {
		t.Errorf("Status = (%d, %d), want (1, 7)", free, balance)
	}

	for i := 0; i < 3; i++ {
		_ = q.Commit(ctx, 1, entities.EntitlementFree)
	}
	if left, _ := q.FreeRemainingToday(ctx, 1); left != 0 {
		t.Errorf("FreeRemainingToday = %d, want 0", left)
	}
}
