package usecases

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"imagebot/internal/entities"
)

type usageKey struct {
	userID int64
	day    string
}

// fakeLedger mirrors the store contract in memory, one mutex per statement.
type fakeLedger struct {
	mu    sync.Mutex
	users map[int64]*entities.User
	usage map[usageKey]int
	err   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		users: make(map[int64]*entities.User),
		usage: make(map[usageKey]int),
	}
}

// fail reports a cancelled context the way the real stores do, otherwise
// the injected error.
func (f *fakeLedger) fail(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.err != nil {
		return fmt.Errorf("fake: %w: %w", entities.ErrStoreUnavailable, f.err)
	}
	return nil
}

func (f *fakeLedger) EnsureUser(ctx context.Context, userID int64, name string, createdOn time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(ctx); err != nil {
		return err
	}
	if _, ok := f.users[userID]; !ok {
		f.users[userID] = &entities.User{ID: userID, DisplayName: name, CreatedOn: createdOn}
	}
	return nil
}

func (f *fakeLedger) GetUser(ctx context.Context, userID int64) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(ctx); err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeLedger) ListUsers(ctx context.Context, limit int) ([]entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(ctx); err != nil {
		return nil, err
	}
	out := make([]entities.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidBalance > out[j].PaidBalance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLedger) Snapshot(ctx context.Context, userID int64, day time.Time) (entities.LedgerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(ctx); err != nil {
		return entities.LedgerSnapshot{}, err
	}
	snap := entities.LedgerSnapshot{UsedToday: f.usage[usageKey{userID, day.Format("2006-01-02")}]}
	if u, ok := f.users[userID]; ok {
		snap.PaidBalance = u.PaidBalance
	}
	return snap, nil
}

func (f *fakeLedger) IncrementDailyUsage(ctx context.Context, userID int64, day time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(ctx); err != nil {
		return 0, err
	}
	k := usageKey{userID, day.Format("2006-01-02")}
	f.usage[k]++
	return f.usage[k], nil
}

func (f *fakeLedger) DecrementBalance(ctx context.Context, userID int64, conditional bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(ctx); err != nil {
		return 0, err
	}
	u, ok := f.users[userID]
	if !ok {
		return 0, entities.ErrUserNotFound
	}
	if conditional && u.PaidBalance <= 0 {
		return u.PaidBalance, entities.ErrInsufficientBalance
	}
	u.PaidBalance--
	return u.PaidBalance, nil
}

func (f *fakeLedger) AddBalance(ctx context.Context, userID, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(ctx); err != nil {
		return 0, err
	}
	u, ok := f.users[userID]
	if !ok {
		return 0, entities.ErrUserNotFound
	}
	u.PaidBalance += amount
	return u.PaidBalance, nil
}

func (f *fakeLedger) SubtractBalance(ctx context.Context, userID, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(ctx); err != nil {
		return 0, err
	}
	u, ok := f.users[userID]
	if !ok {
		return 0, entities.ErrUserNotFound
	}
	if u.PaidBalance < amount {
		return 0, entities.ErrInsufficientBalance
	}
	u.PaidBalance -= amount
	return u.PaidBalance, nil
}

func (f *fakeLedger) Ping(ctx context.Context) error { return f.fail(ctx) }
func (f *fakeLedger) Close() error                   { return nil }

func (f *fakeLedger) setBalance(userID, balance int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.PaidBalance = balance
	} else {
		f.users[userID] = &entities.User{ID: userID, PaidBalance: balance}
	}
}

func (f *fakeLedger) counters(userID int64, day time.Time) (int, int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var balance int64
	if u, ok := f.users[userID]; ok {
		balance = u.PaidBalance
	}
	return f.usage[usageKey{userID, day.Format("2006-01-02")}], balance
}
