package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"imagebot/internal/entities"
	"imagebot/internal/interfaces"
)

// SQLiteLedger stores the ledger in SQLite. Dates are kept as
// YYYY-MM-DD text so the composite key compares by calendar day.
type SQLiteLedger struct {
	db *sql.DB
}

func NewSQLiteLedger(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db}
}

var _ interfaces.LedgerStore = (*SQLiteLedger)(nil)

func (r *SQLiteLedger) EnsureUser(ctx context.Context, userID int64, displayName string, createdOn time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, created_on)
		VALUES (?, NULLIF(?, ''), ?)
		ON CONFLICT (id) DO NOTHING
	`, userID, displayName, createdOn.Format(dateLayout))
	if err != nil {
		return storeErr("ensure user", err)
	}
	return nil
}

func (r *SQLiteLedger) GetUser(ctx context.Context, userID int64) (*entities.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(display_name, ''), created_on, paid_balance
		FROM users WHERE id = ?
	`, userID)
	u, err := scanSQLiteUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entities.ErrUserNotFound
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return u, nil
}

func (r *SQLiteLedger) ListUsers(ctx context.Context, limit int) ([]entities.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(display_name, ''), created_on, paid_balance
		FROM users
		ORDER BY paid_balance DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	defer rows.Close()

	users := []entities.User{}
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, storeErr("scan user", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list users", err)
	}
	return users, nil
}

func (r *SQLiteLedger) Snapshot(ctx context.Context, userID int64, day time.Time) (entities.LedgerSnapshot, error) {
	var s entities.LedgerSnapshot
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT used_count FROM daily_usage WHERE user_id = ? AND usage_date = ?), 0),
			COALESCE((SELECT paid_balance FROM users WHERE id = ?), 0)
	`, userID, day.Format(dateLayout), userID).Scan(&s.UsedToday, &s.PaidBalance)
	if err != nil {
		return entities.LedgerSnapshot{}, storeErr("snapshot", err)
	}
	return s, nil
}

func (r *SQLiteLedger) IncrementDailyUsage(ctx context.Context, userID int64, day time.Time) (int, error) {
	var used int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO daily_usage (user_id, usage_date, used_count)
		VALUES (?, ?, 1)
		ON CONFLICT (user_id, usage_date)
		DO UPDATE SET used_count = daily_usage.used_count + 1
		RETURNING used_count
	`, userID, day.Format(dateLayout)).Scan(&used)
	if err != nil {
		return 0, storeErr("increment daily usage", err)
	}
	return used, nil
}

func (r *SQLiteLedger) DecrementBalance(ctx context.Context, userID int64, conditional bool) (int64, error) {
	query := `UPDATE users SET paid_balance = paid_balance - 1 WHERE id = ? RETURNING paid_balance`
	if conditional {
		query = `UPDATE users SET paid_balance = paid_balance - 1 WHERE id = ? AND paid_balance > 0 RETURNING paid_balance`
	}

	var balance int64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		if !conditional {
			return 0, entities.ErrUserNotFound
		}
		return 0, r.classifyMiss(ctx, userID)
	}
	if err != nil {
		return 0, storeErr("decrement balance", err)
	}
	return balance, nil
}

func (r *SQLiteLedger) AddBalance(ctx context.Context, userID int64, amount int64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET paid_balance = paid_balance + ? WHERE id = ? RETURNING paid_balance
	`, amount, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, entities.ErrUserNotFound
	}
	if err != nil {
		return 0, storeErr("add balance", err)
	}
	return balance, nil
}

func (r *SQLiteLedger) SubtractBalance(ctx context.Context, userID int64, amount int64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET paid_balance = paid_balance - ?
		WHERE id = ? AND paid_balance >= ?
		RETURNING paid_balance
	`, amount, userID, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, r.classifyMiss(ctx, userID)
	}
	if err != nil {
		return 0, storeErr("subtract balance", err)
	}
	return balance, nil
}

func (r *SQLiteLedger) classifyMiss(ctx context.Context, userID int64) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, userID).Scan(&exists)
	if err != nil {
		return storeErr("check user", err)
	}
	if exists == 0 {
		return entities.ErrUserNotFound
	}
	return entities.ErrInsufficientBalance
}

func (r *SQLiteLedger) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func (r *SQLiteLedger) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(row rowScanner) (*entities.User, error) {
	var (
		u         entities.User
		createdOn string
	)
	if err := row.Scan(&u.ID, &u.DisplayName, &createdOn, &u.PaidBalance); err != nil {
		return nil, err
	}
	if t, err := time.Parse(dateLayout, createdOn); err == nil {
		u.CreatedOn = t
	}
	return &u, nil
}
