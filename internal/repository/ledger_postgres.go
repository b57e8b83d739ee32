package repository

import (
	"context"
	"errors"
	"time"

	"imagebot/internal/entities"
	"imagebot/internal/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresLedger struct {
	db *pgxpool.Pool
}

func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

var _ interfaces.LedgerStore = (*PostgresLedger)(nil)

func (r *PostgresLedger) EnsureUser(ctx context.Context, userID int64, displayName string, createdOn time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, display_name, created_on)
		VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (id) DO NOTHING
	`, userID, displayName, createdOn)
	if err != nil {
		return storeErr("ensure user", err)
	}
	return nil
}

func (r *PostgresLedger) GetUser(ctx context.Context, userID int64) (*entities.User, error) {
	var u entities.User
	err := r.db.QueryRow(ctx, `
		SELECT id, COALESCE(display_name, ''), created_on, paid_balance
		FROM users WHERE id = $1
	`, userID).Scan(&u.ID, &u.DisplayName, &u.CreatedOn, &u.PaidBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.ErrUserNotFound
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return &u, nil
}

// ListUsers returns users ordered by paid balance, highest first
func (r *PostgresLedger) ListUsers(ctx context.Context, limit int) ([]entities.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, COALESCE(display_name, ''), created_on, paid_balance
		FROM users
		ORDER BY paid_balance DESC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	defer rows.Close()

	users := []entities.User{}
	for rows.Next() {
		var u entities.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.CreatedOn, &u.PaidBalance); err != nil {
			return nil, storeErr("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list users", err)
	}
	return users, nil
}

func (r *PostgresLedger) Snapshot(ctx context.Context, userID int64, day time.Time) (entities.LedgerSnapshot, error) {
	var s entities.LedgerSnapshot
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT used_count FROM daily_usage WHERE user_id = $1 AND usage_date = $2), 0),
			COALESCE((SELECT paid_balance FROM users WHERE id = $1), 0)
	`, userID, day).Scan(&s.UsedToday, &s.PaidBalance)
	if err != nil {
		return entities.LedgerSnapshot{}, storeErr("snapshot", err)
	}
	return s, nil
}

func (r *PostgresLedger) IncrementDailyUsage(ctx context.Context, userID int64, day time.Time) (int, error) {
	var used int
	err := r.db.QueryRow(ctx, `
		INSERT INTO daily_usage (user_id, usage_date, used_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, usage_date)
		DO UPDATE SET used_count = daily_usage.used_count + 1
		RETURNING used_count
	`, userID, day).Scan(&used)
	if err != nil {
		return 0, storeErr("increment daily usage", err)
	}
	return used, nil
}

func (r *PostgresLedger) DecrementBalance(ctx context.Context, userID int64, conditional bool) (int64, error) {
	query := `UPDATE users SET paid_balance = paid_balance - 1 WHERE id = $1 RETURNING paid_balance`
	if conditional {
		query = `UPDATE users SET paid_balance = paid_balance - 1 WHERE id = $1 AND paid_balance > 0 RETURNING paid_balance`
	}

	var balance int64
	err := r.db.QueryRow(ctx, query, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (r *PostgresLedger) AddBalance(ctx context.Context, userID int64, amount int64) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `
		UPDATE users SET paid_balance = paid_balance + $2 WHERE id = $1 RETURNING paid_balance
	`, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, entities.ErrUserNotFound
	}
	if err != nil {
		return 0, storeErr("add balance", err)
	}
	return balance, nil
}

func (r *PostgresLedger) SubtractBalance(ctx context.Context, userID int64, amount int64) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `
		UPDATE users SET paid_balance = paid_balance - $2
		WHERE id = $1 AND paid_balance >= $2
		RETURNING paid_balance
	`, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, r.classifyMiss(ctx, userID)
	}
	if err != nil {
		return 0, storeErr("subtract balance", err)
	}
	return balance, nil
}

// classifyMiss explains why a guarded balance update matched no row.
func (r *PostgresLedger) classifyMiss(ctx context.Context, userID int64) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return storeErr("check user", err)
	}
	if !exists {
		return entities.ErrUserNotFound
	}
	return entities.ErrInsufficientBalance
}

func (r *PostgresLedger) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func (r *PostgresLedger) Close() error {
	r.db.Close()
	return nil
}
