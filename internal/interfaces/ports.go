package interfaces

import (
	"context"
	"time"

	"imagebot/internal/entities"
)

// LedgerStore persists paid balances and daily free-usage counters.
// Every mutation is a single statement the backend executes atomically;
// implementations must not read-modify-write in application code.
type LedgerStore interface {
	EnsureUser(ctx context.Context, userID int64, displayName string, createdOn time.Time) error
	GetUser(ctx context.Context, userID int64) (*entities.User, error)
	ListUsers(ctx context.Context, limit int) ([]entities.User, error)

	// Snapshot reads the day's used count and the paid balance at one read point.
	Snapshot(ctx context.Context, userID int64, day time.Time) (entities.LedgerSnapshot, error)

	IncrementDailyUsage(ctx context.Context, userID int64, day time.Time) (int, error)
	// DecrementBalance takes one paid generation. With conditional set the
	// update only applies while the balance is positive.
	DecrementBalance(ctx context.Context, userID int64, conditional bool) (int64, error)
	AddBalance(ctx context.Context, userID int64, amount int64) (int64, error)
	SubtractBalance(ctx context.Context, userID int64, amount int64) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

type ImageGenerator interface {
	Generate(ctx context.Context, req entities.GenerationRequest) (*entities.GenerationResult, error)
}

type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendMessage(chatID int64, text string) error
	SendPhotoURL(chatID int64, photoURL, caption string) error
}

type SessionStore interface {
	Get(ctx context.Context, userID int64) (*entities.Session, error)
	Save(ctx context.Context, session *entities.Session) error
	Delete(ctx context.Context, userID int64) error
}
