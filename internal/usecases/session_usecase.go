package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imagebot/internal/entities"
	"imagebot/internal/interfaces"
)

var (
	ErrNotEditing    = errors.New("session is not in img2img mode")
	ErrRatioRequired = errors.New("aspect ratio not selected")
	ErrTooManyImages = errors.New("too many input images")
)

const maxInputImages = 4

// SupportedAspectRatios lists the ratios offered to users.
var SupportedAspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:2"}

func ValidAspectRatio(ratio string) bool {
	for _, r := range SupportedAspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}

// SessionUsecase keeps the per-user wizard state with a sliding expiry.
type SessionUsecase struct {
	store interfaces.SessionStore
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionUsecase(store interfaces.SessionStore, ttl time.Duration) *SessionUsecase {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionUsecase{store: store, ttl: ttl, now: time.Now}
}

// Get returns the live session or nil.
func (s *SessionUsecase) Get(ctx context.Context, userID int64) (*entities.Session, error) {
	session, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.Expired(s.now()) {
		return nil, nil
	}
	return session, nil
}

// Start replaces any existing session with a fresh one in the given mode.
func (s *SessionUsecase) Start(ctx context.Context, userID int64, mode entities.GenerationMode) error {
	return s.save(ctx, &entities.Session{UserID: userID, Mode: mode})
}

// SetRatio fixes the aspect ratio and mode. Switching into img2img clears
// any previously collected images.
func (s *SessionUsecase) SetRatio(ctx context.Context, userID int64, mode entities.GenerationMode, ratio string) error {
	if !ValidAspectRatio(ratio) {
		return fmt.Errorf("unsupported aspect ratio %q", ratio)
	}
	session, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if session == nil {
		session = &entities.Session{UserID: userID}
	}
	if mode == entities.ModeImg2Img {
		session.Images = nil
	}
	session.Mode = mode
	session.AspectRatio = ratio
	return s.save(ctx, session)
}

// AddImage appends an input image and returns how many are collected.
func (s *SessionUsecase) AddImage(ctx context.Context, userID int64, imageURL string) (int, error) {
	session, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if session == nil || session.Mode != entities.ModeImg2Img {
		return 0, ErrNotEditing
	}
	if session.AspectRatio == "" {
		return 0, ErrRatioRequired
	}
	if len(session.Images) >= maxInputImages {
		return len(session.Images), ErrTooManyImages
	}
	session.Images = append(session.Images, imageURL)
	if err := s.save(ctx, session); err != nil {
		return 0, err
	}
	return len(session.Images), nil
}

func (s *SessionUsecase) Reset(ctx context.Context, userID int64) error {
	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionUsecase) save(ctx context.Context, session *entities.Session) error {
	session.ExpiresAt = s.now().Add(s.ttl)
	if err := s.store.Save(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
