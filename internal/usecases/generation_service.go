package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"imagebot/internal/entities"
	"imagebot/internal/interfaces"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	msgNoGenerations = "❌ No generations left. Use /balance to top up."
	msgStarted       = "🪄 Generation started\n⏳ Usually takes ~20–40 seconds\n📸 The picture arrives as soon as it is ready"
	msgFailed        = "❌ Generation failed, nothing was charged. Please try again later."
	msgNeedImage     = "❗ Send an image first, then write the prompt."
	msgDone          = "✅ Done!"
)

// commitTimeout bounds the bookkeeping that follows a delivered image.
const commitTimeout = 10 * time.Second

// GenerationService drives one chat request through resolve, the external
// image job, delivery and commit. Commit happens only after delivery, so a
// failed or timed out job never consumes an entitlement.
type GenerationService struct {
	quota      *QuotaUsecase
	sessions   *SessionUsecase
	generator  interfaces.ImageGenerator
	translator interfaces.Translator
	messenger  interfaces.Messenger
	timeout    time.Duration
	log        zerolog.Logger
}

func NewGenerationService(
	quota *QuotaUsecase,
	sessions *SessionUsecase,
	generator interfaces.ImageGenerator,
	translator interfaces.Translator,
	messenger interfaces.Messenger,
	timeout time.Duration,
	log zerolog.Logger,
) *GenerationService {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &GenerationService{
		quota:      quota,
		sessions:   sessions,
		generator:  generator,
		translator: translator,
		messenger:  messenger,
		timeout:    timeout,
		log:        log.With().Str("component", "generation").Logger(),
	}
}

// Generate handles a prompt from userID typed in chatID.
func (s *GenerationService) Generate(ctx context.Context, userID, chatID int64, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}

	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		// Sessions are convenience state; fall back to defaults.
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("session unavailable")
	}

	req := entities.GenerationRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		ChatID:      chatID,
		Mode:        entities.ModeTxt2Img,
		AspectRatio: session.Ratio(),
	}
	if session != nil && session.Mode == entities.ModeImg2Img {
		if len(session.Images) == 0 {
			s.reply(chatID, msgNeedImage)
			return nil
		}
		req.Mode = entities.ModeImg2Img
		req.ImageURLs = append([]string(nil), session.Images...)
	}

	log := s.log.With().Str("request_id", req.ID).Int64("user_id", userID).Str("mode", string(req.Mode)).Logger()

	decision, err := s.quota.Resolve(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("resolve failed")
		s.reply(chatID, msgFailed)
		return err
	}
	if decision == entities.EntitlementDenied {
		log.Info().Msg("generation denied")
		s.reply(chatID, msgNoGenerations)
		return entities.ErrQuotaDenied
	}

	s.reply(chatID, msgStarted)

	req.Prompt = s.translate(ctx, prompt)

	jobCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	result, err := s.generator.Generate(jobCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Dur("timeout", s.timeout).Msg("generation timed out")
		} else {
			log.Error().Err(err).Msg("generation failed")
		}
		s.reply(chatID, msgFailed)
		return fmt.Errorf("generate image: %w", err)
	}

	if err := s.messenger.SendPhotoURL(chatID, result.ImageURL, msgDone); err != nil {
		log.Error().Err(err).Msg("delivering image failed")
		s.reply(chatID, msgFailed)
		return fmt.Errorf("deliver image: %w", err)
	}

	// The image is out, so the charge must land even if the caller's
	// context was cancelled meanwhile (shutdown, dropped update).
	commitCtx, cancelCommit := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancelCommit()

	if req.Mode == entities.ModeImg2Img {
		if err := s.sessions.Reset(commitCtx, userID); err != nil {
			log.Warn().Err(err).Msg("session reset failed")
		}
	}

	// A failed commit is logged, not retried.
	if err := s.quota.Commit(commitCtx, userID, decision); err != nil {
		log.Error().Err(err).Stringer("decision", decision).Msg("commit failed after delivery")
		return err
	}

	log.Info().Stringer("decision", decision).Dur("took", time.Since(started)).Msg("generation delivered")
	return nil
}

func (s *GenerationService) translate(ctx context.Context, prompt string) string {
	if s.translator == nil {
		return prompt
	}
	translated, err := s.translator.Translate(ctx, prompt)
	if err != nil || strings.TrimSpace(translated) == "" {
		s.log.Debug().Err(err).Msg("translation skipped")
		return prompt
	}
	return translated
}

func (s *GenerationService) reply(chatID int64, text string) {
	if err := s.messenger.SendMessage(chatID, text); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}
