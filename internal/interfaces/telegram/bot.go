// Package telegram turns Telegram updates into quota, session and
// generation calls.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"imagebot/internal/entities"
	"imagebot/internal/usecases"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Chat is the outbound Telegram surface the bot uses.
type Chat interface {
	SendMessage(chatID int64, text string) error
	SendMessageWithMenu(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error
	SendQRCode(chatID int64, content, caption string) error
	AnswerCallback(callbackID, text string) error
	FileURL(fileID string) (string, error)
}

// RateLimiter sheds bursts of generation requests per user.
type RateLimiter interface {
	Allow(userID int64) bool
}

type Bot struct {
	chat       Chat
	quota      *usecases.QuotaUsecase
	admin      *usecases.AdminUsecase
	sessions   *usecases.SessionUsecase
	generation *usecases.GenerationService
	limiter    RateLimiter
	packages   []entities.TopUpPackage
	drain      time.Duration
	log        zerolog.Logger

	wg sync.WaitGroup
}

type Deps struct {
	Chat       Chat
	Quota      *usecases.QuotaUsecase
	Admin      *usecases.AdminUsecase
	Sessions   *usecases.SessionUsecase
	Generation *usecases.GenerationService
	Limiter    RateLimiter
	Packages   []entities.TopUpPackage

	// DrainTimeout bounds how long Run waits for in-flight handlers after
	// polling stops before cancelling them. Zero waits without a bound.
	DrainTimeout time.Duration
}

func NewBot(d Deps, log zerolog.Logger) *Bot {
	return &Bot{
		chat:       d.Chat,
		quota:      d.Quota,
		admin:      d.Admin,
		sessions:   d.Sessions,
		generation: d.Generation,
		limiter:    d.Limiter,
		packages:   d.Packages,
		drain:      d.DrainTimeout,
		log:        log.With().Str("component", "telegram").Logger(),
	}
}

// Run dispatches updates until ctx is cancelled or the channel closes, then
// waits for in-flight handlers. Handlers do not inherit ctx's cancellation:
// a generation already paid for upstream gets to deliver and commit, and is
// cancelled only when the drain timeout runs out.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	work, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	b.log.Info().Msg("started polling")
	defer b.waitHandlers(cancel)
	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("stopped polling")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(work, update)
			}()
		}
	}
}

func (b *Bot) waitHandlers(cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	if b.drain > 0 {
		timer := time.NewTimer(b.drain)
		defer timer.Stop()
		select {
		case <-done:
			return
		case <-timer.C:
			b.log.Warn().Dur("timeout", b.drain).Msg("drain timed out, cancelling in-flight handlers")
			cancel()
		}
	}
	<-done
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Int("update_id", update.UpdateID).Msg("update handler panicked")
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID, chatID := msg.From.ID, msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, userID, chatID, msg.Photo)
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	if b.limiter != nil && !b.limiter.Allow(userID) {
		b.send(chatID, "⏳ Too many requests, wait a few seconds and try again.")
		return
	}
	b.register(ctx, msg.From)
	err := b.generation.Generate(ctx, userID, chatID, msg.Text)
	if err != nil && !errors.Is(err, entities.ErrQuotaDenied) {
		b.log.Debug().Err(err).Int64("user_id", userID).Msg("generation ended with error")
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.register(ctx, msg.From)
		b.showMenu(chatID, "👋 Welcome! I turn words and photos into pictures.\n\nChoose a mode:")
	case "menu":
		b.showMenu(chatID, "Choose a mode:")
	case "txt2img":
		b.startMode(ctx, userID, chatID, entities.ModeTxt2Img)
	case "img2img":
		b.startMode(ctx, userID, chatID, entities.ModeImg2Img)
	case "ratio":
		mode := entities.ModeTxt2Img
		if s, err := b.sessions.Get(ctx, userID); err == nil && s != nil && s.Mode != "" {
			mode = s.Mode
		}
		b.sendMenu(chatID, "📐 Choose an aspect ratio:", RatioKeyboard(mode))
	case "balance", "banans":
		b.showBalance(ctx, userID, chatID)
	case "add_tokens_for_users":
		b.adjust(ctx, msg, true)
	case "remove_tokens":
		b.adjust(ctx, msg, false)
	case "users":
		b.listUsers(ctx, userID, chatID)
	default:
		b.send(chatID, "🤔 Unknown command. Try /menu.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if err := b.chat.AnswerCallback(cb.ID, ""); err != nil {
		b.log.Warn().Err(err).Msg("answer callback failed")
	}
	if cb.Message == nil || cb.From == nil {
		return
	}
	userID, chatID := cb.From.ID, cb.Message.Chat.ID
	data := cb.Data

	switch {
	case data == cbMenu:
		b.showMenu(chatID, "Choose a mode:")
	case data == cbBalance:
		b.showBalance(ctx, userID, chatID)
	case strings.HasPrefix(data, cbModePrefix):
		b.startMode(ctx, userID, chatID, entities.GenerationMode(strings.TrimPrefix(data, cbModePrefix)))
	case strings.HasPrefix(data, cbRatioPrefix):
		b.setRatio(ctx, userID, chatID, data)
	case strings.HasPrefix(data, cbPackage):
		b.sendPackage(chatID, strings.TrimPrefix(data, cbPackage))
	default:
		b.log.Warn().Str("data", data).Msg("unknown callback")
	}
}

func (b *Bot) startMode(ctx context.Context, userID, chatID int64, mode entities.GenerationMode) {
	if mode != entities.ModeTxt2Img && mode != entities.ModeImg2Img {
		return
	}
	if err := b.sessions.Start(ctx, userID, mode); err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("start session failed")
		b.send(chatID, "❌ Something went wrong, try again.")
		return
	}
	b.sendMenu(chatID, "📐 Choose an aspect ratio:", RatioKeyboard(mode))
}

func (b *Bot) setRatio(ctx context.Context, userID, chatID int64, data string) {
	mode, ratio, ok := parseRatioCallback(data)
	if !ok {
		return
	}
	if err := b.sessions.SetRatio(ctx, userID, mode, ratio); err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("set ratio failed")
		b.send(chatID, "❌ Unsupported aspect ratio.")
		return
	}
	if mode == entities.ModeImg2Img {
		b.send(chatID, fmt.Sprintf("✅ Ratio %s\n📷 Send up to 4 photos, then describe the edit.", ratio))
		return
	}
	b.send(chatID, fmt.Sprintf("✅ Ratio %s\n✍️ Describe the picture you want.", ratio))
}

func (b *Bot) handlePhoto(ctx context.Context, userID, chatID int64, photos []tgbotapi.PhotoSize) {
	largest := photos[len(photos)-1]
	url, err := b.chat.FileURL(largest.FileID)
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("resolve photo failed")
		b.send(chatID, "❌ Could not read the photo, send it again.")
		return
	}

	n, err := b.sessions.AddImage(ctx, userID, url)
	switch {
	case errors.Is(err, usecases.ErrNotEditing):
		b.send(chatID, "📷 To edit a photo choose /img2img first.")
	case errors.Is(err, usecases.ErrRatioRequired):
		b.sendMenu(chatID, "📐 Choose an aspect ratio first:", RatioKeyboard(entities.ModeImg2Img))
	case errors.Is(err, usecases.ErrTooManyImages):
		b.send(chatID, "⚠️ That's the maximum number of photos. Now write the prompt.")
	case err != nil:
		b.log.Error().Err(err).Int64("user_id", userID).Msg("add image failed")
		b.send(chatID, "❌ Something went wrong, try again.")
	default:
		b.send(chatID, fmt.Sprintf("✅ Photo %d added. Send more or write the prompt.", n))
	}
}

func (b *Bot) showBalance(ctx context.Context, userID, chatID int64) {
	free, balance, err := b.quota.Status(ctx, userID)
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("balance lookup failed")
		b.send(chatID, "❌ Balance is unavailable right now, try again later.")
		return
	}
	b.sendMenu(chatID, formatBalance(free, balance), PackagesKeyboard(b.packages))
}

func (b *Bot) sendPackage(chatID int64, rawIndex string) {
	i, err := strconv.Atoi(rawIndex)
	if err != nil || i < 0 || i >= len(b.packages) {
		return
	}
	p := b.packages[i]
	caption := fmt.Sprintf("🍌 %d generations for %s\n\nPay by link: %s\nor scan the QR code.\nThe balance is credited after payment.", p.Generations, p.Price, p.URL)
	if err := b.chat.SendQRCode(chatID, p.URL, caption); err != nil {
		b.log.Warn().Err(err).Msg("send qr code failed")
		b.send(chatID, caption)
	}
}

func (b *Bot) adjust(ctx context.Context, msg *tgbotapi.Message, credit bool) {
	adminID, chatID := msg.From.ID, msg.Chat.ID
	if !b.admin.IsAdmin(adminID) {
		b.send(chatID, "❌ You don't have permission.")
		return
	}

	target, amount, err := parseAdjustArgs(msg.CommandArguments())
	if errors.Is(err, errUsage) {
		b.send(chatID, fmt.Sprintf("❌ Usage:\n/%s <telegram_id> <amount>", msg.Command()))
		return
	}
	if err != nil {
		b.send(chatID, "❌ Invalid parameters.")
		return
	}

	var balance int64
	if credit {
		balance, err = b.admin.Credit(ctx, target, amount)
	} else {
		balance, err = b.admin.Debit(ctx, target, amount)
	}
	switch {
	case errors.Is(err, entities.ErrUserNotFound):
		b.send(chatID, "❌ User not found.")
		return
	case errors.Is(err, entities.ErrInsufficientBalance):
		b.send(chatID, "❌ The user's balance is smaller than that.")
		return
	case err != nil:
		b.log.Error().Err(err).Int64("admin_id", adminID).Int64("user_id", target).Msg("balance adjustment failed")
		b.send(chatID, "❌ Store unavailable, nothing changed.")
		return
	}

	if !credit {
		b.send(chatID, fmt.Sprintf("✅ Removed %d generations from %d. Balance: %d", amount, target, balance))
		return
	}

	notice := fmt.Sprintf("🍌 Balance topped up!\n\nYou received %d generations.\nThanks for the payment ❤️", amount)
	if err := b.chat.SendMessage(target, notice); err != nil {
		b.send(chatID, fmt.Sprintf("⚠️ Generations credited, but the user could not be notified.\nReason: %s", truncate(err.Error(), 100)))
		return
	}
	b.send(chatID, fmt.Sprintf("✅ Credited %d generations to %d. Balance: %d", amount, target, balance))
}

func (b *Bot) listUsers(ctx context.Context, userID, chatID int64) {
	if !b.admin.IsAdmin(userID) {
		b.send(chatID, "❌ You don't have permission.")
		return
	}
	users, err := b.admin.ListUsers(ctx, 50)
	if err != nil {
		b.log.Error().Err(err).Msg("list users failed")
		b.send(chatID, "❌ Store unavailable.")
		return
	}
	b.send(chatID, formatUserList(users))
}

func (b *Bot) register(ctx context.Context, from *tgbotapi.User) {
	name := from.UserName
	if name == "" {
		name = from.FirstName
	}
	if err := b.quota.Register(ctx, from.ID, name); err != nil {
		b.log.Error().Err(err).Int64("user_id", from.ID).Msg("register user failed")
	}
}

func (b *Bot) showMenu(chatID int64, text string) {
	b.sendMenu(chatID, text, MainMenuKeyboard())
}

func (b *Bot) send(chatID int64, text string) {
	if err := b.chat.SendMessage(chatID, text); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}

func (b *Bot) sendMenu(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if err := b.chat.SendMessageWithMenu(chatID, text, keyboard); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("send menu failed")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
