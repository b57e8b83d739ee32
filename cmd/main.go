package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imagebot/internal/config"
	"imagebot/internal/infrastructure"
	"imagebot/internal/interfaces"
	handler "imagebot/internal/interfaces/http"
	"imagebot/internal/interfaces/telegram"
	"imagebot/internal/repository"
	"imagebot/internal/usecases"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash for ADMIN_PASSWORD_HASH and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := usecases.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hash password:", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := infrastructure.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ledger store
	store, err := openLedger(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open ledger store")
	}
	defer store.Close()
	log.Info().Str("driver", cfg.StoreDriver).Msg("ledger store ready")

	// Session store
	var sessionStore interfaces.SessionStore
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		rdb, err := infrastructure.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		sessionStore = infrastructure.NewRedisSessionStore(rdb)
	default:
		mem := infrastructure.NewMemorySessionStore(time.Minute)
		defer mem.Close()
		sessionStore = mem
	}

	loc, _ := cfg.Location()
	adminIDs, _ := cfg.AdminIDList()
	packages, err := usecases.ParseTopUpPackages(cfg.TopUpPackages)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid TOPUP_PACKAGES")
	}

	// Telegram
	botAPI, err := infrastructure.NewTelegramBot(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start telegram bot")
	}
	telegramClient := infrastructure.NewTelegramClient(botAPI)

	// Usecases
	quota := usecases.NewQuotaUsecase(store, usecases.QuotaOptions{
		FreeDailyLimit:   cfg.FreeDailyLimit,
		Location:         loc,
		StrictPaidCommit: cfg.StrictPaidCommit,
	}, log)
	admin := usecases.NewAdminUsecase(store, adminIDs, log)
	auth := usecases.NewAuthUsecase(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.JWTSecret)
	sessions := usecases.NewSessionUsecase(sessionStore, cfg.SessionTTL)
	generation := usecases.NewGenerationService(
		quota,
		sessions,
		infrastructure.NewReplicateClient(cfg.ReplicateAPIToken),
		infrastructure.NewGoogleTranslator(),
		telegramClient,
		cfg.GenerationTimeout,
		log,
	)

	limiter := infrastructure.NewMessageRateLimiter(cfg.GenerationRate, cfg.GenerationBurst)
	go limiter.Run(ctx.Done())

	bot := telegram.NewBot(telegram.Deps{
		Chat:       telegramClient,
		Quota:      quota,
		Admin:      admin,
		Sessions:   sessions,
		Generation: generation,
		Limiter:    limiter,
		Packages:   packages,

		DrainTimeout: cfg.GenerationTimeout + cfg.ShutdownTimeout,
	}, log)

	// Admin HTTP API
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	handler.SetupRoutes(r, handler.NewHandler(auth, store), handler.NewAdminHandler(admin, quota, telegramClient, log), handler.NewMiddleware(cfg.JWTSecret), log)
	if !auth.Enabled() {
		log.Warn().Msg("admin API login disabled: ADMIN_USERNAME, ADMIN_PASSWORD_HASH or JWT_SECRET missing")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botAPI.GetUpdatesChan(u)
	log.Info().Str("bot", botAPI.Self.UserName).Msg("bot started")

	bot.Run(ctx, updates)

	// Graceful shutdown
	botAPI.StopReceivingUpdates()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

func openLedger(ctx context.Context, cfg *config.Config) (interfaces.LedgerStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pg, err := infrastructure.NewPostgresClient(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresLedger(pg.Pool), nil
	case config.StoreDriverMongo:
		mc, err := infrastructure.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return repository.NewMongoLedger(mc.Database), nil
	default:
		lite, err := infrastructure.NewSQLiteClient(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return repository.NewSQLiteLedger(lite.DB), nil
	}
}
