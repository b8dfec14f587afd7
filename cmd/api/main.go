package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/accounts/internal/auth"
	"github.com/BradenHooton/accounts/internal/background"
	"github.com/BradenHooton/accounts/internal/config"
	"github.com/BradenHooton/accounts/internal/database"
	"github.com/BradenHooton/accounts/internal/handlers"
	middlewareCustom "github.com/BradenHooton/accounts/internal/middleware"
	"github.com/BradenHooton/accounts/internal/notify"
	"github.com/BradenHooton/accounts/internal/repositories"
	"github.com/BradenHooton/accounts/internal/routes"
	"github.com/BradenHooton/accounts/internal/services"
	"github.com/BradenHooton/accounts/internal/session"
	pkgauth "github.com/BradenHooton/accounts/pkg/auth"
	pkghttp "github.com/BradenHooton/accounts/pkg/http"
	pkglogger "github.com/BradenHooton/accounts/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = pkglogger.New(os.Stdout, cfg.Server.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Sessions live in Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	sessions := session.NewManager(redisClient, cfg.Session.CookieName, cfg.Session.TTL, cfg.Session.Secure)

	sink, closeSink, err := newSink(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize email sink: %w", err)
	}
	defer closeSink()

	pkgauth.BcryptCost = cfg.Auth.BcryptCost

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	profileRepo := repositories.NewProfileRepository(db)
	resetRepo := repositories.NewResetTokenRepository(db)

	ledger := services.NewResetTokenLedger(resetRepo, cfg.Auth.ResetTokenTTL, cfg.Auth.ResetInvalidatePrior)
	codec := auth.NewActivationTokenCodec(cfg.Auth.SecretKey, cfg.Auth.ActivationTokenMaxAge)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		Base:   cfg.Auth.FailureDelayBase,
		Jitter: cfg.Auth.FailureDelayJitter,
	})

	accountService := services.NewAccountService(services.AccountServiceDeps{
		Accounts: accountRepo,
		Profiles: profileRepo,
		Ledger:   ledger,
		Codec:    codec,
		Sink:     sink,
		Hooks:    []services.PostCreateHook{services.NewProfileHook(profileRepo)},
		Audit:    pkglogger.NewAuditLogger(logger),
		Timing:   timingDelay,
		Logger:   logger,
		BaseURL:  cfg.Server.PublicBaseURL,
	})

	// Initialize handlers
	accountHandler := handlers.NewAccountHandler(accountService, sessions, logger)
	profileHandler := handlers.NewProfileHandler(accountService, logger)
	healthHandler := handlers.NewHealthHandler(handlers.PingerFunc(db.HealthCheck), sessions, logger)

	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.ClientIP(ipConfig))
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, accountHandler, profileHandler, healthHandler, sessions,
		middlewareCustom.RateLimitConfig{
			RequestsPerMinute: cfg.Auth.AuthRequestsPerMinute,
			IPConfig:          ipConfig,
		},
		logger,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupManager := background.NewCleanupManager(ledger, logger, cfg.Auth.CleanupInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cleanupManager.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		cleanupManager.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newSink selects the notification sink named by EMAIL_SINK. The returned
// close function releases any client the sink holds.
func newSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notify.Sink, func(), error) {
	switch cfg.Email.Sink {
	case "ses":
		sink, err := notify.NewSESSink(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			return nil, nil, err
		}
		return sink, func() {}, nil
	case "queue":
		sink := notify.NewQueueSink(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Worker.MaxRetry, logger)
		return sink, func() {
			if err := sink.Close(); err != nil {
				logger.Warn("failed to close mail queue client", slog.Any("error", err))
			}
		}, nil
	default:
		return notify.NewLogSink(logger), func() {}, nil
	}
}
