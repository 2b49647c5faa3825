package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/molar/internal/auth"
	"github.com/BradenHooton/molar/internal/background"
	"github.com/BradenHooton/molar/internal/config"
	"github.com/BradenHooton/molar/internal/database"
	"github.com/BradenHooton/molar/internal/handlers"
	"github.com/BradenHooton/molar/internal/metrics"
	middlewareCustom "github.com/BradenHooton/molar/internal/middleware"
	"github.com/BradenHooton/molar/internal/repositories"
	"github.com/BradenHooton/molar/internal/routes"
	"github.com/BradenHooton/molar/internal/services"
	"github.com/BradenHooton/molar/internal/storage"
	pkghttp "github.com/BradenHooton/molar/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const totpIssuer = "Molar"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("lockout_store", cfg.Auth.LockoutStore),
		slog.Bool("storage_enabled", cfg.Storage.Enabled),
	)

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		err := database.RunMigrations(ctx, db, logger)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	clientRepo := repositories.NewClientRepository(db)
	treatmentRepo := repositories.NewTreatmentRepository(db)
	attachmentRepo := repositories.NewAttachmentRepository(db)

	var lockoutStore services.LockoutStore
	var expiredLockouts background.ExpiredLockoutPurger
	switch cfg.Auth.LockoutStore {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		// Idle records outlive the cooldown so a locked device stays locked for its full window
		lockoutStore = repositories.NewRedisLockoutStore(rdb, time.Hour, logger)
	default:
		lockoutRepo := repositories.NewLockoutRepository(db)
		lockoutStore = lockoutRepo
		expiredLockouts = lockoutRepo
	}

	// Object storage for attachments
	var objectStore services.ObjectStore
	if cfg.Storage.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s3Store, err := storage.NewS3Store(ctx, &cfg.Storage)
		cancel()
		if err != nil {
			logger.Error("failed to initialize object storage", slog.Any("error", err))
			os.Exit(1)
		}
		objectStore = s3Store
	}

	// Credential verification
	verifier, err := newVerifier(&cfg.Auth, logger)
	if err != nil {
		logger.Error("failed to initialize operator verifier", slog.Any("error", err))
		os.Exit(1)
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.SessionSecret, cfg.Auth.SessionExpiry)
	checkDelay := auth.NewCheckDelay(cfg.Auth.LoginCheckDelay, cfg.Auth.LoginCheckJitter)

	// Initialize services
	lockoutService := services.NewLockoutService(lockoutStore, verifier, checkDelay, services.LockoutConfig{
		Threshold: cfg.Auth.LockoutThreshold,
		Cooldown:  cfg.Auth.LockoutCooldown,
	}, logger)
	clientService := services.NewClientService(clientRepo, treatmentRepo, attachmentRepo, logger)
	attachmentService := services.NewAttachmentService(attachmentRepo, clientRepo, objectStore, cfg.Storage.MaxUploadBytes, logger)

	// Initialize cleanup manager
	var orphans background.OrphanPurger
	if cfg.Storage.Enabled && cfg.Storage.OrphanCleanupEnabled {
		orphans = attachmentService
	}
	cleanupManager := background.NewCleanupManager(expiredLockouts, orphans, background.CleanupConfig{
		Interval:        cfg.Auth.CleanupInterval,
		OrphanRetention: cfg.Storage.OrphanRetention,
	}, logger)

	// Initialize handlers
	production := cfg.Server.Env == "production"
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	cookieConfig := auth.CookieConfig{Secure: production, SameSite: "strict"}

	authHandler := handlers.NewAuthHandler(lockoutService, tokenManager, cookieConfig, ipConfig, logger)
	clientHandler := handlers.NewClientHandler(clientService, attachmentService, logger)
	preferencesHandler := handlers.NewPreferencesHandler(production)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(metrics.Middleware)
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)

	routes.RegisterRoutes(router, routes.Dependencies{
		AuthHandler:        authHandler,
		ClientHandler:      clientHandler,
		PreferencesHandler: preferencesHandler,
		TokenManager:       tokenManager,
		IPConfig:           ipConfig,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		RequestTimeout:     60 * time.Second,
		Logger:             logger,
	})

	router.Handle("/metrics", metrics.Handler())

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start background tasks
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	dbStats := metrics.NewDBStatsCollector(db.Pool, logger)
	dbStats.Start(15 * time.Second)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()
	dbStats.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newVerifier checks the configured operator hash; without one the legacy
// fixed credentials apply, which config.Load only allows outside production
func newVerifier(cfg *config.AuthConfig, logger *slog.Logger) (auth.CredentialVerifier, error) {
	if cfg.OperatorPasswordHash != "" {
		return auth.NewOperatorVerifier(
			cfg.OperatorUsername,
			cfg.OperatorPasswordHash,
			cfg.OperatorTOTPSecret,
			auth.NewTOTPManager(totpIssuer),
		), nil
	}
	if cfg.OperatorTOTPSecret != "" {
		return nil, fmt.Errorf("OPERATOR_TOTP_SECRET requires OPERATOR_PASSWORD_HASH")
	}
	logger.Warn("OPERATOR_PASSWORD_HASH not set, using legacy development credentials")
	return auth.NewStaticVerifier(auth.LegacyUsername, auth.LegacyPassword), nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
