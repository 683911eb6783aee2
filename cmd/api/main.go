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

	"github.com/clinware/labguard/internal/auth"
	"github.com/clinware/labguard/internal/background"
	"github.com/clinware/labguard/internal/config"
	"github.com/clinware/labguard/internal/database"
	"github.com/clinware/labguard/internal/handlers"
	customMiddleware "github.com/clinware/labguard/internal/middleware"
	"github.com/clinware/labguard/internal/metrics"
	"github.com/clinware/labguard/internal/models"
	"github.com/clinware/labguard/internal/repositories"
	"github.com/clinware/labguard/internal/routes"
	"github.com/clinware/labguard/internal/security"
	"github.com/clinware/labguard/internal/services"
	pkgauth "github.com/clinware/labguard/pkg/auth"
	pkghttp "github.com/clinware/labguard/pkg/http"
	pkglogger "github.com/clinware/labguard/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db.Pool); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	clock := security.SystemClock()
	lockoutCfg := security.LockoutConfig{
		MaxFailedAttempts: cfg.Security.MaxFailedAttempts,
		BlockWindow:       cfg.Security.BlockWindow,
	}
	anomalyCfg := security.AnomalyConfig{
		SuspiciousIPChangeWindow: cfg.Security.SuspiciousIPChangeWindow,
		MaxConcurrentSessions:    cfg.Security.MaxConcurrentSessions,
	}

	// Repositories
	attemptRepo := repositories.NewAttemptRepository(db, lockoutCfg, clock)
	sessionRepo := repositories.NewSessionRepository(db)
	userRepo := repositories.NewUserRepository(db)

	// Security core
	blockPolicy := security.NewBlockPolicy(attemptRepo, lockoutCfg, clock, logger)
	anomalyDetector := security.NewAnomalyDetector(sessionRepo, anomalyCfg, clock, logger)

	// Collaborators
	directory := services.NewDirectoryAdapter(userRepo)
	tokenManager := auth.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenLifetime)
	auditLogger := pkglogger.NewAuditLogger(logger)
	collector := metrics.NewCollector()

	var alerts services.AlertNotifier
	if cfg.Alert.Enabled {
		sesAlerts, err := services.NewSESAlertService(cfg.Alert.AWSRegion, cfg.Alert.FromAddress, cfg.Alert.ToAddress, logger)
		if err != nil {
			logger.Error("failed to initialize alert service", slog.Any("error", err))
			os.Exit(1)
		}
		alerts = sesAlerts
	}

	// Services
	authService := services.NewAuthService(
		attemptRepo, blockPolicy, anomalyDetector, sessionRepo,
		directory, directory, tokenManager, clock,
		logger, auditLogger, alerts, collector,
	)
	securityService := services.NewSecurityService(sessionRepo, attemptRepo, blockPolicy, clock, logger, collector)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Security.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, securityService, ipConfig)
	securityHandler := handlers.NewSecurityHandler(securityService)

	// Bootstrap first admin user if configured
	bootstrapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootstrapCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Background sweep: idle-session expiry and attempt retention
	sweeper := background.NewSweeper(
		sessionRepo, attemptRepo, clock, logger, collector,
		cfg.Security.SweepInterval, cfg.Security.SessionIdleTimeout, cfg.Security.AttemptRetention,
	)

	// Router. RemoteAddr stays the TCP peer; forwarded headers are only
	// honored through the trusted-proxy gate in ExtractClientIP.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(customMiddleware.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, securityHandler, tokenManager, sessionRepo, clock, ipConfig, collector.Handler(), logger)

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

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go sweeper.Start(sweepCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_USERNAME and
// ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminUsername == "" || adminPassword == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, _, err := userRepo.FindByUsername(ctx, adminUsername)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	if _, err := userRepo.Create(ctx, adminUsername, hashedPassword, true, []string{"admin"}); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
