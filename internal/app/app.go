package app

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"marketplace-auth/internal/config"
	"marketplace-auth/internal/credential"
	"marketplace-auth/internal/database"
	"marketplace-auth/internal/event"
	"marketplace-auth/internal/handler"
	"marketplace-auth/internal/metrics"
	"marketplace-auth/internal/middleware"
	"marketplace-auth/internal/repository"
	"marketplace-auth/internal/router"
	"marketplace-auth/internal/service"
	"marketplace-auth/internal/token"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	slog.Info("database ready")

	issuer, err := token.NewIssuer(cfg.TokenConfig())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	bus := event.NewBus()
	verifier := credential.NewVerifier(credential.NewHasher(cfg.PasswordIterations))

	authService, err := service.NewAuthService(verifier, issuer, userRepo, roleRepo, collector, bus)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	authService.SetRevocationStore(tokenRepo)
	auditService := service.NewAuditService(auditRepo)

	// Subscribe before BootstrapAdmin publishes so its events are kept.
	logEvents, unsubscribeLog := bus.Subscribe()
	auditEvents, unsubscribeAudit := bus.Subscribe()
	subscriberCtx, subscriberCancel := context.WithCancel(context.Background())
	stopSubscribers := func() {
		subscriberCancel()
		unsubscribeLog()
		unsubscribeAudit()
	}
	go event.LogSubscriber(subscriberCtx, logEvents, slog.Default().With("component", "audit"))
	go auditService.Run(subscriberCtx, auditEvents)
	go authService.StartRevocationCleanup(subscriberCtx, cfg.RevocationCleanupInterval)

	if err := authService.BootstrapAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		stopSubscribers()
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	authMiddleware := middleware.NewAuthMiddleware(authService)
	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		User:    handler.NewUserHandler(authService),
		Audit:   handler.NewAuditHandler(auditService),
		Health:  handler.NewHealthHandler(db),
		Docs:    handler.NewDocsHandler(),
		Metrics: metrics.Handler(registry),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	slog.Info("auth service configured",
		"pbkdf2_iterations", cfg.PasswordIterations,
		"token_lifetime", issuer.Lifetime().String(),
		"issuer", cfg.JWTIssuer,
		"audience", cfg.JWTAudience,
	)

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			stopSubscribers,
			func() {
				db.Close()
			},
		},
	}, nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		a.cleanup()
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}
