package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"payledger/internal/domain/audit"
	"payledger/internal/domain/auth"
	"payledger/internal/domain/payroll"
	"payledger/internal/platform/cache"
	"payledger/internal/platform/config"
	"payledger/internal/platform/crypto"
	"payledger/internal/platform/db"
	"payledger/internal/platform/email"
	"payledger/internal/platform/jobs"
	"payledger/internal/platform/metrics"
	audithandler "payledger/internal/transport/http/handlers/audit"
	authhandler "payledger/internal/transport/http/handlers/auth"
	payrollhandler "payledger/internal/transport/http/handlers/payroll"
	"payledger/internal/transport/http/middleware"
)

const (
	idempotencyTTL = 24 * time.Hour
	auditRetained  = 1000
	jobRetention   = time.Hour
	shutdownGrace  = 10 * time.Second
)

type App struct {
	Config  config.Config
	Router  http.Handler
	Payroll *payroll.Service
	Jobs    *jobs.Service
	Metrics *metrics.Collector

	closers []func()
}

type backends struct {
	store payroll.Store
	audit audit.Trail
	idem  middleware.IdempotencyStore
}

// New wires the ledger service, its backends and the HTTP router. Callers
// must Close the returned App.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg}

	b, err := app.openBackends(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	opts := []payroll.Option{}
	if cfg.MetricsEnabled {
		app.Metrics = metrics.New()
		opts = append(opts, payroll.WithObserver(app.Metrics))
	}
	viewCache, err := app.openCache(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if viewCache != nil {
		opts = append(opts, payroll.WithViewCache(viewCache))
	}
	app.Payroll = payroll.NewService(b.store, cfg.RateConfig(), opts...)

	if app.Metrics != nil {
		app.Jobs = jobs.New(app.Metrics, jobRetention)
	} else {
		app.Jobs = jobs.New(nil, jobRetention)
	}

	sealer, err := crypto.NewSealer(cfg.DataEncryptionKey)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("data encryption key: %w", err)
	}

	var fallback *auth.UserContext
	if cfg.AuthDisabled {
		fallback = &auth.UserContext{UserID: "local", TenantID: cfg.DefaultTenant, Role: auth.RoleAdmin}
		logger.Warn("authentication disabled, requests run as local admin", "tenantId", cfg.DefaultTenant)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(app.Metrics.Middleware)
	router.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, fallback))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.Payroll.Ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if app.Metrics != nil {
		router.Handle("/metrics", app.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(auth.Authenticator{
			Email:        cfg.AdminEmail,
			PasswordHash: cfg.AdminPasswordHash,
			TenantID:     cfg.DefaultTenant,
			Secret:       cfg.JWTSecret,
			TTL:          cfg.TokenTTL,
		})
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Get("/auth/me", authHandler.HandleMe)

		perms := auth.NewStaticPermissions()
		payrollHandler := payrollhandler.NewHandler(app.Payroll, perms, b.audit, b.idem, app.Jobs, sealer, cfg.PayslipDir)
		if cfg.NotifyEmail != "" {
			payrollHandler.Notify = &payrollhandler.Notifier{
				Mailer: email.New(email.Settings{
					Host:     cfg.SMTPHost,
					Port:     cfg.SMTPPort,
					User:     cfg.SMTPUser,
					Password: cfg.SMTPPassword,
					UseTLS:   cfg.SMTPUseTLS,
				}),
				From: cfg.SMTPFrom,
				To:   cfg.NotifyEmail,
			}
		}
		payrollHandler.RegisterRoutes(r)

		auditHandler := audithandler.NewHandler(b.audit, perms)
		auditHandler.RegisterRoutes(r)
	})

	app.Router = router
	return app, nil
}

func (a *App) openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (backends, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return backends{}, fmt.Errorf("db connect: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
				return backends{}, fmt.Errorf("migrations: %w", err)
			}
		}
		return backends{
			store: payroll.NewPGStore(pool),
			audit: audit.NewPGRecorder(pool),
			idem:  middleware.NewPGIdempotencyStore(pool),
		}, nil
	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return backends{}, fmt.Errorf("sqlite open: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := sqlDB.Close(); err != nil {
				slog.Warn("sqlite close failed", "err", err)
			}
		})
		return backends{
			store: payroll.NewSQLStore(sqlDB),
			audit: audit.NewMemoryRecorder(logger, auditRetained),
			idem:  middleware.NewMemoryIdempotencyStore(idempotencyTTL),
		}, nil
	default:
		return backends{
			store: payroll.NewMemoryStore(),
			audit: audit.NewMemoryRecorder(logger, auditRetained),
			idem:  middleware.NewMemoryIdempotencyStore(idempotencyTTL),
		}, nil
	}
}

func (a *App) openCache(ctx context.Context, cfg config.Config) (payroll.ViewCache, error) {
	if cfg.CacheTTL <= 0 {
		return nil, nil
	}
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(cfg.CacheTTL), nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	})
	return cache.NewRedisCache(client, cfg.CacheTTL), nil
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("payledger server listening", "addr", cfg.Addr, "store", cfg.StoreDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	slog.Info("payledger server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
