// Package runtime assembles configuration, storage, services and the
// HTTP server into a runnable process.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/reelpay/ledger/internal/app"
	"github.com/reelpay/ledger/internal/app/httpapi"
	ledgersvc "github.com/reelpay/ledger/internal/app/services/ledger"
	"github.com/reelpay/ledger/internal/app/storage/postgres"
	"github.com/reelpay/ledger/internal/config"
	"github.com/reelpay/ledger/internal/middleware"
	"github.com/reelpay/ledger/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sqlx.DB
}

// NewApplication constructs a new application instance from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	stores, db, err := buildStores(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	mode, err := ledgersvc.ParseSettlementMode(cfg.Ledger.SettlementMode)
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithSettlementMode(mode),
		app.WithAuditSchedule(cfg.Ledger.AuditSchedule),
	}
	if cfg.Ledger.AllowFreeItems {
		opts = append(opts, app.WithFreeItems(true))
	}

	application, err := app.New(stores, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}

	handler := buildHandler(cfg, log, application)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		app:        application,
		httpServer: httpSrv,
		db:         db,
	}, nil
}

// App exposes the wired application for tests and tooling.
func (a *Application) App() *app.Application { return a.app }

// Run starts the background services and the HTTP server, blocking
// until the context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, background services and
// the database connection.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error shutting down HTTP server")
	}

	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}

	return nil
}

func buildStores(cfg *config.Config) (app.Stores, *sqlx.DB, error) {
	switch strings.ToLower(cfg.Database.Driver) {
	case "", "memory":
		// Nil stores default to the in-memory implementation.
		return app.Stores{}, nil, nil
	case "postgres":
		db, err := openDatabase(cfg.Database)
		if err != nil {
			return app.Stores{}, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return app.Stores{}, nil, fmt.Errorf("run migrations: %w", err)
		}
		store := postgres.New(db)
		return app.Stores{
			Platforms:    store,
			Accounts:     store,
			Catalog:      store,
			Transactions: store,
			Ledger:       store,
		}, db, nil
	default:
		return app.Stores{}, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func openDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func buildHandler(cfg *config.Config, log *logger.Logger, application *app.Application) http.Handler {
	var apiOpts []httpapi.Option
	if cfg.Server.AuditFile != "" {
		apiOpts = append(apiOpts, httpapi.WithAuditFile(cfg.Server.AuditFile, 0))
	}

	var handler http.Handler = httpapi.NewHandler(application, apiOpts...)

	handler = middleware.LoggingMiddleware(log)(handler)

	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
		limiter.StartCleanup(10 * time.Minute)
		handler = limiter.Handler(handler)
	}

	if cfg.Auth.JWTSecret != "" {
		auth := middleware.NewAuthMiddleware([]byte(cfg.Auth.JWTSecret), log, []string{"/healthz", "/metrics"})
		handler = auth.Handler(handler)
	}

	if origins := cfg.Server.AllowedOriginList(); len(origins) > 0 {
		handler = middleware.NewCORSMiddleware(origins).Handler(handler)
	}

	return handler
}
