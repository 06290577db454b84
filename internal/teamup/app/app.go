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

	"github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/teamup/internal/teamup/http"
	"github.com/aussiebroadwan/teamup/internal/teamup/notify"
	"github.com/aussiebroadwan/teamup/internal/teamup/service"
	"github.com/aussiebroadwan/teamup/internal/teamup/store"
	"github.com/aussiebroadwan/teamup/internal/teamup/store/drivers/postgres"
	"github.com/aussiebroadwan/teamup/internal/teamup/store/drivers/sqlite"
	"github.com/aussiebroadwan/teamup/pkg/cryptox"
	"github.com/aussiebroadwan/teamup/pkg/httpx"
	"github.com/aussiebroadwan/teamup/pkg/jwtx"
	"github.com/aussiebroadwan/teamup/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application wires the teamup service together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	redis    *redis.Client
	signer   jwtx.Signer
	verifier jwtx.Verifier
	notifier notify.Notifier

	accountService      *service.AccountService
	teamService         *service.TeamService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "teamup",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(context.Background()); err != nil {
		return nil, err
	}
	if err := app.initSessions(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Handler exposes the routed handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if err := app.housekeepingService.Start(); err != nil {
		return fmt.Errorf("start housekeeping: %w", err)
	}

	app.logger.Info("teamup starting", "port", app.cfg.Port, "version", BuildVersion, "database", app.cfg.Database)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down teamup...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.close(); err != nil {
		return err
	}

	app.logger.Info("teamup stopped")
	return nil
}

func (app *Application) close() error {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.Database {
	case "postgres":
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if m, ok := db.(store.Migrator); ok {
		if err := m.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.Database)
	return nil
}

// initSessions sets up token signing. Development runs without a configured
// secret get a random one per process.
func (app *Application) initSessions() error {
	secret := app.cfg.JWTSecret
	if secret == "" {
		generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return err
		}
		secret = generated
		app.logger.Warn("TEAMUP_JWT_SECRET not set, using an ephemeral secret")
	}

	signer, err := jwtx.NewHS256Signer(secret)
	if err != nil {
		return err
	}
	app.signer = signer
	app.verifier = jwtx.NewHS256Verifier(secret, app.cfg.Issuer, 30*time.Second)
	return nil
}

func (app *Application) initServices() error {
	pepper, err := cryptox.LoadPepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	app.notifier, err = app.newNotifier()
	if err != nil {
		return err
	}

	app.accountService = &service.AccountService{
		Store:    app.db,
		Hasher:   cryptox.NewPasswordHasher(pepper),
		Signer:   app.signer,
		Notifier: app.notifier,
		Issuer:   app.cfg.Issuer,
		TokenTTL: app.cfg.SessionTTL,
		OTPTTL:   app.cfg.OTPTTL,
	}
	app.teamService = &service.TeamService{
		Store:    app.db,
		Notifier: app.notifier,
	}
	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

func (app *Application) newNotifier() (notify.Notifier, error) {
	if app.cfg.SMTPHost == "" {
		app.logger.Info("SMTP not configured, emails are logged")
		return &notify.LogNotifier{Logger: app.logger}, nil
	}

	n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUser,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
		Timeout:  app.cfg.SMTPTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure smtp: %w", err)
	}
	return n, nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	app.cfg.RateLimits.Apply()

	router := httpapi.NewRouter(
		app.verifier,
		httpx.NewSessionCookie("token", app.cfg.SessionTTL, app.cfg.Production()),
		BuildVersion,
		app.db,
		app.logger,
	)
	router.AccountService = app.accountService
	router.TeamService = app.teamService
	router.CORSOrigins = app.cfg.CORSOrigins

	if app.cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		router.Limits = httpx.NewRedisBackend(app.redis, "teamup:ratelimit", app.logger)
		router.CachePing = func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		}
		app.logger.Info("rate limits backed by redis", "addr", app.cfg.RedisAddr)
	}

	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
