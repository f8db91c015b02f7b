// Package server wires the passvault server together: database and
// migrations, services, mail, rate limiting, and the HTTP API and gRPC
// health servers, with graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/cryptox"
	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/server/config"
	"github.com/dmitrijs2005/passvault/internal/server/httpapi"
	"github.com/dmitrijs2005/passvault/internal/server/mail"
	"github.com/dmitrijs2005/passvault/internal/server/ratelimit"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passvault/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/passvault/internal/server/grpc"
)

// Test seams.
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
	newRedisClient       = ratelimit.NewRedisClient
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	key           []byte
	userService   *services.UserService
	entryService  *services.EntryService
	exportService *services.ExportService
	limits        httpapi.Limits
	closers       []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, closers: []func() error{db.Close}}

	limits, err := app.buildLimits(ctx)
	if err != nil {
		app.close()
		return nil, err
	}
	app.limits = limits

	if c.EncryptionKey == "" {
		logger.Warn(ctx, "encryption key is empty, vault secrets are sealed with an all-zero key")
	}
	app.key = cryptox.DeriveKey(c.EncryptionKey)
	app.userService = services.NewUserService(db, rm, app.buildMailer(), c, logger)
	app.entryService = services.NewEntryService(db, rm, app.key, logger)
	app.exportService = services.NewExportService(db, rm, c, logger)

	return app, nil
}

// buildMailer sends through SMTP when a host is configured and only logs
// otherwise.
func (app *App) buildMailer() mail.Mailer {
	if app.config.SMTPHost == "" {
		app.logger.Warn(context.Background(), "no SMTP host configured, emails will only be logged")
		return mail.NewLogMailer(app.logger)
	}
	c := app.config
	return mail.NewSMTPMailer(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword, c.MailFrom)
}

func (app *App) buildLimits(ctx context.Context) (httpapi.Limits, error) {
	c := app.config
	if !c.RateLimitEnabled {
		return httpapi.Limits{API: ratelimit.Noop{}, Auth: ratelimit.Noop{}}, nil
	}

	if c.RateLimitStore == config.RateLimitStoreRedis {
		client, err := newRedisClient(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err != nil {
			return httpapi.Limits{}, fmt.Errorf("rate limiter init error: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		return httpapi.Limits{
			API:  ratelimit.NewRedisLimiter(client, "api", c.RateLimitPerMinute, time.Minute),
			Auth: ratelimit.NewRedisLimiter(client, "auth", c.AuthRateLimitPerMinute, time.Minute),
		}, nil
	}

	return httpapi.Limits{
		API:  ratelimit.NewMemoryLimiter(c.RateLimitPerMinute, time.Minute),
		Auth: ratelimit.NewMemoryLimiter(c.AuthRateLimitPerMinute, time.Minute),
	}, nil
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close error", "error", err)
		}
	}
	app.closers = nil
	common.WipeByteArray(app.key)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := httpapi.NewHandler(app.userService, app.entryService, app.exportService, httpapi.Options{
		JWTSecret:    app.config.SecretKey,
		CookieSecure: app.config.CookieSecure,
	}, app.logger)
	router := httpapi.NewRouter(h, app.limits, app.config.RequestTimeout)

	s := httpapi.NewServer(app.config.HTTPAddr, router, app.logger, app.config.ShutdownTimeout)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCHealthAddr, app.logger, app.db)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run starts both servers and blocks until ctx is cancelled, a signal
// arrives or one of the servers fails. Resources are released on return.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close()
	app.logger.Info(context.Background(), "App stopped")
}
