package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-runstr/internal/config"
	"backend-runstr/internal/db"
	"backend-runstr/internal/logging"
	"backend-runstr/internal/server"
	"backend-runstr/internal/wallet"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const payoutRetryInterval = time.Minute

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, *slog.Logger, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logger := logging.New(cfg.LogLevel, os.Stdout)

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		logger.Error("postgres connection failed", "error", err)
	}

	rdb := deps.connectRedis(cfg)
	if rdb == nil {
		logger.Warn("redis not configured; live streams stay local and refresh tokens are disabled")
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, logger, signals, nil); err != nil {
		logger.Error("server exited with error", "error", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

var ensureSchemaFn = db.EnsureSchema

var runRetriesFn = func(payouts *wallet.Service, ctx context.Context, interval time.Duration) {
	payouts.RunRetries(ctx, interval)
}

// Run bootstraps the schema, starts the HTTP server and the payout retry
// loop, and waits for a termination signal.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger, signals <-chan os.Signal, listen ListenFunc) error {
	logger = logging.OrDiscard(logger)

	var q db.Querier
	if pg != nil {
		q = pg
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := ensureSchemaFn(schemaCtx, q); err != nil {
			logger.Error("schema bootstrap failed", "error", err)
		}
		cancel()
	}

	srv := server.NewServer(cfg, q, rdb, logger)

	retryCtx, stopRetries := context.WithCancel(ctx)
	defer stopRetries()
	retriesDone := make(chan struct{})
	if q != nil {
		go func() {
			defer close(retriesDone)
			runRetriesFn(srv.Payouts, retryCtx, payoutRetryInterval)
		}()
	} else {
		close(retriesDone)
	}

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			srv.Stream.Close()
			return err
		}
	}
	logger.Info("shutting down")

	stopRetries()
	<-retriesDone
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	srv.Stream.Close()
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
