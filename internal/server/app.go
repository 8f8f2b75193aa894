// Package server assembles the neurostore server: metadata database, chunk
// store chain, ledger, file service, and the gRPC and HTTP transports. Run
// blocks until a signal or a fatal transport error, then stops everything
// gracefully.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/neurostore/internal/dbx"
	"github.com/dmitrijs2005/neurostore/internal/logging"
	"github.com/dmitrijs2005/neurostore/internal/server/config"
	"github.com/dmitrijs2005/neurostore/internal/server/gateway"
	"github.com/dmitrijs2005/neurostore/internal/server/ledger"
	"github.com/dmitrijs2005/neurostore/internal/server/metrics"
	"github.com/dmitrijs2005/neurostore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/neurostore/internal/server/services"

	gs "github.com/dmitrijs2005/neurostore/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	metrics *metrics.Metrics
	files   *services.FileService
	closers []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(c.LogBackend, os.Stdout)
	if err != nil {
		return nil, err
	}

	dialect, err := dbx.ParseDialect(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	rm, err := repomanager.New(dialect)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.Open(ctx, dialect, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db, closers: []func() error{db.Close}}

	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	app.metrics = metrics.New()
	store, closeStore, err := buildStore(ctx, c, logger, app.metrics)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("chunk store: %w", err)
	}
	app.closers = append(app.closers, closeStore)

	l := ledger.New(db, rm, logger, ledger.WithMetrics(app.metrics))
	app.files = services.NewFileService(db, rm, store, l, logger, services.Options{
		UploadWorkers: c.UploadWorkers,
		ReadAhead:     c.ReadAhead,
		Metrics:       app.metrics,
	})

	logger.Info(ctx, "app initialized", "driver", dialect, "backend", c.ChunkBackend,
		"redis", c.RedisURL != "", "cache_size", c.CacheSize, "verify", c.VerifyHashes)
	return app, nil
}

// Close releases the database and store connections.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	return errors.Join(errs...)
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.files, app.config.SecretKey)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) startGateway(ctx context.Context, cancelFunc context.CancelFunc) {
	g := gateway.New(app.config.EndpointAddrHTTP, app.logger, app.files, app.config.SecretKey, gateway.Options{
		AllowOrigins: app.config.AllowOrigins,
		Metrics:      app.metrics,
	})
	if err := g.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.EndpointAddrHTTP != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGateway(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "shutdown", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
