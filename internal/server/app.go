// Package server initializes and runs the development auth backend: it opens
// the configured store, seeds the demo account, and serves the HTTP API until
// it receives a shutdown signal.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/partfinder/partfinder/internal/logging"
	"github.com/partfinder/partfinder/internal/server/config"
	"github.com/partfinder/partfinder/internal/server/httpapi"
	"github.com/partfinder/partfinder/internal/server/repositories/repomanager"
	"github.com/partfinder/partfinder/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repos       repomanager.RepositoryManager
	userService *services.UserService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, logging.FormatJSON)

	rm, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	us := services.NewUserService(rm, c, logger)
	if c.SeedDemoUser {
		if err := us.SeedDemoUser(ctx); err != nil {
			_ = rm.Close()
			return nil, err
		}
	}

	return &App{config: c, logger: logger, repos: rm, userService: us}, nil
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
	router := httpapi.NewRouter(app.userService, app.logger)
	s := httpapi.NewServer(app.config.ListenAddr, router, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a shutdown signal arrives, then
// closes the store.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	store := "memory"
	if app.config.DatabaseDSN != "" {
		store = "postgres"
	}
	app.logger.Info(ctx, "Starting app...", "store", store)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	return app.repos.Close()
}
