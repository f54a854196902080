// Package main implements the Schroedinger chess server with its RESTful API
// and background solver workers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"schroedinger/cmd/schroedinger-server/cli"
	"schroedinger/internal/config"
	"schroedinger/internal/consistency"
	"schroedinger/internal/engine"
	"schroedinger/internal/game"
	"schroedinger/internal/http"
	"schroedinger/internal/processor"
	"schroedinger/internal/service"
	"schroedinger/internal/solver"
	"schroedinger/internal/storage"
)

const (
	gracefulShutdownTimeout = time.Second * 5
)

func main() {
	// Check for CLI database commands
	if len(os.Args) > 1 && os.Args[1] == "db" {
		if err := cli.Run(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "CLI error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Parse(os.Args[0], os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg.LogLevel, os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	// Manage PID file if requested
	if cfg.PIDPath != "" {
		cleanup, err := managePIDFile(cfg.PIDPath, cfg.PIDLock)
		if err != nil {
			return fmt.Errorf("failed to manage PID file: %w", err)
		}
		defer cleanup()
		logger.Info().Str("path", cfg.PIDPath).Bool("lock", cfg.PIDLock).Msg("PID file created")
	}

	// 1. Initialize Storage (optional)
	var store *storage.Store
	if cfg.StoragePath != "" {
		var err error
		store, err = storage.NewStore(cfg.StoragePath, cfg.Dev, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		if err := store.InitDB(); err != nil {
			store.Close()
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		logger.Info().Str("path", cfg.StoragePath).Msg("persistent storage enabled")
	} else {
		logger.Info().Msg("persistent storage disabled (use -storage-path to enable)")
	}

	// 2. Service owns games, the shared consistency checker and storage
	backend, err := solver.New(cfg.Solver, cfg.MaxNodes)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return err
	}
	logger.Info().Str("solver", cfg.Solver).Msg("consistency solver ready")
	checker := consistency.NewChecker(backend, logger)
	svc := service.New(checker, store, logger)

	// 3. Each queue worker owns an oracle chain with its own engine process
	factory := func(ctx context.Context, worker int) (game.Oracle, func() error, error) {
		chain, closeFn := engine.NewDefaultChain(ctx, cfg.EnginePath, cfg.EngineTime, cfg.Seed+uint64(worker), logger)
		return chain, closeFn, nil
	}
	queue := processor.NewEngineQueue(cfg.Workers, cfg.SolverTimeout, factory, logger)
	proc := processor.New(svc, queue, processor.Options{
		SolverTimeout: cfg.SolverTimeout,
		Narrow:        cfg.Narrow,
	}, logger)

	// 4. HTTP surface
	app := http.NewFiberApp(proc, svc, http.Config{
		DevMode:   cfg.Dev,
		RateLimit: cfg.RateLimit,
		AccessLog: cfg.AccessLog,
	})

	apiAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listenErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", "http://"+apiAddr).
			Str("games", fmt.Sprintf("http://%s/api/v1/games", apiAddr)).
			Str("health", fmt.Sprintf("http://%s/health", apiAddr)).
			Bool("dev", cfg.Dev).
			Int("workers", cfg.Workers).
			Msg("Schroedinger API server starting")
		listenErr <- app.Listen(apiAddr)
	}()

	// Wait for an interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
	case err := <-listenErr:
		runErr = fmt.Errorf("API server listen error: %w", err)
	}

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server forced to shutdown")
	}

	// Stop workers before the service so no task outlives its game
	if err := proc.Close(); err != nil {
		logger.Warn().Err(err).Msg("processor close error")
	}

	// Service shutdown releases waiters and closes storage
	if err := svc.Close(); err != nil {
		logger.Warn().Err(err).Msg("service shutdown error")
	}

	logger.Info().Msg("server exited")
	return runErr
}
