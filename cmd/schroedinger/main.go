// Package main runs a local Schroedinger chess game in the terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"schroedinger/internal/cli"
	"schroedinger/internal/config"
	"schroedinger/internal/consistency"
	"schroedinger/internal/engine"
	"schroedinger/internal/service"
	"schroedinger/internal/solver"
	"schroedinger/internal/storage"
	clitransport "schroedinger/internal/transport/cli"
)

func main() {
	cfg := config.Default()
	cfg.LogLevel = "warn"
	fs := flagSet(&cfg)
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg.LogLevel, os.Stderr, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var store *storage.Store
	if cfg.StoragePath != "" {
		store, err = storage.NewStore(cfg.StoragePath, false, logger)
		if err == nil {
			err = store.InitDB()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
			os.Exit(1)
		}
	}

	backend, err := solver.New(cfg.Solver, cfg.MaxNodes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid solver: %v\n", err)
		os.Exit(1)
	}
	checker := consistency.NewChecker(backend, logger)
	svc := service.New(checker, store, logger)
	defer svc.Close()

	oracle, closeOracle := engine.NewDefaultChain(context.Background(), cfg.EnginePath, cfg.EngineTime, cfg.Seed, logger)
	defer closeOracle()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     ".schroedinger_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	view := cli.New(rl, rl.Stdout())
	theme := cli.ColorTheme(cfg.Theme)
	if theme == "" {
		theme = cli.ThemeOff
		if term.IsTerminal(int(os.Stdout.Fd())) {
			theme = cli.ThemeBrown
		}
	}
	if err := view.SetTheme(theme); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	handler := clitransport.New(svc, view, oracle, cfg.SolverTimeout)
	view.ShowWelcome()
	handler.Run() // All game loop logic is in the handler
}
