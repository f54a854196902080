package main

import (
	"flag"
	"os"

	"schroedinger/internal/config"
)

// flagSet exposes the settings that matter for local play.
func flagSet(c *config.Config) *flag.FlagSet {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.StringVar(&c.StoragePath, "storage-path", c.StoragePath, "Path to SQLite database file (enables resume)")
	fs.DurationVar(&c.SolverTimeout, "solver-timeout", c.SolverTimeout, "Bound on every solver call, 0 for none")
	fs.StringVar(&c.Solver, "solver", c.Solver, "Solver backend (pb|backtrack)")
	fs.IntVar(&c.MaxNodes, "max-nodes", c.MaxNodes, "Backtracking node budget per query, 0 for unlimited")
	fs.StringVar(&c.EnginePath, "engine", c.EnginePath, "UCI engine binary, empty to disable")
	fs.DurationVar(&c.EngineTime, "engine-time", c.EngineTime, "Default engine search time")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "Random seed for fallback moves")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (trace|debug|info|warn|error|disabled)")
	fs.StringVar(&c.Theme, "theme", c.Theme, "Board color theme (off|brown|green|gray)")
	return fs
}
