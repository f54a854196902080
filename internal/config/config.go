// Package config holds the flag-driven settings shared by the binaries.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type Config struct {
	// API server
	Host      string `validate:"required,hostname|ip"`
	Port      int    `validate:"min=1,max=65535"`
	Dev       bool
	RateLimit int `validate:"min=0,max=10000"`
	AccessLog bool

	// Persistence, empty disables
	StoragePath string

	PIDPath string
	PIDLock bool

	// Solver and engine
	Solver        string        `validate:"oneof=pb backtrack"`
	SolverTimeout time.Duration `validate:"min=0"`
	MaxNodes      int           `validate:"min=0"`
	Workers       int           `validate:"min=1,max=64"`
	EnginePath    string
	EngineTime    time.Duration `validate:"min=0"`
	Narrow        bool
	Seed          uint64

	LogLevel string `validate:"oneof=trace debug info warn error disabled"`
	Theme    string `validate:"omitempty,oneof=off brown green gray"`
}

func Default() Config {
	return Config{
		Host:          "localhost",
		Port:          8080,
		Solver:        "pb",
		SolverTimeout: 20 * time.Second,
		Workers:       2,
		EnginePath:    "stockfish",
		EngineTime:    500 * time.Millisecond,
		Narrow:        true,
		Seed:          uint64(time.Now().UnixNano()),
		LogLevel:      "info",
	}
}

// RegisterFlags binds every field to fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Host, "api-host", c.Host, "API server host")
	fs.IntVar(&c.Port, "api-port", c.Port, "API server port")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "Development mode (relaxed rate limits)")
	fs.IntVar(&c.RateLimit, "rate-limit", c.RateLimit, "Requests per second per client, 0 for the default")
	fs.BoolVar(&c.AccessLog, "access-log", c.AccessLog, "Log every HTTP request")
	fs.StringVar(&c.StoragePath, "storage-path", c.StoragePath, "Path to SQLite database file (disables persistence if empty)")
	fs.StringVar(&c.PIDPath, "pid", c.PIDPath, "Optional path to write PID file")
	fs.BoolVar(&c.PIDLock, "pid-lock", c.PIDLock, "Lock PID file to allow only one instance (requires -pid)")
	fs.DurationVar(&c.SolverTimeout, "solver-timeout", c.SolverTimeout, "Bound on every solver-backed request, 0 for none")
	fs.StringVar(&c.Solver, "solver", c.Solver, "Solver backend (pb|backtrack)")
	fs.IntVar(&c.MaxNodes, "max-nodes", c.MaxNodes, "Backtracking node budget per query, 0 for unlimited")
	fs.IntVar(&c.Workers, "workers", c.Workers, "Background solver workers")
	fs.StringVar(&c.EnginePath, "engine", c.EnginePath, "UCI engine binary, empty to disable")
	fs.DurationVar(&c.EngineTime, "engine-time", c.EngineTime, "Default engine search time")
	fs.BoolVar(&c.Narrow, "narrow", c.Narrow, "Narrow piece natures after every move")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "Random seed for fallback moves")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (trace|debug|info|warn|error|disabled)")
	fs.StringVar(&c.Theme, "theme", c.Theme, "Board color theme (off|brown|green|gray)")
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var parts []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			}
		} else {
			parts = append(parts, err.Error())
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(parts, "; "))
	}
	if c.PIDLock && c.PIDPath == "" {
		return fmt.Errorf("invalid configuration: -pid-lock requires -pid")
	}
	return nil
}

// Parse fills a Default config from args and validates it.
func Parse(name string, args []string) (Config, error) {
	c := Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// NewLogger builds the process logger. Console output is used for terminals.
func NewLogger(level string, w io.Writer, console bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if w == nil {
		w = os.Stderr
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
