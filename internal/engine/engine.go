package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const DefaultPath = "stockfish"

var errEngineClosed = errors.New("engine closed unexpectedly")

// UCI drives an external UCI engine over stdin/stdout. Lines are read by a
// single goroutine so a timed-out wait never leaves a reader behind.
type UCI struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	mu     sync.Mutex // serialises whole request/response exchanges
	logger zerolog.Logger
}

type SearchResult struct {
	BestMove string
	Score    int
	Depth    int
	IsMate   bool
	MateIn   int
}

// NewUCI starts the engine binary at path and completes the uci/isready
// handshake within ctx.
func NewUCI(ctx context.Context, path string, logger zerolog.Logger) (*UCI, error) {
	if path == "" {
		path = DefaultPath
	}
	cmd := exec.Command(path)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}

	u := &UCI{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string, 64),
		logger: logger.With().Str("component", "uci").Str("path", path).Logger(),
	}
	go u.read(stdout)

	if err := u.initialize(ctx); err != nil {
		u.Close()
		return nil, err
	}
	return u, nil
}

func (u *UCI) read(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		u.lines <- sc.Text()
	}
	close(u.lines)
}

// await consumes lines until match returns true.
func (u *UCI) await(ctx context.Context, match func(string) bool) error {
	for {
		select {
		case line, ok := <-u.lines:
			if !ok {
				return errEngineClosed
			}
			if match(line) {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (u *UCI) send(cmd string) error {
	_, err := fmt.Fprintln(u.stdin, cmd)
	return err
}

func (u *UCI) initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := u.send("uci"); err != nil {
		return err
	}
	if err := u.await(ctx, func(l string) bool { return l == "uciok" }); err != nil {
		return fmt.Errorf("waiting for uciok: %w", err)
	}
	return u.ready(ctx)
}

func (u *UCI) ready(ctx context.Context) error {
	if err := u.send("isready"); err != nil {
		return err
	}
	if err := u.await(ctx, func(l string) bool { return l == "readyok" }); err != nil {
		return fmt.Errorf("waiting for readyok: %w", err)
	}
	return nil
}

// SetSkillLevel sets the Stockfish skill level (0-20)
func (u *UCI) SetSkillLevel(level int) error {
	level = min(max(level, 0), 20)
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.send(fmt.Sprintf("setoption name Skill Level value %d", level))
}

func (u *UCI) NewGame(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.send("ucinewgame"); err != nil {
		return err
	}
	return u.ready(ctx)
}

// Search sets the position and searches it for movetime. The wait is bounded
// by ctx and by twice the movetime plus a second.
func (u *UCI) Search(ctx context.Context, fen string, movetime time.Duration) (*SearchResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 2*movetime+time.Second)
	defer cancel()

	if err := u.send("position fen " + fen); err != nil {
		return nil, err
	}
	if err := u.send(fmt.Sprintf("go movetime %d", movetime.Milliseconds())); err != nil {
		return nil, err
	}

	result := &SearchResult{}
	err := u.await(ctx, func(line string) bool {
		if strings.HasPrefix(line, "info ") {
			parseInfo(line, result)
			return false
		}
		if strings.HasPrefix(line, "bestmove ") {
			if parts := strings.Fields(line); len(parts) >= 2 {
				result.BestMove = parts[1]
			}
			return true
		}
		return false
	})
	if err != nil {
		// A pending search would answer the next request.
		u.send("stop")
		return nil, fmt.Errorf("waiting for bestmove: %w", err)
	}
	u.logger.Debug().Str("fen", fen).Str("bestmove", result.BestMove).Int("depth", result.Depth).Msg("search done")
	return result, nil
}

func parseInfo(line string, result *SearchResult) {
	fields := strings.Fields(line)
	for i := 0; i < len(fields)-1; i++ {
		switch fields[i] {
		case "depth":
			fmt.Sscanf(fields[i+1], "%d", &result.Depth)
		case "cp":
			fmt.Sscanf(fields[i+1], "%d", &result.Score)
			result.IsMate = false
		case "mate":
			fmt.Sscanf(fields[i+1], "%d", &result.MateIn)
			result.IsMate = true
			if result.MateIn > 0 {
				result.Score = 100000 - result.MateIn
			} else {
				result.Score = -100000 - result.MateIn
			}
		}
	}
}

func (u *UCI) Close() error {
	u.mu.Lock()
	u.send("quit")
	u.stdin.Close()
	u.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- u.cmd.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-time.After(time.Second):
		// Force kill if doesn't exit gracefully
		return u.cmd.Process.Kill()
	}
}
