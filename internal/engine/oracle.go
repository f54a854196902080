package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"schroedinger/internal/core"
)

var ErrNoSuggestion = errors.New("no move to suggest")

// Suggester proposes a move for a classical position in FEN.
type Suggester interface {
	SuggestMove(ctx context.Context, fen string) (core.Move, error)
}

// UCIOracle suggests moves with a UCI engine searching the guess position.
type UCIOracle struct {
	uci      *UCI
	movetime time.Duration
}

func NewUCIOracle(uci *UCI, movetime time.Duration) *UCIOracle {
	if movetime <= 0 {
		movetime = 100 * time.Millisecond
	}
	return &UCIOracle{uci: uci, movetime: movetime}
}

// Tune applies a computer player's skill level and search time. A
// non-positive movetime keeps the current one.
func (o *UCIOracle) Tune(level int, movetime time.Duration) {
	o.uci.SetSkillLevel(level)
	if movetime > 0 {
		o.movetime = movetime
	}
}

func (o *UCIOracle) SuggestMove(ctx context.Context, fen string) (core.Move, error) {
	res, err := o.uci.Search(ctx, fen, o.movetime)
	if err != nil {
		return core.Move{}, err
	}
	if len(res.BestMove) < 4 || res.BestMove == "(none)" {
		return core.Move{}, ErrNoSuggestion
	}
	// Promotion suffix is dropped; promoted natures are decided by the solver.
	return core.ParseMove(res.BestMove[:4])
}

// GuessMover plays classical chess on the guess board: it prefers captures,
// then checks, then any valid move, breaking ties at random.
type GuessMover struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGuessMover(seed uint64) *GuessMover {
	return &GuessMover{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *GuessMover) SuggestMove(ctx context.Context, fen string) (m core.Move, err error) {
	if err := ctx.Err(); err != nil {
		return core.Move{}, err
	}
	// The guess board need not be a legal chess position.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("move generator failed on %q: %v", fen, r)
		}
	}()

	opt, err := chess.FEN(fen)
	if err != nil {
		return core.Move{}, fmt.Errorf("parse guess fen: %w", err)
	}
	valid := chess.NewGame(opt).ValidMoves()
	if len(valid) == 0 {
		return core.Move{}, ErrNoSuggestion
	}

	var captures, checks []*chess.Move
	for _, mv := range valid {
		switch {
		case mv.HasTag(chess.Capture):
			captures = append(captures, mv)
		case mv.HasTag(chess.Check):
			checks = append(checks, mv)
		}
	}
	pool := valid
	if len(captures) > 0 {
		pool = captures
	} else if len(checks) > 0 {
		pool = checks
	}

	g.mu.Lock()
	pick := pool[g.rng.IntN(len(pool))]
	g.mu.Unlock()

	return core.Move{From: fromChess(pick.S1()), To: fromChess(pick.S2())}, nil
}

func fromChess(sq chess.Square) core.Square {
	return core.Square{File: int(sq.File()), Rank: int(sq.Rank())}
}

// Chain asks each oracle in turn and returns the first suggestion.
type Chain struct {
	oracles []namedOracle
	logger  zerolog.Logger
}

type namedOracle struct {
	name string
	o    Suggester
}

func NewChain(logger zerolog.Logger) *Chain {
	return &Chain{logger: logger.With().Str("component", "oracle").Logger()}
}

// Add appends an oracle. A nil oracle is ignored.
func (c *Chain) Add(name string, o Suggester) *Chain {
	if o != nil {
		c.oracles = append(c.oracles, namedOracle{name: name, o: o})
	}
	return c
}

// Tuner is implemented by oracles whose strength can be adjusted.
type Tuner interface {
	Tune(level int, movetime time.Duration)
}

// Tune forwards to every oracle in the chain that supports it.
func (c *Chain) Tune(level int, movetime time.Duration) {
	for _, n := range c.oracles {
		if t, ok := n.o.(Tuner); ok {
			t.Tune(level, movetime)
		}
	}
}

func (c *Chain) Len() int {
	return len(c.oracles)
}

func (c *Chain) SuggestMove(ctx context.Context, fen string) (core.Move, error) {
	for _, n := range c.oracles {
		m, err := n.o.SuggestMove(ctx, fen)
		if err == nil {
			return m, nil
		}
		if ctx.Err() != nil {
			return core.Move{}, ctx.Err()
		}
		c.logger.Debug().Str("oracle", n.name).Err(err).Msg("no suggestion")
	}
	return core.Move{}, ErrNoSuggestion
}

// NewDefaultChain tries the UCI engine at path and always ends with a
// GuessMover. An empty path skips the engine. The returned close func stops
// the engine process, if one was started.
func NewDefaultChain(ctx context.Context, path string, movetime time.Duration, seed uint64, logger zerolog.Logger) (*Chain, func() error) {
	chain := NewChain(logger)
	closeFn := func() error { return nil }

	if path != "" {
		uci, err := NewUCI(ctx, path, logger)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("uci engine unavailable, using guess mover")
		} else {
			chain.Add("uci", NewUCIOracle(uci, movetime))
			closeFn = uci.Close
		}
	}
	chain.Add("guess", NewGuessMover(seed))
	return chain, closeFn
}
