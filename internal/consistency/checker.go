package consistency

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"schroedinger/internal/solver"
)

// Verdict is the answer to one query. Assignment is advisory only.
type Verdict struct {
	Consistent bool
	Assignment Assignment
	Nodes      int
}

// Checker runs encoded queries through a solver backend.
type Checker struct {
	solver solver.Solver
	logger zerolog.Logger
}

func NewChecker(s solver.Solver, logger zerolog.Logger) *Checker {
	return &Checker{
		solver: s,
		logger: logger.With().Str("component", "consistency").Logger(),
	}
}

// Check encodes h for query q and solves it. A solver error, including
// solver.ErrInconclusive, is returned unchanged.
func (c *Checker) Check(ctx context.Context, h History, q Query) (Verdict, error) {
	start := time.Now()
	enc := Encode(h, q)

	res, err := c.solver.Solve(ctx, enc.Problem)
	log := c.logger.Debug().
		Str("query", q.String()).
		Int("ply", h.Ply()).
		Int("vars", enc.Problem.NumVars()).
		Int("constraints", enc.Problem.NumConstraints()).
		Int("nodes", res.Nodes).
		Dur("elapsed", time.Since(start))
	if err != nil {
		log.Err(err).Msg("solver failed")
		return Verdict{}, err
	}
	log.Bool("consistent", res.Feasible).Msg("solved")

	return Verdict{
		Consistent: res.Feasible,
		Assignment: enc.Decode(res),
		Nodes:      res.Nodes,
	}, nil
}
