package consistency

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schroedinger/internal/board"
	"schroedinger/internal/core"
	"schroedinger/internal/solver"
)

func sq(s string) core.Square {
	parsed, err := core.ParseSquare(s)
	if err != nil {
		panic(err)
	}
	return parsed
}

func white(slot int) core.PieceID { return core.PieceID{Color: core.ColorWhite, Slot: slot} }
func black(slot int) core.PieceID { return core.PieceID{Color: core.ColorBlack, Slot: slot} }

func newChecker() *Checker {
	return NewChecker(solver.NewBacktracking(0), zerolog.Nop())
}

func play(t *testing.T, b *board.Board, moves ...string) {
	t.Helper()
	for _, s := range moves {
		m, err := core.ParseMove(s)
		require.NoError(t, err)
		_, err = b.ApplyProvisional(m)
		require.NoError(t, err, s)
	}
}

func check(t *testing.T, b *board.Board, q Query) Verdict {
	t.Helper()
	v, err := newChecker().Check(context.Background(), b, q)
	require.NoError(t, err)
	return v
}

func TestStartPositionIsConsistent(t *testing.T) {
	b := board.New()
	v := check(t, b, QueryMove)
	require.True(t, v.Consistent)

	// 2 colours x (8 originals + 8 promotion slots)
	require.Len(t, v.Assignment, 32)
	for _, c := range core.Colors {
		counts := map[core.Nature]int{}
		bishopSquares := map[bool]int{}
		for slot := 0; slot < core.MajorSlots; slot++ {
			n := v.Assignment[core.PieceID{Color: c, Slot: slot}]
			counts[n]++
			if n == core.Bishop {
				bishopSquares[slot%2 == 1]++
			}
		}
		assert.Equal(t, map[core.Nature]int{core.King: 1, core.Queen: 1, core.Rook: 2, core.Bishop: 2, core.Knight: 2}, counts)
		assert.Equal(t, map[bool]int{true: 1, false: 1}, bishopSquares)
		for slot := core.FirstPromotionSlot; slot < core.SlotsPerColor; slot++ {
			assert.NotEqual(t, core.King, v.Assignment[core.PieceID{Color: c, Slot: slot}])
		}
	}
}

func TestEliminationIsEncoded(t *testing.T) {
	b := board.New()
	play(t, b, "a1b3")

	v := check(t, b, QueryMove)
	require.True(t, v.Consistent)
	assert.Equal(t, core.Knight, v.Assignment[white(0)])
}

func TestForbiddenNatures(t *testing.T) {
	b := board.New()
	play(t, b, "a1b3")

	release := b.Forbid(white(0), core.NewNatureSet(core.Knight))
	v := check(t, b, QueryNature)
	release()
	assert.False(t, v.Consistent)

	release = b.Forbid(white(1), core.MajorSet.Without(core.NewNatureSet(core.Bishop)))
	v = check(t, b, QueryNature)
	release()
	assert.True(t, v.Consistent)
	assert.Equal(t, core.Bishop, v.Assignment[white(1)])
}

func TestKingWalkingIntoPawnIsInconsistent(t *testing.T) {
	b := board.New()
	for slot := 0; slot < core.MajorSlots; slot++ {
		natures := core.MajorSet.Without(core.NewNatureSet(core.King))
		if slot == 4 {
			natures = core.NewNatureSet(core.King)
		}
		require.NoError(t, b.Narrow(white(slot), natures))
	}

	play(t, b, "e2e4", "d7d5", "e1e2", "d5e4")
	require.True(t, check(t, b, QueryMove).Consistent)

	play(t, b, "e2d3")
	assert.False(t, check(t, b, QueryMove).Consistent)
}

func TestIgnoredCheckRulesOutKing(t *testing.T) {
	b := board.New()
	play(t, b, "e2e4", "f7f6", "d1h5")

	v := check(t, b, QueryMove)
	require.True(t, v.Consistent)
	assert.Contains(t, []core.Nature{core.Queen, core.Bishop}, v.Assignment[white(3)])

	// Black ignores the diagonal h5-e8, so the e8 piece cannot be the king.
	play(t, b, "a7a6")
	v = check(t, b, QueryMove)
	require.True(t, v.Consistent)
	assert.NotEqual(t, core.King, v.Assignment[black(4)])

	release := b.Forbid(black(4), core.MajorSet.Without(core.NewNatureSet(core.King)))
	v = check(t, b, QueryNature)
	release()
	assert.False(t, v.Consistent)
}

func checkmateBoard(t *testing.T) *board.Board {
	b, err := board.NewFromPlacements([]board.Placement{
		{ID: white(4), Square: sq("a1"), Natures: core.NewNatureSet(core.King)},
		{ID: black(3), Square: sq("b2"), Natures: core.NewNatureSet(core.Queen)},
		{ID: black(4), Square: sq("c3"), Natures: core.NewNatureSet(core.King)},
	})
	require.NoError(t, err)
	return b
}

func TestCheckQueries(t *testing.T) {
	mate := checkmateBoard(t)
	assert.True(t, check(t, mate, QueryInCheck).Consistent)
	assert.False(t, check(t, mate, QueryNotInCheck).Consistent)

	stale, err := board.NewFromPlacements([]board.Placement{
		{ID: white(4), Square: sq("a1"), Natures: core.NewNatureSet(core.King)},
		{ID: black(3), Square: sq("b3"), Natures: core.NewNatureSet(core.Queen)},
		{ID: black(4), Square: sq("h8"), Natures: core.NewNatureSet(core.King)},
	})
	require.NoError(t, err)
	assert.False(t, check(t, stale, QueryInCheck).Consistent, "no attacked square means no check")
	assert.True(t, check(t, stale, QueryNotInCheck).Consistent)
}

func TestCheckQueriesUncertainKing(t *testing.T) {
	// Two white originals, one attacked by a pawn: the king may be either.
	b, err := board.NewFromPlacements([]board.Placement{
		{ID: white(2), Square: sq("a1")},
		{ID: white(4), Square: sq("h1")},
		{ID: black(9), Square: sq("b2")},
		{ID: black(4), Square: sq("h8"), Natures: core.NewNatureSet(core.King)},
	})
	require.NoError(t, err)

	assert.True(t, check(t, b, QueryInCheck).Consistent)
	assert.True(t, check(t, b, QueryNotInCheck).Consistent)
}

func TestEncodeLabelsAndSize(t *testing.T) {
	b := board.New()
	enc := Encode(b, QueryInCheck)
	assert.Equal(t, "in-check", enc.Problem.Label)
	assert.Equal(t, 2*16*5, enc.Problem.NumVars(), "no square is attacked at the start")

	assert.Equal(t, "move", QueryMove.String())
	assert.Equal(t, "nature", QueryNature.String())
	assert.Equal(t, "not-in-check", QueryNotInCheck.String())
}

type failingSolver struct{}

func (failingSolver) Solve(context.Context, *solver.Problem) (solver.Result, error) {
	return solver.Result{}, solver.ErrInconclusive
}

func TestCheckerPropagatesSolverErrors(t *testing.T) {
	c := NewChecker(failingSolver{}, zerolog.Nop())
	_, err := c.Check(context.Background(), board.New(), QueryMove)
	assert.ErrorIs(t, err, solver.ErrInconclusive)
}

func TestBackendsAgree(t *testing.T) {
	narrowedKing := func(t *testing.T) *board.Board {
		b := board.New()
		for slot := 0; slot < core.MajorSlots; slot++ {
			natures := core.MajorSet.Without(core.NewNatureSet(core.King))
			if slot == 4 {
				natures = core.NewNatureSet(core.King)
			}
			require.NoError(t, b.Narrow(white(slot), natures))
		}
		return b
	}

	tests := []struct {
		name  string
		build func(t *testing.T) *board.Board
		query Query
		want  bool
	}{
		{"start", func(*testing.T) *board.Board { return board.New() }, QueryMove, true},
		{"knight jump", func(t *testing.T) *board.Board {
			b := board.New()
			play(t, b, "a1b3")
			return b
		}, QueryMove, true},
		{"king into pawn", func(t *testing.T) *board.Board {
			b := narrowedKing(t)
			play(t, b, "e2e4", "d7d5", "e1e2", "d5e4", "e2d3")
			return b
		}, QueryMove, false},
		{"ignored check", func(t *testing.T) *board.Board {
			b := board.New()
			play(t, b, "e2e4", "f7f6", "d1h5", "a7a6")
			return b
		}, QueryMove, true},
		{"mate in check", checkmateBoard, QueryInCheck, true},
		{"mate not in check", checkmateBoard, QueryNotInCheck, false},
	}

	backends := []solver.Solver{solver.NewBacktracking(0), solver.NewPseudoBoolean()}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range backends {
				b := tt.build(t)
				v, err := NewChecker(s, zerolog.Nop()).Check(context.Background(), b, tt.query)
				require.NoError(t, err)
				assert.Equal(t, tt.want, v.Consistent, "%T", s)

				enc := Encode(b, tt.query)
				res, err := s.Solve(context.Background(), enc.Problem)
				require.NoError(t, err)
				if res.Feasible {
					assert.True(t, enc.Problem.Satisfied(res.Values), "%T", s)
				}
			}
		})
	}
}
