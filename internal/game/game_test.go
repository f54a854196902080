package game

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schroedinger/internal/board"
	"schroedinger/internal/consistency"
	"schroedinger/internal/core"
	"schroedinger/internal/solver"
)

var ctx = context.Background()

func sq(s string) core.Square {
	parsed, err := core.ParseSquare(s)
	if err != nil {
		panic(err)
	}
	return parsed
}

func mv(s string) core.Move {
	m, err := core.ParseMove(s)
	if err != nil {
		panic(err)
	}
	return m
}

func white(slot int) core.PieceID { return core.PieceID{Color: core.ColorWhite, Slot: slot} }
func black(slot int) core.PieceID { return core.PieceID{Color: core.ColorBlack, Slot: slot} }

func newGame(t *testing.T, b *board.Board) *Game {
	t.Helper()
	return newGameWith(t, b, solver.NewBacktracking(0))
}

func newGameWith(t *testing.T, b *board.Board, s solver.Solver) *Game {
	t.Helper()
	checker := consistency.NewChecker(s, zerolog.Nop())
	g := New(b, checker,
		core.NewPlayer(core.PlayerConfig{Type: core.PlayerHuman}, core.ColorWhite),
		core.NewPlayer(core.PlayerConfig{Type: core.PlayerHuman}, core.ColorBlack),
		zerolog.Nop())
	g.SetSeed(7)
	return g
}

func play(t *testing.T, g *Game, moves ...string) {
	t.Helper()
	for _, s := range moves {
		_, err := g.Move(ctx, g.Snapshot().Turn, mv(s))
		require.NoError(t, err, s)
	}
}

// stubSolver answers by problem label so expensive outcomes can be forced.
type stubSolver struct {
	feasible map[string]bool
	errs     map[string]error
}

func (s *stubSolver) Solve(_ context.Context, p *solver.Problem) (solver.Result, error) {
	if err := s.errs[p.Label]; err != nil {
		return solver.Result{}, err
	}
	return solver.Result{Feasible: s.feasible[p.Label], Values: make([]bool, p.NumVars())}, nil
}

type fixedOracle struct {
	move core.Move
	err  error
}

func (o fixedOracle) SuggestMove(context.Context, string) (core.Move, error) {
	return o.move, o.err
}

func checkmateBoard(t *testing.T) *board.Board {
	t.Helper()
	b, err := board.NewFromPlacements([]board.Placement{
		{ID: white(4), Square: sq("a1"), Natures: core.NewNatureSet(core.King)},
		{ID: black(3), Square: sq("b2"), Natures: core.NewNatureSet(core.Queen)},
		{ID: black(4), Square: sq("c3"), Natures: core.NewNatureSet(core.King)},
	})
	require.NoError(t, err)
	return b
}

func stalemateBoard(t *testing.T) *board.Board {
	t.Helper()
	b, err := board.NewFromPlacements([]board.Placement{
		{ID: white(4), Square: sq("a1"), Natures: core.NewNatureSet(core.King)},
		{ID: black(3), Square: sq("b3"), Natures: core.NewNatureSet(core.Queen)},
		{ID: black(4), Square: sq("h8"), Natures: core.NewNatureSet(core.King)},
	})
	require.NoError(t, err)
	return b
}

func TestKnightJumpRevealsKnight(t *testing.T) {
	g := newGame(t, nil)

	res, err := g.Move(ctx, core.ColorWhite, core.Move{From: core.Square{File: 0, Rank: 0}, To: core.Square{File: 1, Rank: 2}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ply)
	assert.Equal(t, white(0), res.Record.Mover)

	p := g.Piece(white(0))
	assert.Equal(t, core.NewNatureSet(core.Knight), p.Natures)
	assert.Equal(t, core.Knight, p.Guess)

	e, ok := g.PublicView().At(sq("b3"))
	require.True(t, ok)
	assert.Equal(t, core.NewNatureSet(core.Knight), e.Natures)
	assert.Equal(t, core.ColorBlack, g.Snapshot().Turn)
	assert.Equal(t, res, g.LastResult())
}

func TestTrivialRejections(t *testing.T) {
	g := newGame(t, nil)
	play(t, g, "a1b3", "h7h6")

	tests := []struct {
		name  string
		color core.Color
		move  core.Move
		want  error
	}{
		{"off board", core.ColorWhite, core.Move{From: sq("b3"), To: core.Square{File: 1, Rank: 8}}, core.ErrOffBoard},
		{"empty source", core.ColorWhite, mv("e4e5"), core.ErrEmptySource},
		{"wrong turn", core.ColorBlack, mv("e7e5"), core.ErrWrongTurn},
		{"moving the opponent", core.ColorWhite, mv("e7e5"), core.ErrWrongTurn},
		{"friendly capture", core.ColorWhite, mv("b3d2"), core.ErrFriendlyCapture},
		{"broken knight", core.ColorWhite, mv("b1c4"), core.ErrNoSuchGeometricMove},
		{"blocked", core.ColorWhite, mv("h1h3"), core.ErrBlocked},
		{"pawn triple step", core.ColorWhite, mv("e2e5"), core.ErrPawnRuleViolation},
		{"pawn diagonal without capture", core.ColorWhite, mv("e2d3"), core.ErrPawnRuleViolation},
		{"knight sliding", core.ColorWhite, mv("b3b5"), core.ErrNoSuchGeometricMove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Move(ctx, tt.color, tt.move)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 2, g.Snapshot().Ply)
			assert.Equal(t, core.StateAwaitingMove, g.State())
		})
	}
}

func TestMoveOutOfTurn(t *testing.T) {
	g := newGame(t, nil)
	_, err := g.Move(ctx, core.ColorBlack, mv("e7e5"))
	require.ErrorIs(t, err, core.ErrWrongTurn)

	r, ok := core.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, "wrong_turn", r.String())
}

func TestKingCannotWalkIntoPawn(t *testing.T) {
	b := board.New()
	for slot := 0; slot < core.MajorSlots; slot++ {
		natures := core.MajorSet.Without(core.NewNatureSet(core.King))
		if slot == 4 {
			natures = core.NewNatureSet(core.King)
		}
		require.NoError(t, b.Narrow(white(slot), natures))
	}
	g := newGame(t, b)
	play(t, g, "e2e4", "d7d5", "e1e2", "d5e4")

	err := g.TestMove(ctx, mv("e2d3"))
	assert.ErrorIs(t, err, core.ErrGloballyInconsistent)

	_, err = g.Move(ctx, core.ColorWhite, mv("e2d3"))
	assert.ErrorIs(t, err, core.ErrGloballyInconsistent)
	assert.Equal(t, 4, g.Snapshot().Ply)

	_, err = g.Move(ctx, core.ColorWhite, mv("e2e3"))
	assert.NoError(t, err)
}

func TestEveryKingCandidateAttacked(t *testing.T) {
	kingOrQueen := core.NewNatureSet(core.King, core.Queen)
	natures := [core.MajorSlots]core.NatureSet{
		core.NewNatureSet(core.Rook),
		core.NewNatureSet(core.Knight),
		core.NewNatureSet(core.Bishop),
		kingOrQueen,
		kingOrQueen,
		core.NewNatureSet(core.Bishop),
		core.NewNatureSet(core.Knight),
		core.NewNatureSet(core.Rook),
	}
	backends := map[string]solver.Solver{
		"backtrack": solver.NewBacktracking(0),
		"pb":        solver.NewPseudoBoolean(),
	}
	for name, s := range backends {
		t.Run(name, func(t *testing.T) {
			b := board.New()
			for slot, n := range natures {
				require.NoError(t, b.Narrow(white(slot), n))
			}
			g := newGameWith(t, b, s)
			// The e4 pawn ends up covering d3 and f3. After e2f3 only d2 can
			// still be the king.
			play(t, g, "e2e4", "d7d5", "d2d4", "h7h6", "e1e2", "d5e4", "d1d2", "h6h5", "e2f3", "h5h4")
			require.Equal(t, kingOrQueen, g.Piece(white(3)).Natures)
			require.Equal(t, kingOrQueen, g.Piece(white(4)).Natures)

			_, err := g.Move(ctx, core.ColorWhite, mv("d2d3"))
			assert.ErrorIs(t, err, core.ErrGloballyInconsistent)
			assert.Equal(t, 10, g.Snapshot().Ply)
			assert.Equal(t, core.StateAwaitingMove, g.State())

			_, err = g.Move(ctx, core.ColorWhite, mv("d2c3"))
			assert.NoError(t, err)
		})
	}
}

func TestTestMoveLeavesGameUntouched(t *testing.T) {
	g := newGame(t, nil)
	play(t, g, "e2e4", "d7d5")

	before := g.Snapshot()
	pieces := g.PublicView()

	require.NoError(t, g.TestMove(ctx, mv("e4d5")))
	assert.Equal(t, before, g.Snapshot())
	assert.Equal(t, pieces, g.PublicView())
	p, ok := g.PieceAt(sq("d5"))
	require.True(t, ok)
	assert.Equal(t, black(11), p.ID)
}

func TestLegalDestinations(t *testing.T) {
	g := newGame(t, nil)

	dests, err := g.LegalDestinationsFrom(ctx, sq("b1"))
	require.NoError(t, err)
	assert.Equal(t, []core.Square{sq("a3"), sq("c3")}, dests)

	dests, err = g.LegalDestinationsFrom(ctx, sq("e2"))
	require.NoError(t, err)
	assert.Equal(t, []core.Square{sq("e3"), sq("e4")}, dests)

	dests, err = g.LegalDestinationsFrom(ctx, sq("e7"))
	require.NoError(t, err)
	assert.Empty(t, dests)
}

func TestAllLegalMovesAtStart(t *testing.T) {
	g := newGame(t, nil)

	moves, err := g.AllLegalMoves(ctx)
	require.NoError(t, err)
	// 16 pawn moves plus every original piece jumping to rank 3
	assert.Len(t, moves, 30)
	assert.Contains(t, moves, mv("a1b3"))
	assert.Contains(t, moves, mv("d1c3"))

	outcome, err := g.EndGame(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.InProgress, outcome.Kind)
}

func TestNarrowing(t *testing.T) {
	g := newGame(t, nil)
	play(t, g, "a1b3", "a7a6", "h1g3", "h7h6")

	ok, err := g.NatureIsPossible(ctx, white(1), core.Knight)
	require.NoError(t, err)
	assert.False(t, ok, "both knights are known")

	ok, err = g.NatureIsPossible(ctx, white(0), core.Knight)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.NatureIsPossible(ctx, white(1), core.Pawn)
	require.NoError(t, err)
	assert.False(t, ok)

	set, err := g.NarrowNatures(ctx, white(1))
	require.NoError(t, err)
	assert.Equal(t, core.NewNatureSet(core.King, core.Queen, core.Rook, core.Bishop), set)
	assert.Equal(t, set, g.PublicView().Get(white(1)).Natures)

	set, err = g.NarrowNatures(ctx, black(1))
	require.NoError(t, err)
	assert.Equal(t, core.MajorSet, set)
}

func TestConclude(t *testing.T) {
	g := newGame(t, nil)
	play(t, g, "a1b3")

	assert.Error(t, g.Conclude(core.Outcome{}))
	require.NoError(t, g.Conclude(core.Outcome{Kind: core.Checkmate, Loser: core.ColorBlack}))
	assert.Equal(t, core.StateEnded, g.State())
	assert.Equal(t, core.Outcome{Kind: core.Checkmate, Loser: core.ColorBlack}, g.Snapshot().Outcome)

	_, err := g.Move(ctx, core.ColorBlack, mv("a7a6"))
	assert.ErrorIs(t, err, core.ErrGameOver)
	assert.ErrorIs(t, g.Conclude(core.Outcome{Kind: core.Stalemate}), core.ErrGameOver)
}

func TestNarrowAllAndStaleDiscard(t *testing.T) {
	g := newGame(t, nil)
	play(t, g, "a1b3", "a7a6", "h1g3", "h7h6")

	n, err := g.ComputeNarrowing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n.Ply)
	assert.Len(t, n.Natures, 6, "white slots 1-6 lose the knight")

	play(t, g, "e2e4")
	applied, err := g.ApplyNarrowing(n)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, core.MajorSet, g.Piece(white(2)).Natures)

	require.NoError(t, g.NarrowAll(ctx))
	assert.False(t, g.Piece(white(2)).Natures.Has(core.Knight))
	assert.Equal(t, core.MajorSet, g.Piece(black(2)).Natures)
}

func TestCheckmate(t *testing.T) {
	g := newGame(t, checkmateBoard(t))

	moves, err := g.AllLegalMoves(ctx)
	require.NoError(t, err)
	assert.Empty(t, moves)

	outcome, err := g.EndGame(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Outcome{Kind: core.Checkmate, Loser: core.ColorWhite}, outcome)
	assert.Equal(t, core.StateEnded, g.State())
	assert.Equal(t, outcome, g.Snapshot().Outcome)

	_, err = g.Move(ctx, core.ColorWhite, mv("a1a2"))
	assert.ErrorIs(t, err, core.ErrGameOver)

	again, err := g.EndGame(ctx)
	require.NoError(t, err)
	assert.Equal(t, outcome, again)
}

func TestStalemate(t *testing.T) {
	g := newGame(t, stalemateBoard(t))

	outcome, err := g.EndGame(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Outcome{Kind: core.Stalemate}, outcome)
}

func TestAmbiguousOutcomeIsSurfaced(t *testing.T) {
	s := &stubSolver{feasible: map[string]bool{"move": false, "in-check": true, "not-in-check": true}}
	g := newGameWith(t, nil, s)

	outcome, err := g.EndGame(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Ambiguous, outcome.Kind)
}

func TestContradictoryEndingCorruptsGame(t *testing.T) {
	s := &stubSolver{feasible: map[string]bool{}}
	g := newGameWith(t, nil, s)

	_, err := g.EndGame(ctx)
	require.ErrorIs(t, err, core.ErrGameCorrupt)
	assert.Equal(t, core.StateCorrupt, g.State())

	_, err = g.Move(ctx, core.ColorWhite, mv("e2e4"))
	assert.ErrorIs(t, err, core.ErrGameCorrupt)
	_, err = g.AllLegalMoves(ctx)
	assert.ErrorIs(t, err, core.ErrGameCorrupt)
}

func TestInconclusiveIsNeitherLegalNorIllegal(t *testing.T) {
	s := &stubSolver{errs: map[string]error{"move": solver.ErrInconclusive}}
	g := newGameWith(t, nil, s)

	_, err := g.Move(ctx, core.ColorWhite, mv("e2e4"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSolverInconclusive)
	assert.ErrorIs(t, err, solver.ErrInconclusive)
	assert.Equal(t, 0, g.Snapshot().Ply)
	assert.Equal(t, core.StateAwaitingMove, g.State())

	_, err = g.LegalDestinationsFrom(ctx, sq("e2"))
	assert.ErrorIs(t, err, core.ErrSolverInconclusive)

	// trivial rejections still need no solver
	_, err = g.Move(ctx, core.ColorWhite, mv("e2e5"))
	assert.ErrorIs(t, err, core.ErrPawnRuleViolation)
}

func TestAutoMoveUsesOracle(t *testing.T) {
	g := newGame(t, nil)

	res, err := g.AutoMove(ctx, fixedOracle{move: mv("g1f3")})
	require.NoError(t, err)
	assert.Equal(t, mv("g1f3"), res.Record.Move)
	assert.Equal(t, core.Knight, g.Piece(white(6)).Guess)
	assert.Contains(t, g.Snapshot().GuessFEN, "/5N2/PPPPPPPP/")
}

func TestAutoMoveFallsBack(t *testing.T) {
	oracles := map[string]Oracle{
		"none":    nil,
		"illegal": fixedOracle{move: mv("e2e5")},
		"failing": fixedOracle{err: errors.New("engine crashed")},
	}
	for name, oracle := range oracles {
		t.Run(name, func(t *testing.T) {
			g := newGame(t, nil)
			res, err := g.AutoMove(ctx, oracle)
			require.NoError(t, err)
			assert.Equal(t, core.ColorWhite, res.Player)
			assert.Equal(t, 1, g.Snapshot().Ply)
			assert.Equal(t, core.StateAwaitingMove, g.State())
		})
	}
}

func TestAutoMoveWithoutLegalMoves(t *testing.T) {
	g := newGame(t, checkmateBoard(t))

	_, err := g.AutoMove(ctx, nil)
	require.ErrorIs(t, err, core.ErrGameOver)
	assert.Equal(t, core.StateEnded, g.State())
	assert.Equal(t, core.Checkmate, g.Snapshot().Outcome.Kind)
}

func TestRandomGameInvariants(t *testing.T) {
	g := newGame(t, nil)
	prev := g.PublicView()

	for i := 0; i < 8; i++ {
		res, err := g.AutoMove(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, core.Color(i%2), res.Player, "colours alternate")

		view := g.PublicView()
		for idx, e := range view.Entries {
			assert.False(t, e.Natures.IsEmpty())
			assert.True(t, e.Natures.IsSubsetOf(prev.Entries[idx].Natures), "natures never grow")
		}
		prev = view
	}

	moves := g.Snapshot().Moves
	require.Len(t, moves, 8)
	for i, rec := range moves {
		assert.Equal(t, core.Color(i%2), rec.Mover.Color)
	}
}
