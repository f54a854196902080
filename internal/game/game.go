package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"schroedinger/internal/board"
	"schroedinger/internal/consistency"
	"schroedinger/internal/core"
	"schroedinger/internal/geometry"
	"schroedinger/internal/lightboard"
	"schroedinger/internal/solver"
)

// Snapshot is the lock-free read model, republished after every change.
type Snapshot struct {
	Ply      int
	Turn     core.Color
	Outcome  core.Outcome
	View     lightboard.LightBoard
	Moves    []board.Record
	GuessFEN string
}

// MoveResult tracks the outcome of a move
type MoveResult struct {
	Record board.Record
	Player core.Color
	Ply    int
}

// Game is one match. Every method touching the board holds mu, so a
// provisional apply is never observed by another caller.
type Game struct {
	mu      sync.Mutex
	board   *board.Board
	checker *consistency.Checker
	players map[core.Color]*core.Player
	outcome core.Outcome
	rng     *rand.Rand
	logger  zerolog.Logger

	state      atomic.Int32
	snapshot   atomic.Pointer[Snapshot]
	lastResult atomic.Pointer[MoveResult]
}

// New starts a game on b, or on the standard position when b is nil.
func New(b *board.Board, checker *consistency.Checker, whitePlayer, blackPlayer *core.Player, logger zerolog.Logger) *Game {
	if b == nil {
		b = board.New()
	}
	g := &Game{
		board:   b,
		checker: checker,
		players: map[core.Color]*core.Player{
			core.ColorWhite: whitePlayer,
			core.ColorBlack: blackPlayer,
		},
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger: logger,
	}
	g.setState(core.StateAwaitingMove)
	g.publish()
	return g
}

// SetSeed makes random fallback moves reproducible.
func (g *Game) SetSeed(seed uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng = rand.New(rand.NewPCG(seed, seed))
}

func (g *Game) State() core.State {
	return core.State(g.state.Load())
}

func (g *Game) setState(s core.State) {
	g.state.Store(int32(s))
}

func (g *Game) Snapshot() *Snapshot {
	return g.snapshot.Load()
}

// PublicView never blocks on a running solver call.
func (g *Game) PublicView() lightboard.LightBoard {
	return g.snapshot.Load().View
}

func (g *Game) Player(c core.Color) *core.Player {
	return g.players[c]
}

func (g *Game) NextPlayer() *core.Player {
	return g.players[g.Snapshot().Turn]
}

func (g *Game) LastResult() *MoveResult {
	return g.lastResult.Load()
}

// ASCII renders the current board in the given mode.
func (g *Game) ASCII(mode board.RenderMode) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usable(); err != nil {
		return "", err
	}
	return g.board.ASCII(mode), nil
}

// Piece returns the current state of one piece.
func (g *Game) Piece(id core.PieceID) board.Piece {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.Piece(id)
}

// PieceAt returns the piece on sq, if any.
func (g *Game) PieceAt(sq core.Square) (board.Piece, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.PieceAt(sq)
}

func (g *Game) publish() {
	g.snapshot.Store(&Snapshot{
		Ply:      g.board.Ply(),
		Turn:     g.board.Turn(),
		Outcome:  g.outcome,
		View:     lightboard.FromBoard(g.board),
		Moves:    g.board.History(),
		GuessFEN: g.board.GuessFEN(),
	})
}

func (g *Game) usable() error {
	if g.State() == core.StateCorrupt {
		return core.ErrGameCorrupt
	}
	return nil
}

func (g *Game) markCorrupt(err error) error {
	g.setState(core.StateCorrupt)
	g.logger.Error().Err(err).Int("ply", g.board.Ply()).Msg("game history corrupt, refusing further calls")
	return fmt.Errorf("%w: %w", core.ErrGameCorrupt, err)
}

// trivialTest rejects moves that need no solver.
func (g *Game) trivialTest(m core.Move) error {
	if !m.From.OnBoard() || !m.To.OnBoard() {
		return core.ErrOffBoard
	}
	piece, ok := g.board.PieceAt(m.From)
	if !ok {
		return core.ErrEmptySource
	}
	c := piece.ID.Color
	if c != g.board.Turn() {
		return core.ErrWrongTurn
	}
	occ := g.board.Occupancy(m.To, c)
	if occ == geometry.Friend {
		return core.ErrFriendlyCapture
	}
	if !geometry.MoveExists(m.From, m.To) {
		return core.ErrNoSuchGeometricMove
	}
	if !geometry.FreeTrajectory(g.board, m.From, m.To) {
		return core.ErrBlocked
	}
	if piece.Natures.Has(core.Pawn) {
		if !geometry.PossibleMove(m.From, m.To, core.Pawn, c, occ) {
			return core.ErrPawnRuleViolation
		}
		return nil
	}
	if geometry.PossibleNatures(m.From, m.To, piece.Natures, c, occ).IsEmpty() {
		return core.ErrNoSuchGeometricMove
	}
	return nil
}

func inconclusive(err error) error {
	return fmt.Errorf("%w: %w", core.ErrSolverInconclusive, err)
}

// testMove provisionally applies m, solves, and rolls back on every path.
func (g *Game) testMove(ctx context.Context, m core.Move) (verdict consistency.Verdict, err error) {
	if err := g.trivialTest(m); err != nil {
		return consistency.Verdict{}, err
	}

	if _, err := g.board.ApplyProvisional(m); err != nil {
		return consistency.Verdict{}, g.markCorrupt(err)
	}
	defer func() {
		if rbErr := g.board.RollbackLast(); rbErr != nil {
			verdict, err = consistency.Verdict{}, g.markCorrupt(rbErr)
		}
	}()

	verdict, err = g.checker.Check(ctx, g.board, consistency.QueryMove)
	if err != nil {
		if errors.Is(err, solver.ErrInconclusive) {
			return consistency.Verdict{}, inconclusive(err)
		}
		return consistency.Verdict{}, err
	}
	if !verdict.Consistent {
		return verdict, core.ErrGloballyInconsistent
	}
	return verdict, nil
}

// TestMove reports whether m is legal without changing the game.
func (g *Game) TestMove(ctx context.Context, m core.Move) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usable(); err != nil {
		return err
	}
	_, err := g.testMove(ctx, m)
	return err
}

// Move validates and commits m on behalf of colour c.
func (g *Game) Move(ctx context.Context, c core.Color, m core.Move) (*MoveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.usable(); err != nil {
		return nil, err
	}
	if g.State() == core.StateEnded {
		return nil, core.ErrGameOver
	}
	if c != g.board.Turn() {
		if err := g.trivialTest(m); err != nil {
			return nil, err
		}
		return nil, core.ErrWrongTurn
	}

	g.setState(core.StateValidating)
	verdict, err := g.testMove(ctx, m)
	if err != nil {
		if g.State() != core.StateCorrupt {
			g.setState(core.StateAwaitingMove)
		}
		return nil, err
	}
	return g.commit(m, verdict)
}

func (g *Game) commit(m core.Move, verdict consistency.Verdict) (*MoveResult, error) {
	rec, err := g.board.ApplyProvisional(m)
	if err != nil {
		return nil, g.markCorrupt(err)
	}
	if !rec.Eliminated.IsEmpty() {
		mover := g.board.Piece(rec.Mover)
		if err := g.board.Narrow(rec.Mover, mover.Natures.Without(rec.Eliminated)); err != nil {
			return nil, g.markCorrupt(err)
		}
	}
	for id, n := range verdict.Assignment {
		if g.board.Piece(id).Natures.Has(n) {
			g.board.SetGuess(id, n)
		}
	}

	result := &MoveResult{Record: rec, Player: rec.Mover.Color, Ply: g.board.Ply()}
	g.lastResult.Store(result)
	g.setState(core.StateAwaitingMove)
	g.publish()

	g.logger.Info().
		Str("move", m.String()).
		Str("player", rec.Mover.Color.String()).
		Int("ply", result.Ply).
		Stringer("eliminated", rec.Eliminated).
		Bool("capture", rec.Capture).
		Bool("promotion", rec.Promotion).
		Msg("move committed")
	return result, nil
}

// legalFrom appends to dst every legal destination of from, in square order.
func (g *Game) legalFrom(ctx context.Context, from core.Square, dst []core.Move) ([]core.Move, error) {
	for i := 0; i < 64; i++ {
		m := core.Move{From: from, To: core.SquareFromIndex(i)}
		_, err := g.testMove(ctx, m)
		switch {
		case err == nil:
			dst = append(dst, m)
		case isIllegal(err):
		default:
			return nil, err
		}
	}
	return dst, nil
}

// isIllegal is true for a definite rejection, false for inconclusive
// results and real failures.
func isIllegal(err error) bool {
	r, ok := core.ReasonOf(err)
	return ok && r != core.ReasonSolverInconclusive
}

// LegalDestinationsFrom lists every square the piece on from may move to.
func (g *Game) LegalDestinationsFrom(ctx context.Context, from core.Square) ([]core.Square, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usable(); err != nil {
		return nil, err
	}

	moves, err := g.legalFrom(ctx, from, nil)
	if err != nil {
		return nil, err
	}
	out := make([]core.Square, len(moves))
	for i, m := range moves {
		out[i] = m.To
	}
	return out, nil
}

func (g *Game) ownSquares() []core.Square {
	var out []core.Square
	turn := g.board.Turn()
	for i := 0; i < 64; i++ {
		sq := core.SquareFromIndex(i)
		if p, ok := g.board.PieceAt(sq); ok && p.ID.Color == turn {
			out = append(out, sq)
		}
	}
	return out
}

func (g *Game) allLegalMoves(ctx context.Context) ([]core.Move, error) {
	moves := []core.Move{}
	var err error
	for _, from := range g.ownSquares() {
		if moves, err = g.legalFrom(ctx, from, moves); err != nil {
			return nil, err
		}
	}
	return moves, nil
}

// AllLegalMoves lists every legal move of the side to move.
func (g *Game) AllLegalMoves(ctx context.Context) ([]core.Move, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usable(); err != nil {
		return nil, err
	}
	return g.allLegalMoves(ctx)
}

// randomLegalMove tests candidate moves in random order and returns the
// first legal one, which is uniform over all legal moves.
func (g *Game) randomLegalMove(ctx context.Context) (core.Move, consistency.Verdict, bool, error) {
	var candidates []core.Move
	for _, from := range g.ownSquares() {
		for i := 0; i < 64; i++ {
			candidates = append(candidates, core.Move{From: from, To: core.SquareFromIndex(i)})
		}
	}
	g.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	for _, m := range candidates {
		verdict, err := g.testMove(ctx, m)
		switch {
		case err == nil:
			return m, verdict, true, nil
		case isIllegal(err):
		default:
			return core.Move{}, consistency.Verdict{}, false, err
		}
	}
	return core.Move{}, consistency.Verdict{}, false, nil
}

// NatureIsPossible reports whether piece id could have nature n given the
// whole history.
func (g *Game) NatureIsPossible(ctx context.Context, id core.PieceID, n core.Nature) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usable(); err != nil {
		return false, err
	}
	return g.natureIsPossible(ctx, id, n)
}

func (g *Game) natureIsPossible(ctx context.Context, id core.PieceID, n core.Nature) (bool, error) {
	natures := g.board.Piece(id).Natures
	if !natures.Has(n) {
		return false, nil
	}
	if natures == core.NewNatureSet(n) {
		return true, nil
	}

	release := g.board.Forbid(id, core.MajorSet.Without(core.NewNatureSet(n)))
	defer release()

	verdict, err := g.checker.Check(ctx, g.board, consistency.QueryNature)
	if err != nil {
		if errors.Is(err, solver.ErrInconclusive) {
			return false, inconclusive(err)
		}
		return false, err
	}
	return verdict.Consistent, nil
}

func (g *Game) possibleNatures(ctx context.Context, id core.PieceID) (core.NatureSet, error) {
	var set core.NatureSet
	for n := core.Nature(0); n < core.NatureCount; n++ {
		ok, err := g.natureIsPossible(ctx, id, n)
		if err != nil {
			return core.NoNatures, err
		}
		if ok {
			set = set.With(n)
		}
	}
	if set.IsEmpty() {
		return core.NoNatures, g.markCorrupt(fmt.Errorf("piece %v has no possible nature", id))
	}
	return set, nil
}

// NarrowNatures shrinks the candidate set of id to the natures the history
// still allows and returns it.
func (g *Game) NarrowNatures(ctx context.Context, id core.PieceID) (core.NatureSet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usable(); err != nil {
		return core.NoNatures, err
	}

	set, err := g.possibleNatures(ctx, id)
	if err != nil {
		return core.NoNatures, err
	}
	if err := g.board.Narrow(id, set); err != nil {
		return core.NoNatures, g.markCorrupt(err)
	}
	g.publish()
	return set, nil
}

// Narrowing is a batch of narrowed candidate sets computed at Ply.
type Narrowing struct {
	Ply     int
	Natures map[core.PieceID]core.NatureSet
}

// ComputeNarrowing narrows every piece on the board with more than one
// candidate, without applying the result.
func (g *Game) ComputeNarrowing(ctx context.Context) (Narrowing, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usable(); err != nil {
		return Narrowing{}, err
	}

	n := Narrowing{Ply: g.board.Ply(), Natures: make(map[core.PieceID]core.NatureSet)}
	for _, p := range g.board.Pieces() {
		if !p.OnBoard() || p.Natures.Len() < 2 {
			continue
		}
		set, err := g.possibleNatures(ctx, p.ID)
		if err != nil {
			return Narrowing{}, err
		}
		if set != p.Natures {
			n.Natures[p.ID] = set
		}
	}
	return n, nil
}

// ApplyNarrowing applies n unless a move was committed since it was
// computed. It reports whether it was applied.
func (g *Game) ApplyNarrowing(n Narrowing) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usable(); err != nil {
		return false, err
	}
	if n.Ply != g.board.Ply() {
		g.logger.Debug().Int("computed_ply", n.Ply).Int("ply", g.board.Ply()).Msg("discarding stale narrowing")
		return false, nil
	}
	for id, set := range n.Natures {
		if err := g.board.Narrow(id, set); err != nil {
			return false, g.markCorrupt(err)
		}
	}
	g.publish()
	return true, nil
}

// NarrowAll computes and applies a narrowing in one step.
func (g *Game) NarrowAll(ctx context.Context) error {
	n, err := g.ComputeNarrowing(ctx)
	if err != nil {
		return err
	}
	_, err = g.ApplyNarrowing(n)
	return err
}

// EndGame decides the outcome once the side to move has no legal move.
// Ambiguous is returned as is.
func (g *Game) EndGame(ctx context.Context) (core.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usable(); err != nil {
		return core.Outcome{}, err
	}
	if g.State() == core.StateEnded {
		return g.outcome, nil
	}

	_, _, found, err := g.randomLegalMove(ctx)
	if err != nil {
		return core.Outcome{}, err
	}
	if found {
		return core.Outcome{Kind: core.InProgress}, nil
	}
	return g.finish(ctx)
}

func (g *Game) finish(ctx context.Context) (core.Outcome, error) {
	inCheck, err := g.checker.Check(ctx, g.board, consistency.QueryInCheck)
	if err != nil {
		return core.Outcome{}, wrapSolverErr(err)
	}
	notInCheck, err := g.checker.Check(ctx, g.board, consistency.QueryNotInCheck)
	if err != nil {
		return core.Outcome{}, wrapSolverErr(err)
	}

	var outcome core.Outcome
	switch {
	case inCheck.Consistent && notInCheck.Consistent:
		outcome = core.Outcome{Kind: core.Ambiguous}
	case inCheck.Consistent:
		outcome = core.Outcome{Kind: core.Checkmate, Loser: g.board.Turn()}
	case notInCheck.Consistent:
		outcome = core.Outcome{Kind: core.Stalemate}
	default:
		return core.Outcome{}, g.markCorrupt(errors.New("neither check nor no check is consistent"))
	}

	g.outcome = outcome
	g.setState(core.StateEnded)
	g.publish()
	g.logger.Info().Stringer("outcome", outcome).Int("ply", g.board.Ply()).Msg("game ended")
	return outcome, nil
}

// Conclude ends the game with an outcome decided earlier, as when a
// finished game is replayed from storage.
func (g *Game) Conclude(o core.Outcome) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usable(); err != nil {
		return err
	}
	if !o.Over() {
		return errors.New("cannot conclude a game in progress")
	}
	if g.State() == core.StateEnded {
		return core.ErrGameOver
	}

	g.outcome = o
	g.setState(core.StateEnded)
	g.publish()
	return nil
}

func wrapSolverErr(err error) error {
	if errors.Is(err, solver.ErrInconclusive) {
		return inconclusive(err)
	}
	return err
}

// Oracle suggests a move for a classical position in FEN.
type Oracle interface {
	SuggestMove(ctx context.Context, fen string) (core.Move, error)
}

// AutoMove plays the oracle's suggestion when it is legal, and otherwise a
// uniformly random legal move. With no legal move the game ends and
// core.ErrGameOver is returned.
func (g *Game) AutoMove(ctx context.Context, oracle Oracle) (*MoveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.usable(); err != nil {
		return nil, err
	}
	if g.State() == core.StateEnded {
		return nil, core.ErrGameOver
	}

	g.setState(core.StatePending)
	defer func() {
		if g.State() == core.StatePending {
			g.setState(core.StateAwaitingMove)
		}
	}()

	if oracle != nil {
		m, err := oracle.SuggestMove(ctx, g.board.GuessFEN())
		if err == nil {
			verdict, err := g.testMove(ctx, m)
			if err == nil {
				return g.commit(m, verdict)
			}
			if !isIllegal(err) && !errors.Is(err, core.ErrSolverInconclusive) {
				return nil, err
			}
			g.logger.Debug().Str("move", m.String()).Err(err).Msg("oracle suggestion rejected")
		} else {
			g.logger.Debug().Err(err).Msg("oracle gave no suggestion")
		}
	}

	m, verdict, found, err := g.randomLegalMove(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		outcome, err := g.finish(ctx)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", core.ErrGameOver, outcome)
	}
	return g.commit(m, verdict)
}
