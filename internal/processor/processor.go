package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"schroedinger/internal/board"
	"schroedinger/internal/core"
	"schroedinger/internal/engine"
	"schroedinger/internal/game"
	"schroedinger/internal/service"
)

const minSearchTime = 100

// Options tunes a Processor.
type Options struct {
	// SolverTimeout bounds every synchronous solver-backed command; zero
	// leaves only the caller's context.
	SolverTimeout time.Duration
	// Narrow queues a narrow-all pass after every committed move.
	Narrow bool
}

// Processor handles command execution and coordinates between the service
// and the engine queue.
type Processor struct {
	svc    *service.Service
	queue  *EngineQueue
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[string]bool // games with a queued computer move
}

func New(svc *service.Service, queue *EngineQueue, opts Options, logger zerolog.Logger) *Processor {
	return &Processor{
		svc:     svc,
		queue:   queue,
		opts:    opts,
		logger:  logger.With().Str("component", "processor").Logger(),
		pending: make(map[string]bool),
	}
}

func (p *Processor) Execute(ctx context.Context, cmd Command) ProcessorResponse {
	if p.opts.SolverTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.SolverTimeout)
		defer cancel()
	}

	switch cmd.Type {
	case CmdCreateGame:
		return p.handleCreateGame(cmd)
	case CmdGetGame:
		return p.handleGetGame(cmd)
	case CmdDeleteGame:
		return p.handleDeleteGame(cmd)
	case CmdMakeMove:
		return p.handleMakeMove(ctx, cmd)
	case CmdAutoMove:
		return p.handleAutoMove(cmd)
	case CmdLegalMoves:
		return p.handleLegalMoves(ctx, cmd)
	case CmdNatures:
		return p.handleNatures(ctx, cmd)
	case CmdOutcome:
		return p.handleOutcome(ctx, cmd)
	case CmdGetBoard:
		return p.handleGetBoard(cmd)
	default:
		return p.errorResponse("unknown command", core.ErrCodeInvalidRequest)
	}
}

// handleCreateGame creates a new game and queues a computer move if white
// is a computer
func (p *Processor) handleCreateGame(cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.CreateGameRequest)
	if !ok {
		return p.errorResponse("invalid arguments", core.ErrCodeInvalidRequest)
	}

	if args.White.Type == core.PlayerComputer && args.White.SearchTime < minSearchTime {
		args.White.SearchTime = minSearchTime
	}
	if args.Black.Type == core.PlayerComputer && args.Black.SearchTime < minSearchTime {
		args.Black.SearchTime = minSearchTime
	}

	gameID := p.svc.GenerateGameID()
	g, err := p.svc.CreateGame(gameID, args.White, args.Black)
	if err != nil {
		return p.errorResponse(fmt.Sprintf("failed to create game: %v", err), core.ErrCodeInternalError)
	}

	pending := p.maybeTriggerComputer(gameID, g)
	return ProcessorResponse{
		Success: true,
		Pending: pending,
		Data:    p.buildGameResponse(gameID, g),
	}
}

func (p *Processor) handleGetGame(cmd Command) ProcessorResponse {
	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.fail(err)
	}
	return ProcessorResponse{
		Success: true,
		Pending: p.isPending(cmd.GameID),
		Data:    p.buildGameResponse(cmd.GameID, g),
	}
}

func (p *Processor) handleDeleteGame(cmd Command) ProcessorResponse {
	if _, err := p.svc.GetGame(cmd.GameID); err != nil {
		return p.fail(err)
	}
	if p.isPending(cmd.GameID) {
		return p.errorResponse("cannot delete game while computer move is in progress", core.ErrCodeInvalidRequest)
	}
	if err := p.svc.DeleteGame(cmd.GameID); err != nil {
		return p.fail(err)
	}
	return ProcessorResponse{Success: true}
}

// handleMakeMove processes human moves
func (p *Processor) handleMakeMove(ctx context.Context, cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.MoveRequest)
	if !ok {
		return p.errorResponse("invalid arguments", core.ErrCodeInvalidRequest)
	}
	m, err := core.ParseMove(strings.ToLower(strings.TrimSpace(args.From)) + strings.ToLower(strings.TrimSpace(args.To)))
	if err != nil {
		return p.errorResponse("invalid move format", core.ErrCodeInvalidMove)
	}

	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.fail(err)
	}
	player := g.NextPlayer()
	if player.Type != core.PlayerHuman {
		return p.errorResponse("not human player's turn", core.ErrCodeNotHumanTurn)
	}
	if p.isPending(cmd.GameID) {
		return p.errorResponse("auto move in progress", core.ErrCodeInvalidRequest)
	}

	res, err := p.svc.MakeMove(ctx, cmd.GameID, player.Color, m)
	if err != nil {
		return p.fail(err)
	}
	p.afterMove(cmd.GameID, g)
	pending := p.maybeTriggerComputer(cmd.GameID, g)

	resp := p.buildGameResponse(cmd.GameID, g)
	resp.LastMove = moveInfo(res.Record)
	return ProcessorResponse{
		Success: true,
		Pending: pending,
		Data:    resp,
	}
}

// handleAutoMove queues an auto-move for the side to move, human or not.
func (p *Processor) handleAutoMove(cmd Command) ProcessorResponse {
	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.fail(err)
	}
	switch g.State() {
	case core.StateEnded:
		return p.errorResponse("game is over", core.ErrCodeGameOver)
	case core.StateCorrupt:
		return p.errorResponse("game history is corrupt", core.ErrCodeGameCorrupt)
	}
	if !p.triggerAutoMove(cmd.GameID, g.NextPlayer()) {
		return p.errorResponse("computer move already queued or queue full", core.ErrCodeResourceLimit)
	}
	return ProcessorResponse{
		Success: true,
		Pending: true,
		Data:    p.buildGameResponse(cmd.GameID, g),
	}
}

func (p *Processor) handleLegalMoves(ctx context.Context, cmd Command) ProcessorResponse {
	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.fail(err)
	}

	var moves []core.Move
	from, _ := cmd.Args.(string)
	if from != "" {
		sq, err := core.ParseSquare(strings.ToLower(from))
		if err != nil {
			return p.errorResponse("invalid square", core.ErrCodeInvalidRequest)
		}
		dests, err := g.LegalDestinationsFrom(ctx, sq)
		if err != nil {
			return p.fail(err)
		}
		for _, to := range dests {
			moves = append(moves, core.Move{From: sq, To: to})
		}
	} else {
		if moves, err = g.AllLegalMoves(ctx); err != nil {
			return p.fail(err)
		}
	}

	resp := core.LegalMovesResponse{Moves: make([]core.MovePair, len(moves))}
	for i, m := range moves {
		resp.Moves[i] = core.MovePair{From: m.From.String(), To: m.To.String()}
	}
	return ProcessorResponse{Success: true, Data: resp}
}

// handleNatures narrows the piece on a square and returns its natures.
func (p *Processor) handleNatures(ctx context.Context, cmd Command) ProcessorResponse {
	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.fail(err)
	}
	arg, _ := cmd.Args.(string)
	sq, err := core.ParseSquare(strings.ToLower(arg))
	if err != nil {
		return p.errorResponse("invalid square", core.ErrCodeInvalidRequest)
	}
	piece, ok := g.PieceAt(sq)
	if !ok {
		return p.errorResponse(fmt.Sprintf("no piece on %s", sq), core.ErrCodeInvalidRequest)
	}
	set, err := g.NarrowNatures(ctx, piece.ID)
	if err != nil {
		return p.fail(err)
	}
	return ProcessorResponse{
		Success: true,
		Data:    core.NaturesResponse{Square: sq.String(), Natures: set},
	}
}

func (p *Processor) handleOutcome(ctx context.Context, cmd Command) ProcessorResponse {
	outcome, err := p.svc.EndGame(ctx, cmd.GameID)
	if err != nil {
		return p.fail(err)
	}
	return ProcessorResponse{Success: true, Data: core.NewOutcomeInfo(outcome)}
}

// handleGetBoard returns board visualization
func (p *Processor) handleGetBoard(cmd Command) ProcessorResponse {
	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.fail(err)
	}
	arg, _ := cmd.Args.(string)
	mode, err := board.ParseRenderMode(arg)
	if err != nil {
		return p.errorResponse(err.Error(), core.ErrCodeInvalidRequest)
	}
	ascii, err := g.ASCII(mode)
	if err != nil {
		return p.fail(err)
	}
	return ProcessorResponse{
		Success: true,
		Data: core.BoardResponse{
			FEN:   g.Snapshot().GuessFEN,
			Mode:  string(mode),
			Board: ascii,
		},
	}
}

// afterMove queues background narrowing for the new ply.
func (p *Processor) afterMove(gameID string, g *game.Game) {
	if !p.opts.Narrow {
		return
	}
	err := p.queue.Submit(EngineTask{
		Kind:   TaskNarrow,
		GameID: gameID,
		Run: func(ctx context.Context, _ game.Oracle) error {
			n, err := g.ComputeNarrowing(ctx)
			if err != nil {
				return err
			}
			_, err = g.ApplyNarrowing(n)
			return err
		},
	})
	if err != nil {
		p.logger.Debug().Str("game_id", gameID).Err(err).Msg("narrowing skipped")
	}
}

// maybeTriggerComputer queues a move when the side to move is a computer.
func (p *Processor) maybeTriggerComputer(gameID string, g *game.Game) bool {
	if g.State() != core.StateAwaitingMove {
		return false
	}
	player := g.NextPlayer()
	if player.Type != core.PlayerComputer {
		return false
	}
	return p.triggerAutoMove(gameID, player)
}

func (p *Processor) triggerAutoMove(gameID string, player *core.Player) bool {
	p.mu.Lock()
	if p.pending[gameID] {
		p.mu.Unlock()
		return false
	}
	p.pending[gameID] = true
	p.mu.Unlock()

	err := p.queue.Submit(EngineTask{
		Kind:   TaskAutoMove,
		GameID: gameID,
		Run: func(ctx context.Context, oracle game.Oracle) error {
			return p.runAutoMove(ctx, gameID, player, oracle)
		},
	})
	if err != nil {
		p.clearPending(gameID)
		p.logger.Warn().Str("game_id", gameID).Err(err).Msg("auto-move not queued")
		return false
	}
	return true
}

func (p *Processor) runAutoMove(ctx context.Context, gameID string, player *core.Player, oracle game.Oracle) error {
	if t, ok := oracle.(engine.Tuner); ok && player.Type == core.PlayerComputer {
		t.Tune(player.Level, time.Duration(player.SearchTime)*time.Millisecond)
	}

	_, err := p.svc.AutoMove(ctx, gameID, oracle)
	p.clearPending(gameID)
	if errors.Is(err, core.ErrGameOver) {
		return nil
	}
	if err != nil {
		return err
	}

	g, err := p.svc.GetGame(gameID)
	if err != nil {
		return nil // deleted meanwhile
	}
	p.afterMove(gameID, g)
	p.maybeTriggerComputer(gameID, g)
	return nil
}

func (p *Processor) clearPending(gameID string) {
	p.mu.Lock()
	delete(p.pending, gameID)
	p.mu.Unlock()
}

func (p *Processor) isPending(gameID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[gameID]
}

// buildGameResponse constructs standard game response
func (p *Processor) buildGameResponse(gameID string, g *game.Game) core.GameResponse {
	snap := g.Snapshot()
	resp := core.GameResponse{
		GameID:  gameID,
		Turn:    snap.Turn.String(),
		State:   g.State().String(),
		Ply:     snap.Ply,
		Outcome: core.NewOutcomeInfo(snap.Outcome),
		Moves:   make([]core.MoveInfo, len(snap.Moves)),
		Pieces:  snap.View.Pieces(),
		Players: core.PlayersResponse{
			White: g.Player(core.ColorWhite),
			Black: g.Player(core.ColorBlack),
		},
	}
	if p.isPending(gameID) && g.State() == core.StateAwaitingMove {
		resp.State = core.StatePending.String()
	}
	for i, rec := range snap.Moves {
		resp.Moves[i] = *moveInfo(rec)
	}
	if n := len(resp.Moves); n > 0 {
		resp.LastMove = &resp.Moves[n-1]
	}
	return resp
}

func moveInfo(rec board.Record) *core.MoveInfo {
	return &core.MoveInfo{
		From:        rec.From.String(),
		To:          rec.To.String(),
		PlayerColor: rec.Mover.Color.String(),
		Eliminated:  rec.Eliminated,
	}
}

// fail maps an engine or service error to a response.
func (p *Processor) fail(err error) ProcessorResponse {
	if reason, ok := core.ReasonOf(err); ok {
		if reason == core.ReasonSolverInconclusive {
			return p.errorResponse(err.Error(), core.ErrCodeInconclusive)
		}
		resp := p.errorResponse(err.Error(), core.ErrCodeInvalidMove)
		resp.Error.Reason = reason.String()
		return resp
	}
	switch {
	case errors.Is(err, service.ErrGameNotFound):
		return p.errorResponse("game not found", core.ErrCodeGameNotFound)
	case errors.Is(err, core.ErrGameOver):
		return p.errorResponse(err.Error(), core.ErrCodeGameOver)
	case errors.Is(err, core.ErrGameCorrupt):
		return p.errorResponse(err.Error(), core.ErrCodeGameCorrupt)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return p.errorResponse(err.Error(), core.ErrCodeInconclusive)
	}
	p.logger.Error().Err(err).Msg("command failed")
	return p.errorResponse(err.Error(), core.ErrCodeInternalError)
}

// errorResponse creates error response
func (p *Processor) errorResponse(message, code string) ProcessorResponse {
	return ProcessorResponse{
		Success: false,
		Error: &core.ErrorResponse{
			Error: message,
			Code:  code,
		},
	}
}

// Close stops the queue.
func (p *Processor) Close() error {
	return p.queue.Shutdown(5 * time.Second)
}
