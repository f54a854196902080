package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schroedinger/internal/core"
	"schroedinger/internal/game"
	"schroedinger/internal/storage"
)

// CreateGame registers a new game on the standard position.
func (s *Service) CreateGame(id string, whiteConfig, blackConfig core.PlayerConfig) (*game.Game, error) {
	whitePlayer := core.NewPlayer(whiteConfig, core.ColorWhite)
	blackPlayer := core.NewPlayer(blackConfig, core.ColorBlack)

	g, err := s.register(id, whitePlayer, blackPlayer)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		s.store.RecordNewGame(storage.GameRecord{
			GameID:          id,
			WhitePlayerID:   whitePlayer.ID,
			WhiteType:       int(whitePlayer.Type),
			WhiteLevel:      whitePlayer.Level,
			WhiteSearchTime: whitePlayer.SearchTime,
			BlackPlayerID:   blackPlayer.ID,
			BlackType:       int(blackPlayer.Type),
			BlackLevel:      blackPlayer.Level,
			BlackSearchTime: blackPlayer.SearchTime,
			StartTimeUTC:    time.Now().UTC(),
		})
	}
	s.logger.Info().Str("game_id", id).
		Stringer("white", whitePlayer.Type).Stringer("black", blackPlayer.Type).
		Msg("game created")
	return g, nil
}

func (s *Service) register(id string, whitePlayer, blackPlayer *core.Player) (*game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrGameExists, id)
	}
	logger := s.logger.With().Str("game_id", id).Logger()
	g := game.New(nil, s.checker, whitePlayer, blackPlayer, logger)
	s.games[id] = g
	return g, nil
}

// MakeMove plays m for colour c and records it.
func (s *Service) MakeMove(ctx context.Context, gameID string, c core.Color, m core.Move) (*game.MoveResult, error) {
	g, err := s.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	res, err := g.Move(ctx, c, m)
	if err != nil {
		return nil, err
	}
	s.moved(gameID, g, res)
	return res, nil
}

// AutoMove lets oracle (or the random fallback) play for the side to move.
func (s *Service) AutoMove(ctx context.Context, gameID string, oracle game.Oracle) (*game.MoveResult, error) {
	g, err := s.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	res, err := g.AutoMove(ctx, oracle)
	if errors.Is(err, core.ErrGameOver) {
		s.ended(gameID, g)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.moved(gameID, g, res)
	return res, nil
}

// EndGame evaluates the position and records a final outcome.
func (s *Service) EndGame(ctx context.Context, gameID string) (core.Outcome, error) {
	g, err := s.GetGame(gameID)
	if err != nil {
		return core.Outcome{}, err
	}
	outcome, err := g.EndGame(ctx)
	if err != nil {
		return core.Outcome{}, err
	}
	if outcome.Over() {
		s.ended(gameID, g)
	}
	return outcome, nil
}

// WaitForMove returns a channel closed once the game moves past ply.
func (s *Service) WaitForMove(ctx context.Context, gameID string, ply int) (<-chan struct{}, error) {
	g, err := s.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	ch := s.waiter.RegisterWait(ctx, gameID, ply)
	// A move committed before registration would otherwise be missed.
	if current := g.Snapshot().Ply; current != ply {
		s.waiter.NotifyGame(gameID, current)
	}
	return ch, nil
}

func (s *Service) moved(gameID string, g *game.Game, res *game.MoveResult) {
	s.waiter.NotifyGame(gameID, res.Ply)

	if s.store != nil {
		s.store.RecordMove(storage.MoveRecord{
			GameID:      gameID,
			Ply:         res.Ply,
			FromSquare:  res.Record.From.String(),
			ToSquare:    res.Record.To.String(),
			PlayerColor: res.Player.String(),
			Eliminated:  res.Record.Eliminated.String(),
			GuessFEN:    g.Snapshot().GuessFEN,
			MoveTimeUTC: time.Now().UTC(),
		})
	}
}

func (s *Service) ended(gameID string, g *game.Game) {
	snap := g.Snapshot()
	s.waiter.NotifyGame(gameID, -1)

	if s.store != nil {
		loser := ""
		if snap.Outcome.Kind == core.Checkmate {
			loser = snap.Outcome.Loser.String()
		}
		s.store.RecordOutcome(gameID, snap.Outcome.Kind.String(), loser)
	}
}

// RestoreGame rebuilds a stored game by replaying its moves.
func (s *Service) RestoreGame(ctx context.Context, gameID string) (*game.Game, error) {
	if s.store == nil {
		return nil, errors.New("storage disabled")
	}
	records, err := s.store.QueryGames(gameID, "")
	if err != nil {
		return nil, err
	}
	if len(records) != 1 || gameID == "" || gameID == "*" {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	rec := records[0]
	moves, err := s.store.LoadMoves(gameID)
	if err != nil {
		return nil, err
	}

	whitePlayer := &core.Player{
		ID: rec.WhitePlayerID, Color: core.ColorWhite, Type: core.PlayerType(rec.WhiteType),
		Level: rec.WhiteLevel, SearchTime: rec.WhiteSearchTime,
	}
	blackPlayer := &core.Player{
		ID: rec.BlackPlayerID, Color: core.ColorBlack, Type: core.PlayerType(rec.BlackType),
		Level: rec.BlackLevel, SearchTime: rec.BlackSearchTime,
	}

	logger := s.logger.With().Str("game_id", gameID).Logger()
	g := game.New(nil, s.checker, whitePlayer, blackPlayer, logger)
	for _, mr := range moves {
		m, err := core.ParseMove(mr.FromSquare + mr.ToSquare)
		if err != nil {
			return nil, fmt.Errorf("replay ply %d: %w", mr.Ply, err)
		}
		c, err := core.ParseColor(mr.PlayerColor)
		if err != nil {
			return nil, fmt.Errorf("replay ply %d: %w", mr.Ply, err)
		}
		if _, err := g.Move(ctx, c, m); err != nil {
			return nil, fmt.Errorf("replay ply %d (%s): %w", mr.Ply, m, err)
		}
	}

	if outcome, err := storedOutcome(rec); err != nil {
		return nil, err
	} else if outcome.Over() {
		if err := g.Conclude(outcome); err != nil {
			return nil, fmt.Errorf("restore outcome: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[gameID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrGameExists, gameID)
	}
	s.games[gameID] = g
	logger.Info().Int("ply", len(moves)).Msg("game restored")
	return g, nil
}

func storedOutcome(rec storage.GameRecord) (core.Outcome, error) {
	if rec.Outcome == "" {
		return core.Outcome{}, nil
	}
	kind, err := core.ParseOutcomeKind(rec.Outcome)
	if err != nil {
		return core.Outcome{}, err
	}
	outcome := core.Outcome{Kind: kind}
	if kind == core.Checkmate {
		if outcome.Loser, err = core.ParseColor(rec.Loser); err != nil {
			return core.Outcome{}, fmt.Errorf("checkmate without loser: %w", err)
		}
	}
	return outcome, nil
}
