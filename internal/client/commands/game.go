package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"schroedinger/internal/client/display"
	"schroedinger/internal/core"
)

func (r *Registry) registerGameCommands() {
	r.Register(&Command{
		Name:        "new",
		ShortName:   "n",
		Description: "Create a new game",
		Usage:       "new [white] [black]   (h, c or c<level>, default h)",
		Handler:     newGameHandler,
	})
	r.Register(&Command{
		Name:        "join",
		ShortName:   "j",
		Description: "Join/set current game ID",
		Usage:       "join <gameId>",
		Handler:     joinGameHandler,
	})
	r.Register(&Command{
		Name:        "move",
		ShortName:   "m",
		Description: "Make a move",
		Usage:       "move <from><to> | move <from> <to>",
		Handler:     moveHandler,
	})
	r.Register(&Command{
		Name:        "auto",
		ShortName:   "c",
		Description: "Queue an automatic move for the side to move",
		Usage:       "auto",
		Handler:     autoMoveHandler,
	})
	r.Register(&Command{
		Name:        "legal",
		ShortName:   "l",
		Description: "List legal moves",
		Usage:       "legal [square]",
		Handler:     legalHandler,
	})
	r.Register(&Command{
		Name:        "natures",
		ShortName:   "t",
		Description: "Narrow and show the natures of a piece",
		Usage:       "natures <square>",
		Handler:     naturesHandler,
	})
	r.Register(&Command{
		Name:        "outcome",
		ShortName:   "o",
		Description: "Check whether the game is over",
		Usage:       "outcome",
		Handler:     outcomeHandler,
	})
	r.Register(&Command{
		Name:        "show",
		ShortName:   "h",
		Description: "Show board and game state",
		Usage:       "show [ids|guess|natures]",
		Handler:     showBoardHandler,
	})
	r.Register(&Command{
		Name:        "state",
		ShortName:   "s",
		Description: "Show raw game JSON",
		Usage:       "state",
		Handler:     gameStateHandler,
	})
	r.Register(&Command{
		Name:        "delete",
		ShortName:   "d",
		Description: "Delete a game",
		Usage:       "delete [gameId]",
		Handler:     deleteGameHandler,
	})
	r.Register(&Command{
		Name:        "poll",
		ShortName:   "p",
		Description: "Long-poll for game updates",
		Usage:       "poll",
		Handler:     pollHandler,
	})
}

// parsePlayer reads "h", "c" or "c<level>".
func parsePlayer(arg string) (core.PlayerConfig, error) {
	arg = strings.ToLower(arg)
	switch {
	case arg == "" || arg == "h":
		return core.PlayerConfig{Type: core.PlayerHuman}, nil
	case strings.HasPrefix(arg, "c"):
		cfg := core.PlayerConfig{Type: core.PlayerComputer, Level: 10, SearchTime: 1000}
		if rest := arg[1:]; rest != "" {
			level, err := strconv.Atoi(rest)
			if err != nil || level < 0 || level > 20 {
				return cfg, fmt.Errorf("invalid computer level: %s", rest)
			}
			cfg.Level = level
		}
		return cfg, nil
	}
	return core.PlayerConfig{}, fmt.Errorf("invalid player type: %s (use h or c)", arg)
}

func newGameHandler(ctx context.Context, s *Session, args []string) error {
	var req core.CreateGameRequest
	var err error
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	if req.White, err = parsePlayer(arg(0)); err != nil {
		return err
	}
	if req.Black, err = parsePlayer(arg(1)); err != nil {
		return err
	}

	resp, err := s.Client.CreateGame(ctx, req)
	if err != nil {
		return err
	}
	s.track(resp)
	s.printf("%sGame created: %s%s\n", display.Green, resp.GameID, display.Reset)

	if req.White.Type == core.PlayerComputer {
		return awaitComputer(ctx, s)
	}
	return nil
}

func joinGameHandler(ctx context.Context, s *Session, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: join <gameId>")
	}
	resp, err := s.Client.GetGame(ctx, args[0])
	if err != nil {
		return err
	}
	s.track(resp)
	s.printf("%sJoined game: %s%s\n", display.Green, resp.GameID, display.Reset)
	s.printf("Turn: %s | State: %s | Ply: %d\n", display.ColorForTurn(resp.Turn), resp.State, resp.Ply)
	return nil
}

func moveHandler(ctx context.Context, s *Session, args []string) error {
	gameID, err := s.game()
	if err != nil {
		return err
	}
	joined := strings.Join(args, "")
	if len(joined) != 4 {
		return fmt.Errorf("usage: move <from><to>")
	}

	resp, err := s.Client.MakeMove(ctx, gameID, joined[:2], joined[2:])
	if err != nil {
		return err
	}
	s.track(resp)
	s.printf("%sMove accepted%s", display.Green, display.Reset)
	if resp.LastMove != nil && !resp.LastMove.Eliminated.IsEmpty() {
		s.printf(" (ruled out %s)", resp.LastMove.Eliminated)
	}
	s.printf("\n")

	if resp.State == core.StatePending.String() {
		return awaitComputer(ctx, s)
	}
	return nil
}

func autoMoveHandler(ctx context.Context, s *Session, _ []string) error {
	gameID, err := s.game()
	if err != nil {
		return err
	}
	if _, err := s.Client.AutoMove(ctx, gameID); err != nil {
		return err
	}
	return awaitComputer(ctx, s)
}

// awaitComputer long-polls until a queued move lands and a human is to
// move, or the game is over.
func awaitComputer(ctx context.Context, s *Session) error {
	s.printf("%sComputer is thinking...%s\n", display.Magenta, display.Reset)
	for i := 0; i < maxAwaitedMoves; i++ {
		resp, err := s.Client.WaitForMove(ctx, s.CurrentGame, s.LastPly)
		if err != nil {
			return err
		}
		moved := resp.Ply != s.LastPly
		s.track(resp)
		if !moved {
			s.printf("%sStill thinking, use 'poll' to keep waiting%s\n", display.Yellow, display.Reset)
			return nil
		}
		if resp.LastMove != nil {
			s.printf("%sComputer played: %s%s%s\n", display.Magenta, resp.LastMove.From, resp.LastMove.To, display.Reset)
		}
		if resp.Outcome.Kind != core.InProgress.String() || resp.State == core.StateEnded.String() || !computerToMove(resp) {
			return nil
		}
	}
	return nil
}

const maxAwaitedMoves = 8

func computerToMove(g *core.GameResponse) bool {
	p := g.Players.White
	if g.Turn == "b" {
		p = g.Players.Black
	}
	return p != nil && p.Type == core.PlayerComputer
}

func legalHandler(ctx context.Context, s *Session, args []string) error {
	gameID, err := s.game()
	if err != nil {
		return err
	}
	from := ""
	if len(args) > 0 {
		from = args[0]
	}
	resp, err := s.Client.LegalMoves(ctx, gameID, from)
	if err != nil {
		return err
	}
	if len(resp.Moves) == 0 {
		s.printf("No legal moves\n")
		return nil
	}
	parts := make([]string, len(resp.Moves))
	for i, m := range resp.Moves {
		parts[i] = m.From + m.To
	}
	s.printf("%s\n", strings.Join(parts, " "))
	return nil
}

func naturesHandler(ctx context.Context, s *Session, args []string) error {
	gameID, err := s.game()
	if err != nil {
		return err
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: natures <square>")
	}
	resp, err := s.Client.Natures(ctx, gameID, args[0])
	if err != nil {
		return err
	}
	s.printf("%s: %s\n", resp.Square, resp.Natures)
	return nil
}

func outcomeHandler(ctx context.Context, s *Session, _ []string) error {
	gameID, err := s.game()
	if err != nil {
		return err
	}
	resp, err := s.Client.Outcome(ctx, gameID)
	if err != nil {
		return err
	}
	if resp.Loser != "" {
		s.printf("Outcome: %s, %s lost\n", resp.Kind, display.ColorForTurn(resp.Loser))
	} else {
		s.printf("Outcome: %s\n", resp.Kind)
	}
	return nil
}

func showBoardHandler(ctx context.Context, s *Session, args []string) error {
	gameID, err := s.game()
	if err != nil {
		return err
	}
	mode := "guess"
	if len(args) > 0 {
		mode = args[0]
	}

	g, err := s.Client.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	b, err := s.Client.GetBoard(ctx, gameID, mode)
	if err != nil {
		return err
	}
	s.track(g)

	s.printf("\n")
	display.RenderBoard(s.Out, b.Board)
	s.printf("\nGuess FEN: %s\n", b.FEN)
	s.printf("Turn: %s | State: %s | Ply: %d | Outcome: %s\n",
		display.ColorForTurn(g.Turn), g.State, g.Ply, g.Outcome.Kind)

	if len(g.Moves) > 0 {
		var sb strings.Builder
		for i, m := range g.Moves {
			if i%2 == 0 {
				fmt.Fprintf(&sb, "%d.", i/2+1)
			}
			fmt.Fprintf(&sb, "%s%s ", m.From, m.To)
		}
		s.printf("History: %s\n", strings.TrimSpace(sb.String()))
	}
	if s.view != nil {
		for _, c := range core.Colors {
			dead := s.view.Dead(c)
			if len(dead) == 0 {
				continue
			}
			parts := make([]string, len(dead))
			for i, e := range dead {
				parts[i] = e.ID.String() + e.Natures.String()
			}
			s.printf("Captured %s: %s\n", display.ColorForTurn(c.String()), strings.Join(parts, " "))
		}
	}
	return nil
}

func gameStateHandler(ctx context.Context, s *Session, _ []string) error {
	gameID, err := s.game()
	if err != nil {
		return err
	}
	resp, err := s.Client.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	s.track(resp)
	s.printf("%sGame State:%s\n", display.Cyan, display.Reset)
	display.PrettyPrintJSON(s.Out, resp)
	return nil
}

func deleteGameHandler(ctx context.Context, s *Session, args []string) error {
	gameID := s.CurrentGame
	if len(args) > 0 {
		gameID = args[0]
	}
	if gameID == "" {
		return fmt.Errorf("specify game ID or set current game")
	}
	if err := s.Client.DeleteGame(ctx, gameID); err != nil {
		return err
	}
	if gameID == s.CurrentGame {
		s.forget()
	}
	s.printf("%sGame deleted: %s%s\n", display.Green, gameID, display.Reset)
	return nil
}

func pollHandler(ctx context.Context, s *Session, _ []string) error {
	gameID, err := s.game()
	if err != nil {
		return err
	}
	ply := s.LastPly
	s.printf("%sLong-polling for updates (ply: %d)...%s\n", display.Cyan, ply, display.Reset)

	resp, err := s.Client.WaitForMove(ctx, gameID, ply)
	if err != nil {
		return err
	}
	s.track(resp)
	if resp.Ply != ply {
		s.printf("%sGame updated! Ply %d%s\n", display.Green, resp.Ply, display.Reset)
		if resp.LastMove != nil {
			s.printf("Last move: %s%s\n", resp.LastMove.From, resp.LastMove.To)
		}
	} else {
		s.printf("%sNo updates (timeout)%s\n", display.Yellow, display.Reset)
	}
	return nil
}
