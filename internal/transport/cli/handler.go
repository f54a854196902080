package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"schroedinger/internal/board"
	"schroedinger/internal/cli"
	"schroedinger/internal/core"
	"schroedinger/internal/engine"
	"schroedinger/internal/game"
	"schroedinger/internal/service"
)

type CLIHandler struct {
	svc     *service.Service
	view    *cli.CLI
	oracle  game.Oracle
	timeout time.Duration
	gameID  string
}

// New builds a REPL controller. oracle may be nil; timeout bounds every
// solver call when positive.
func New(svc *service.Service, view *cli.CLI, oracle game.Oracle, timeout time.Duration) *CLIHandler {
	return &CLIHandler{
		svc:     svc,
		view:    view,
		oracle:  oracle,
		timeout: timeout,
	}
}

// Main game loop - simple command processing
func (h *CLIHandler) Run() {
	for {
		cmd, err := h.view.GetCommand(h.getPrompt())
		if err != nil {
			break
		}
		if !h.ProcessCommand(cmd) {
			break
		}
	}
}

func (h *CLIHandler) context() (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(context.Background(), h.timeout)
	}
	return context.WithCancel(context.Background())
}

// current returns the active game, if any.
func (h *CLIHandler) current() *game.Game {
	if h.gameID == "" {
		h.view.ShowMessage("No active game. Use 'new'.")
		return nil
	}
	g, err := h.svc.GetGame(h.gameID)
	if err != nil {
		h.view.ShowError(err)
		h.gameID = ""
		return nil
	}
	return g
}

// Generates the appropriate command prompt
func (h *CLIHandler) getPrompt() string {
	prompt := "> "
	if h.gameID != "" {
		g, err := h.svc.GetGame(h.gameID)
		if err == nil && g.State() == core.StateAwaitingMove {
			prompt = fmt.Sprintf("[%s]> ", g.Snapshot().Turn)
			if g.NextPlayer().Type == core.PlayerComputer {
				prompt = "ENTER to execute computer move\n" + prompt
			}
		}
	}
	return prompt
}

// Handles user commands - returns false to exit
func (h *CLIHandler) ProcessCommand(cmd *cli.Command) bool {
	switch cmd.Type {
	case cli.CmdQuit:
		return false

	case cli.CmdNone:
		// Empty command triggers computer move if it's computer's turn
		if h.gameID != "" {
			g, err := h.svc.GetGame(h.gameID)
			if err == nil && g.State() == core.StateAwaitingMove &&
				g.NextPlayer().Type == core.PlayerComputer {
				h.executeAutoMove()
			}
		}

	case cli.CmdNew:
		h.handleNewGame(cmd.Args)

	case cli.CmdResume:
		h.handleResume(cmd.Args)

	case cli.CmdMove:
		h.handleMove(cmd.Args)

	case cli.CmdAuto:
		if h.current() != nil {
			h.executeAutoMove()
		}

	case cli.CmdLegal:
		h.handleLegal(cmd.Args)

	case cli.CmdNatures:
		h.handleNatures(cmd.Args)

	case cli.CmdBoard:
		g := h.current()
		if g == nil {
			return true
		}
		mode := board.RenderGuess
		if len(cmd.Args) > 0 {
			m, err := board.ParseRenderMode(cmd.Args[0])
			if err != nil {
				h.view.ShowError(err)
				return true
			}
			mode = m
		}
		if mode == board.RenderGuess {
			h.view.DisplayBoard(g)
		} else if err := h.view.DisplayASCII(g, mode); err != nil {
			h.view.ShowError(err)
		}

	case cli.CmdEnd:
		if h.current() == nil {
			return true
		}
		ctx, cancel := h.context()
		outcome, err := h.svc.EndGame(ctx, h.gameID)
		cancel()
		if err != nil {
			h.view.ShowError(err)
			return true
		}
		if outcome.Over() {
			h.view.ShowGameOver(outcome)
			h.gameID = ""
		} else {
			h.view.ShowMessage("Game in progress.")
		}

	case cli.CmdColor:
		if len(cmd.Args) < 1 {
			h.view.ShowMessage("Usage: color <off|brown|green|gray>")
			return true
		}
		theme := cli.ColorTheme(cmd.Args[0])
		if err := h.view.SetTheme(theme); err != nil {
			h.view.ShowError(err)
			return true
		}
		h.view.ShowMessage(fmt.Sprintf("Color theme set to: %s", theme))
		if h.gameID != "" {
			if g, err := h.svc.GetGame(h.gameID); err == nil {
				h.view.DisplayBoard(g)
			}
		}

	case cli.CmdVerbose:
		verbose := h.view.ToggleVerbose()
		h.view.ShowMessage(fmt.Sprintf("Verbose mode: %t", verbose))

	case cli.CmdHistory:
		if g := h.current(); g != nil {
			h.view.ShowGameHistory(g)
		}

	case cli.CmdHelp:
		h.view.ShowHelp()
	}

	return true
}

func (h *CLIHandler) handleMove(args []string) {
	g := h.current()
	if g == nil {
		return
	}
	if g.NextPlayer().Type != core.PlayerHuman {
		h.view.ShowMessage("It's not a human player's turn. Press ENTER to execute computer move.")
		return
	}

	m, err := core.ParseMove(strings.ToLower(strings.Join(args, "")))
	if err != nil {
		h.view.ShowError(err)
		return
	}

	ctx, cancel := h.context()
	result, err := h.svc.MakeMove(ctx, h.gameID, g.Snapshot().Turn, m)
	cancel()
	if err != nil {
		h.view.ShowError(fmt.Errorf("invalid move: %w", err))
		return
	}

	h.view.ShowHumanMove(result)
	h.view.DisplayBoard(g)
	h.checkOver()
}

func (h *CLIHandler) executeAutoMove() {
	g := h.current()
	if g == nil {
		return
	}
	if t, ok := h.oracle.(engine.Tuner); ok && g.NextPlayer().Type == core.PlayerComputer {
		p := g.NextPlayer()
		t.Tune(p.Level, time.Duration(p.SearchTime)*time.Millisecond)
	}

	ctx, cancel := h.context()
	result, err := h.svc.AutoMove(ctx, h.gameID, h.oracle)
	cancel()
	if err != nil {
		if errors.Is(err, core.ErrGameOver) {
			h.view.ShowGameOver(g.Snapshot().Outcome)
			h.gameID = ""
			return
		}
		h.view.ShowError(fmt.Errorf("engine error: %w", err))
		return
	}

	h.view.ShowComputerMove(result)
	h.view.DisplayBoard(g)
	h.checkOver()
}

// checkOver ends the game once the side to move has no legal move.
func (h *CLIHandler) checkOver() {
	ctx, cancel := h.context()
	defer cancel()
	outcome, err := h.svc.EndGame(ctx, h.gameID)
	if err != nil {
		if h.view.IsVerbose() {
			h.view.ShowError(err)
		}
		return
	}
	if outcome.Over() {
		h.view.ShowGameOver(outcome)
		h.gameID = ""
	}
}

func (h *CLIHandler) handleLegal(args []string) {
	g := h.current()
	if g == nil {
		return
	}
	ctx, cancel := h.context()
	defer cancel()

	var moves []core.Move
	if len(args) > 0 {
		from, err := core.ParseSquare(strings.ToLower(args[0]))
		if err != nil {
			h.view.ShowError(err)
			return
		}
		dests, err := g.LegalDestinationsFrom(ctx, from)
		if err != nil {
			h.view.ShowError(err)
			return
		}
		for _, to := range dests {
			moves = append(moves, core.Move{From: from, To: to})
		}
	} else {
		all, err := g.AllLegalMoves(ctx)
		if err != nil {
			h.view.ShowError(err)
			return
		}
		moves = all
	}

	if len(moves) == 0 {
		h.view.ShowMessage("No legal moves.")
		return
	}
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = m.String()
	}
	h.view.ShowMessage(strings.Join(parts, " "))
}

func (h *CLIHandler) handleNatures(args []string) {
	g := h.current()
	if g == nil {
		return
	}
	if len(args) < 1 {
		h.view.ShowMessage("Usage: natures <square>")
		return
	}
	sq, err := core.ParseSquare(strings.ToLower(args[0]))
	if err != nil {
		h.view.ShowError(err)
		return
	}
	p, ok := g.PieceAt(sq)
	if !ok {
		h.view.ShowMessage(fmt.Sprintf("No piece on %s.", sq))
		return
	}

	ctx, cancel := h.context()
	defer cancel()
	natures, err := g.NarrowNatures(ctx, p.ID)
	if err != nil {
		h.view.ShowError(err)
		return
	}
	h.view.ShowMessage(fmt.Sprintf("%s %s: %s", sq, p.ID, natures))
}

// Starts a new game; player types default to human
func (h *CLIHandler) handleNewGame(args []string) {
	cfg := func(i int) core.PlayerConfig {
		if i < len(args) && (args[i] == "c" || args[i] == "computer") {
			return core.PlayerConfig{Type: core.PlayerComputer, Level: 10, SearchTime: 1000}
		}
		return core.PlayerConfig{Type: core.PlayerHuman}
	}

	id := h.svc.GenerateGameID()
	g, err := h.svc.CreateGame(id, cfg(0), cfg(1))
	if err != nil {
		h.view.ShowError(fmt.Errorf("could not start the game: %w", err))
		return
	}
	h.gameID = id

	h.view.ShowMessage(fmt.Sprintf("Game %s started.", id))
	h.view.DisplayBoard(g)
}

func (h *CLIHandler) handleResume(args []string) {
	if len(args) < 1 {
		h.view.ShowMessage("Usage: resume <gameId>")
		return
	}
	ctx, cancel := h.context()
	g, err := h.svc.RestoreGame(ctx, args[0])
	cancel()
	if err != nil {
		h.view.ShowError(fmt.Errorf("could not resume: %w", err))
		return
	}
	h.gameID = args[0]
	h.view.ShowMessage(fmt.Sprintf("Game %s resumed at ply %d.", args[0], g.Snapshot().Ply))
	h.view.DisplayBoard(g)
}
