package processor

import (
	"schroedinger/internal/core"
)

// CommandType defines the type of command being executed
type CommandType int

const (
	CmdCreateGame CommandType = iota
	CmdGetGame
	CmdDeleteGame
	CmdMakeMove
	CmdAutoMove
	CmdLegalMoves
	CmdNatures
	CmdOutcome
	CmdGetBoard
)

// Command is a unified structure for all processor operations
type Command struct {
	Type   CommandType
	GameID string // For game-specific commands
	Args   any    // Command-specific arguments
}

// ProcessorResponse wraps the response with metadata
type ProcessorResponse struct {
	Success bool                `json:"success"`
	Pending bool                `json:"pending,omitempty"` // A computer move was queued
	Data    any                 `json:"data,omitempty"`
	Error   *core.ErrorResponse `json:"error,omitempty"`
}

func NewCreateGameCommand(req core.CreateGameRequest) Command {
	return Command{Type: CmdCreateGame, Args: req}
}

func NewGetGameCommand(gameID string) Command {
	return Command{Type: CmdGetGame, GameID: gameID}
}

func NewDeleteGameCommand(gameID string) Command {
	return Command{Type: CmdDeleteGame, GameID: gameID}
}

func NewMakeMoveCommand(gameID string, req core.MoveRequest) Command {
	return Command{Type: CmdMakeMove, GameID: gameID, Args: req}
}

func NewAutoMoveCommand(gameID string) Command {
	return Command{Type: CmdAutoMove, GameID: gameID}
}

// NewLegalMovesCommand lists legal moves, from one square when from is set.
func NewLegalMovesCommand(gameID, from string) Command {
	return Command{Type: CmdLegalMoves, GameID: gameID, Args: from}
}

func NewNaturesCommand(gameID, square string) Command {
	return Command{Type: CmdNatures, GameID: gameID, Args: square}
}

func NewOutcomeCommand(gameID string) Command {
	return Command{Type: CmdOutcome, GameID: gameID}
}

func NewGetBoardCommand(gameID, mode string) Command {
	return Command{Type: CmdGetBoard, GameID: gameID, Args: mode}
}
