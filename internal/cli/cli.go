package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"schroedinger/internal/board"
	"schroedinger/internal/core"
	"schroedinger/internal/game"
)

type CommandType int

const (
	CmdNone CommandType = iota
	CmdNew
	CmdResume
	CmdMove
	CmdLegal
	CmdNatures
	CmdAuto
	CmdBoard
	CmdEnd
	CmdColor
	CmdVerbose
	CmdHistory
	CmdHelp
	CmdQuit
)

type Command struct {
	Type CommandType
	Args []string
	Raw  string
}

// LineReader is satisfied by *readline.Instance.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

type ColorTheme string

const (
	ThemeOff   ColorTheme = "off"
	ThemeBrown ColorTheme = "brown"
	ThemeGreen ColorTheme = "green"
	ThemeGray  ColorTheme = "gray"
)

type themeColors struct {
	lightBg string
	darkBg  string
	white   string
	black   string
	reset   string
}

var themes = map[ColorTheme]themeColors{
	ThemeOff: {},
	ThemeBrown: {
		lightBg: "\033[48;5;230m", // Beige
		darkBg:  "\033[48;5;94m",  // Brown
		white:   "\033[97m",
		black:   "\033[30m",
		reset:   "\033[0m",
	},
	ThemeGreen: {
		lightBg: "\033[48;5;157m", // Light green
		darkBg:  "\033[48;5;22m",  // Dark green
		white:   "\033[97m",
		black:   "\033[30m",
		reset:   "\033[0m",
	},
	ThemeGray: {
		lightBg: "\033[48;5;251m", // Light gray
		darkBg:  "\033[48;5;240m", // Dark gray
		white:   "\033[97m",
		black:   "\033[30m",
		reset:   "\033[0m",
	},
}

type CLI struct {
	input   LineReader
	output  io.Writer
	theme   ColorTheme
	verbose bool
}

func New(input LineReader, output io.Writer) *CLI {
	return &CLI{
		input:  input,
		output: output,
		theme:  ThemeOff,
	}
}

// GetCommand reads one command. EOF quits, ^C clears the line.
func (c *CLI) GetCommand(prompt string) (*Command, error) {
	c.input.SetPrompt(prompt)
	line, err := c.input.Readline()
	switch {
	case errors.Is(err, io.EOF):
		return &Command{Type: CmdQuit}, nil
	case errors.Is(err, readline.ErrInterrupt):
		return &Command{Type: CmdNone}, nil
	case err != nil:
		return nil, err
	}

	input := strings.TrimSpace(line)
	if input == "" {
		return &Command{Type: CmdNone}, nil
	}
	return ParseCommand(input), nil
}

func ParseCommand(input string) *Command {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return &Command{Type: CmdNone}
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "new":
		return &Command{Type: CmdNew, Args: args}
	case "resume":
		return &Command{Type: CmdResume, Args: args, Raw: input}
	case "move", "m":
		return &Command{Type: CmdMove, Args: args}
	case "legal", "l":
		return &Command{Type: CmdLegal, Args: args}
	case "natures", "n":
		return &Command{Type: CmdNatures, Args: args}
	case "auto", "a":
		return &Command{Type: CmdAuto}
	case "board", "b":
		return &Command{Type: CmdBoard, Args: args}
	case "end", "outcome":
		return &Command{Type: CmdEnd}
	case "color":
		return &Command{Type: CmdColor, Args: args}
	case "verbose":
		return &Command{Type: CmdVerbose}
	case "history":
		return &Command{Type: CmdHistory}
	case "help", "?":
		return &Command{Type: CmdHelp}
	case "quit", "exit":
		return &Command{Type: CmdQuit}
	default:
		// Assume it's a move
		return &Command{Type: CmdMove, Args: parts}
	}
}

func (c *CLI) SetTheme(theme ColorTheme) error {
	if _, ok := themes[theme]; !ok {
		return fmt.Errorf("invalid theme: %s (use: off, brown, green, gray)", theme)
	}
	c.theme = theme
	return nil
}

func (c *CLI) ToggleVerbose() bool {
	c.verbose = !c.verbose
	return c.verbose
}

func (c *CLI) IsVerbose() bool {
	return c.verbose
}

func (c *CLI) ShowMessage(msg string) {
	fmt.Fprintln(c.output, msg)
}

func (c *CLI) ShowError(err error) {
	c.ShowMessage(fmt.Sprintf("Error: %v", err))
}

// DisplayBoard draws the guess board with the active theme.
func (c *CLI) DisplayBoard(g *game.Game) {
	theme := themes[c.theme]
	var sb strings.Builder

	sb.WriteString("\n  a b c d e f g h\n")
	for r := 7; r >= 0; r-- {
		sb.WriteString(fmt.Sprintf("%d ", r+1))
		for f := 0; f < 8; f++ {
			sq := core.Square{File: f, Rank: r}
			var letter byte
			var white bool
			if p, ok := g.PieceAt(sq); ok {
				letter = p.Guess.Letter(p.ID.Color)
				white = p.ID.Color == core.ColorWhite
			}

			if c.theme == ThemeOff {
				if letter == 0 {
					sb.WriteString(". ")
				} else {
					sb.WriteString(fmt.Sprintf("%c ", letter))
				}
				continue
			}

			bg := theme.darkBg
			if sq.IsLight() {
				bg = theme.lightBg
			}
			if letter == 0 {
				sb.WriteString(fmt.Sprintf("%s  %s", bg, theme.reset))
			} else {
				color := theme.black
				if white {
					color = theme.white
				}
				sb.WriteString(fmt.Sprintf("%s%s%c %s", bg, color, letter, theme.reset))
			}
		}
		sb.WriteString(fmt.Sprintf(" %d\n", r+1))
	}
	sb.WriteString("  a b c d e f g h\n")

	c.ShowMessage(sb.String())
}

// DisplayASCII prints one of the plain board renderings.
func (c *CLI) DisplayASCII(g *game.Game, mode board.RenderMode) error {
	s, err := g.ASCII(mode)
	if err != nil {
		return err
	}
	c.ShowMessage("\n" + s + "\n")
	return nil
}

func (c *CLI) ShowHelp() {
	help := `Commands:
  new [h|c] [h|c]  - Start a new game, white and black player types
  resume <gameId>  - Replay a stored game
  <from><to>       - Make a move (e.g., e2e4, b1 c3)
  legal [square]   - List legal moves, optionally from one square
  natures <square> - Narrow and show the natures of a piece
  auto             - Play an automatic move for the side to move
  board [mode]     - Show the board (ids|guess|natures)
  end              - Check whether the game is over
  color <theme>    - Set board color theme (off|brown|green|gray)
  verbose          - Toggle detailed move information
  history          - Show game move history
  quit/exit        - Exit the program
  help/?           - Show this help message

During any game:
  Press ENTER      - Execute computer move (when it's computer's turn)`

	c.ShowMessage(help)
}

func (c *CLI) ShowWelcome() {
	c.ShowMessage("Welcome to Schroedinger Chess!")
	c.ShowMessage("Pieces hide their nature until their moves reveal it.")
	c.ShowMessage("Commands: new, <move>, legal, natures, auto, board, end, history, help/?, quit")
	c.ShowMessage("")
}

func (c *CLI) ShowGameHistory(g *game.Game) {
	snap := g.Snapshot()
	moves := snap.Moves
	for i := 0; i < len(moves); i += 2 {
		moveNum := i/2 + 1
		white := c.recordString(moves[i])
		if i+1 < len(moves) {
			c.ShowMessage(fmt.Sprintf("%d. %s | %s", moveNum, white, c.recordString(moves[i+1])))
		} else {
			c.ShowMessage(fmt.Sprintf("%d. %s | ...", moveNum, white))
		}
	}
	c.ShowMessage(fmt.Sprintf("Guess FEN: %s", snap.GuessFEN))
	c.ShowMessage(fmt.Sprintf("Game state: %s", g.State()))
}

func (c *CLI) recordString(r board.Record) string {
	s := r.Move.String()
	if r.Capture {
		s += "x"
	}
	if c.verbose && !r.Eliminated.IsEmpty() {
		s += " -" + r.Eliminated.String()
	}
	return s
}

func (c *CLI) ShowComputerMove(result *game.MoveResult) {
	c.ShowMessage(fmt.Sprintf("Computer (%s): %s", result.Player.Name(), c.recordString(result.Record)))
}

func (c *CLI) ShowHumanMove(result *game.MoveResult) {
	if c.verbose {
		c.ShowMessage(fmt.Sprintf("Your move: %s", c.recordString(result.Record)))
	}
}

func (c *CLI) ShowGameOver(outcome core.Outcome) {
	c.ShowMessage(fmt.Sprintf("\nGame Over: %s\n", outcome))
	c.ShowMessage("Start a new game with 'new'.")
}
