package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"schroedinger/internal/client/api"
	"schroedinger/internal/client/display"
	"schroedinger/internal/core"
	"schroedinger/internal/lightboard"
)

// ErrExit is returned by the exit command.
var ErrExit = errors.New("exit")

// Session is the client state shared by every command.
type Session struct {
	Client      *api.Client
	Out         io.Writer
	CurrentGame string
	LastPly     int
	GameState   *core.GameResponse
	Verbose     bool

	// Public view rebuilt from the move list alone
	view     *lightboard.LightBoard
	viewGame string
	viewPly  int
}

func (s *Session) track(g *core.GameResponse) {
	s.GameState = g
	s.LastPly = g.Ply
	if g.GameID != "" {
		s.CurrentGame = g.GameID
	}
	s.follow(g)
}

// follow applies the moves the local view has not seen yet and reports
// where it disagrees with the server's pieces.
func (s *Session) follow(g *core.GameResponse) {
	if s.view == nil || g.GameID != s.viewGame || len(g.Moves) < s.viewPly {
		lb := lightboard.New()
		s.view, s.viewGame, s.viewPly = &lb, g.GameID, 0
	}
	for _, mi := range g.Moves[s.viewPly:] {
		m, err := core.ParseMove(mi.From + mi.To)
		if err == nil {
			err = s.view.Apply(m)
		}
		if err != nil {
			s.printf("%sLocal view lost at ply %d: %v%s\n", display.Yellow, s.viewPly+1, err, display.Reset)
			s.view = nil
			return
		}
		s.viewPly++
	}
	for _, c := range s.view.Conflicts(g.Pieces) {
		s.printf("%sView mismatch: %s%s\n", display.Red, c, display.Reset)
	}
}

func (s *Session) forget() {
	s.CurrentGame = ""
	s.GameState = nil
	s.LastPly = 0
	s.view = nil
}

func (s *Session) game() (string, error) {
	if s.CurrentGame == "" {
		return "", fmt.Errorf("no current game, use 'new' or 'join <gameId>'")
	}
	return s.CurrentGame, nil
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.Out, format, args...)
}

// Command defines a client command with its handler
type Command struct {
	Name        string
	ShortName   string
	Description string
	Usage       string
	Handler     func(context.Context, *Session, []string) error
}

// Registry manages command registration and execution
type Registry struct {
	session  *Session
	commands map[string]*Command
	order    []string
}

func NewRegistry(session *Session) *Registry {
	r := &Registry{
		session:  session,
		commands: make(map[string]*Command),
	}

	r.registerGameCommands()
	r.registerDebugCommands()

	r.Register(&Command{
		Name:        "help",
		ShortName:   "?",
		Description: "Show available commands",
		Usage:       "help [command]",
		Handler:     r.helpHandler,
	})
	r.Register(&Command{
		Name:        "exit",
		ShortName:   "x",
		Description: "Exit the client",
		Usage:       "exit",
		Handler: func(context.Context, *Session, []string) error {
			return ErrExit
		},
	})

	return r
}

func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	r.order = append(r.order, cmd.Name)
	if cmd.ShortName != "" {
		r.commands[cmd.ShortName] = cmd
	}
}

// Execute runs one input line. Only ErrExit is returned; other failures are
// printed.
func (r *Registry) Execute(ctx context.Context, input string) error {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmdName := parts[0]
	args := parts[1:]

	cmd, exists := r.commands[cmdName]
	if !exists {
		r.session.printf("%sUnknown command: %s%s\n", display.Red, cmdName, display.Reset)
		r.session.printf("Type 'help' for available commands\n")
		return nil
	}

	r.session.Client.SetVerbose(r.session.Verbose)

	err := cmd.Handler(ctx, r.session, args)
	if errors.Is(err, ErrExit) {
		return err
	}
	if err != nil {
		r.session.printf("%sError: %s%s\n", display.Red, err.Error(), display.Reset)
	}
	return nil
}

func (r *Registry) helpHandler(_ context.Context, s *Session, args []string) error {
	if len(args) > 0 {
		cmd, exists := r.commands[args[0]]
		if !exists {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		s.printf("\n%s%s%s - %s\n", display.Cyan, cmd.Name, display.Reset, cmd.Description)
		if cmd.ShortName != "" {
			s.printf("Short form: %s%s%s\n", display.Cyan, cmd.ShortName, display.Reset)
		}
		s.printf("Usage: %s\n", cmd.Usage)
		return nil
	}

	s.printf("\n%sAvailable Commands:%s\n\n", display.Cyan, display.Reset)
	for _, name := range r.order {
		cmd := r.commands[name]
		shortPart := "    "
		if cmd.ShortName != "" {
			shortPart = fmt.Sprintf("[%s%s%s] ", display.Cyan, cmd.ShortName, display.Reset)
		}
		s.printf("  %s%-10s %s\n", shortPart, cmd.Name, cmd.Description)
	}

	s.printf("\nType 'help <command>' for detailed usage\n")
	s.printf("Add '-v' to any command for verbose output\n")
	return nil
}
