package cli

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schroedinger/internal/cli"
	"schroedinger/internal/consistency"
	"schroedinger/internal/engine"
	"schroedinger/internal/service"
	"schroedinger/internal/solver"
)

// script feeds fixed lines to the REPL and then reports EOF.
type script struct {
	lines   []string
	prompts []string
}

func (s *script) Readline() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *script) SetPrompt(p string) { s.prompts = append(s.prompts, p) }

func run(t *testing.T, lines ...string) (string, *script) {
	t.Helper()
	checker := consistency.NewChecker(solver.NewBacktracking(0), zerolog.Nop())
	svc := service.New(checker, nil, zerolog.Nop())
	t.Cleanup(func() { svc.Close() })

	in := &script{lines: lines}
	var out bytes.Buffer
	h := New(svc, cli.New(in, &out), engine.NewGuessMover(3), 30*time.Second)
	h.Run()
	return out.String(), in
}

func TestHumanSession(t *testing.T) {
	out, in := run(t, "new", "legal g1", "b1c3", "natures c3", "history", "board natures", "end", "quit")

	assert.Contains(t, out, "started.")
	assert.Contains(t, out, "g1f3 g1h3")
	assert.Contains(t, out, "c3 ")
	assert.Contains(t, out, ": {N}")
	assert.Contains(t, out, "1. b1c3 | ...")
	assert.Contains(t, out, "Game in progress.")
	require.NotEmpty(t, in.prompts)
	assert.Contains(t, in.prompts, "[b]> ")
}

func TestIllegalMoveIsReported(t *testing.T) {
	out, _ := run(t, "new", "a1a3", "e7e5", "zz")
	assert.Contains(t, out, "invalid move: trying to move through other pieces")
	assert.Contains(t, out, "invalid move: trying to move out of turn")
	assert.Contains(t, out, "invalid move")
}

func TestComputerMovesOnEnter(t *testing.T) {
	out, in := run(t, "new c h", "", "history")
	assert.Contains(t, in.prompts[1], "ENTER to execute computer move")
	assert.Contains(t, out, "Computer (White): ")
	assert.Contains(t, out, "1. ")
}

func TestNoActiveGame(t *testing.T) {
	out, _ := run(t, "e2e4", "color neon", "color gray", "verbose", "help")
	assert.Contains(t, out, "No active game")
	assert.Contains(t, out, "invalid theme: neon")
	assert.Contains(t, out, "Color theme set to: gray")
	assert.Contains(t, out, "Verbose mode: true")
	assert.Contains(t, out, "Commands:")
}
