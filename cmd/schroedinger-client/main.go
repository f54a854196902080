// Package main implements an interactive debugging client for the
// Schroedinger chess server API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"schroedinger/internal/client/api"
	"schroedinger/internal/client/commands"
	"schroedinger/internal/client/display"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	trace := flag.Bool("trace", true, "Print every API request")
	flag.Parse()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          display.Prompt("schroedinger"),
		HistoryFile:     ".schroedinger_client_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("%s%s%s\n", display.Red, err.Error(), display.Reset)
		os.Exit(1)
	}
	defer rl.Close()

	client := api.New(*baseURL)
	if *trace {
		client.Out = rl.Stdout()
	}
	s := &commands.Session{Client: client, Out: rl.Stdout()}

	fmt.Fprintf(s.Out, "%sSchroedinger Chess Debug Client%s\n", display.Cyan, display.Reset)
	fmt.Fprintf(s.Out, "%sAPI: %s%s\n", display.Cyan, client.BaseURL, display.Reset)
	fmt.Fprintf(s.Out, "Type 'help' for commands\n\n")

	registry := commands.NewRegistry(s)
	ctx := context.Background()

	for {
		rl.SetPrompt(buildPrompt(s))

		line, err := rl.Readline()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Check for verbose flag
		s.Verbose = strings.HasSuffix(line, " -v")
		line = strings.TrimSuffix(line, " -v")

		if err := registry.Execute(ctx, line); errors.Is(err, commands.ErrExit) {
			fmt.Fprintf(s.Out, "%sGoodbye!%s\n", display.Cyan, display.Reset)
			break
		}
	}
}

func buildPrompt(s *commands.Session) string {
	promptStr := "schroedinger"
	if s.CurrentGame != "" {
		id := s.CurrentGame
		if len(id) > 8 {
			id = id[:8]
		}
		promptStr += display.Yellow + " [" + display.White + id + display.Yellow + "]"
	}

	if g := s.GameState; g != nil {
		kind := "h"
		p := g.Players.White
		if g.Turn == "b" {
			p = g.Players.Black
		}
		if p != nil && p.Type == 2 {
			kind = "c"
		}
		promptStr += fmt.Sprintf(" - Ply:%d Turn:%s(%s)", g.Ply, display.ColorForTurn(g.Turn), kind)
	}

	return display.Prompt(promptStr)
}
