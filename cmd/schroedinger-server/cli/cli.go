package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"schroedinger/internal/storage"
)

// Run is the entry point for the database mini-app
func Run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("subcommand required: init, delete, query, moves")
	}

	switch args[0] {
	case "init":
		return runInit(args[1:], out)
	case "delete":
		return runDelete(args[1:], out)
	case "query":
		return runQuery(args[1:], out)
	case "moves":
		return runMoves(args[1:], out)
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func openStore(name string, args []string, extra func(*flag.FlagSet)) (*storage.Store, string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	if *path == "" {
		return nil, "", fmt.Errorf("database path required")
	}

	store, err := storage.NewStore(*path, false, zerolog.Nop())
	if err != nil {
		return nil, "", fmt.Errorf("failed to open store: %w", err)
	}
	return store, *path, nil
}

func runInit(args []string, out io.Writer) error {
	store, path, err := openStore("init", args, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Fprintf(out, "Database initialized at: %s\n", path)
	return nil
}

func runDelete(args []string, out io.Writer) error {
	store, path, err := openStore("delete", args, nil)
	if err != nil {
		return err
	}
	if err := store.DeleteDB(); err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}
	fmt.Fprintf(out, "Database deleted: %s\n", path)
	return nil
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runQuery(args []string, out io.Writer) error {
	var gameID, playerID string
	store, _, err := openStore("query", args, func(fs *flag.FlagSet) {
		fs.StringVar(&gameID, "gameId", "", "Game ID to filter (optional, * for all)")
		fs.StringVar(&playerID, "playerId", "", "Player ID to filter (optional, * for all)")
	})
	if err != nil {
		return err
	}
	defer store.Close()

	games, err := store.QueryGames(gameID, playerID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if len(games) == 0 {
		fmt.Fprintln(out, "No games found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Game ID\tWhite Player\tBlack Player\tStart Time\tOutcome")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, g := range games {
		outcome := g.Outcome
		if g.Loser != "" {
			outcome += " (" + g.Loser + " lost)"
		}
		fmt.Fprintf(w, "%s\t%s (T%d)\t%s (T%d)\t%s\t%s\n",
			g.GameID,
			short(g.WhitePlayerID), g.WhiteType,
			short(g.BlackPlayerID), g.BlackType,
			g.StartTimeUTC.Format("2006-01-02 15:04:05"),
			outcome,
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nFound %d game(s)\n", len(games))
	return nil
}

func runMoves(args []string, out io.Writer) error {
	var gameID string
	store, _, err := openStore("moves", args, func(fs *flag.FlagSet) {
		fs.StringVar(&gameID, "gameId", "", "Game ID (required)")
	})
	if err != nil {
		return err
	}
	defer store.Close()
	if gameID == "" {
		return fmt.Errorf("game ID required")
	}

	moves, err := store.LoadMoves(gameID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Ply\tColor\tMove\tEliminated\tGuess FEN")
	for _, m := range moves {
		fmt.Fprintf(w, "%d\t%s\t%s%s\t%s\t%s\n", m.Ply, m.PlayerColor, m.FromSquare, m.ToSquare, m.Eliminated, m.GuessFEN)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d move(s)\n", len(moves))
	return nil
}
