package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schroedinger/internal/consistency"
	"schroedinger/internal/core"
	"schroedinger/internal/solver"
	"schroedinger/internal/storage"
)

var humans = core.PlayerConfig{Type: core.PlayerHuman}

func newChecker() *consistency.Checker {
	return consistency.NewChecker(solver.NewBacktracking(0), zerolog.Nop())
}

func mv(t *testing.T, s string) core.Move {
	t.Helper()
	m, err := core.ParseMove(s)
	require.NoError(t, err)
	return m
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.NewStore(filepath.Join(t.TempDir(), "games.db"), false, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, st.InitDB())
	return st
}

func TestCreateGetDelete(t *testing.T) {
	s := New(newChecker(), nil, zerolog.Nop())
	defer s.Close()

	id := s.GenerateGameID()
	g, err := s.CreateGame(id, humans, core.PlayerConfig{Type: core.PlayerComputer, Level: 3, SearchTime: 200})
	require.NoError(t, err)
	assert.Equal(t, core.PlayerComputer, g.Player(core.ColorBlack).Type)
	assert.Equal(t, 200, g.Player(core.ColorBlack).SearchTime)

	_, err = s.CreateGame(id, humans, humans)
	assert.ErrorIs(t, err, ErrGameExists)

	got, err := s.GetGame(id)
	require.NoError(t, err)
	assert.Same(t, g, got)
	assert.Equal(t, []string{id}, s.GameIDs())

	require.NoError(t, s.DeleteGame(id))
	_, err = s.GetGame(id)
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.ErrorIs(t, s.DeleteGame(id), ErrGameNotFound)
	assert.Equal(t, "disabled", s.GetStorageHealth())
}

func TestMakeMoveNotifiesWaiters(t *testing.T) {
	s := New(newChecker(), nil, zerolog.Nop())
	defer s.Close()
	id := s.GenerateGameID()
	_, err := s.CreateGame(id, humans, humans)
	require.NoError(t, err)

	ch, err := s.WaitForMove(context.Background(), id, 0)
	require.NoError(t, err)

	res, err := s.MakeMove(context.Background(), id, core.ColorWhite, mv(t, "b1c3"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ply)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waiter not notified")
	}

	_, err = s.MakeMove(context.Background(), id, core.ColorWhite, mv(t, "g1f3"))
	assert.ErrorIs(t, err, core.ErrWrongTurn)

	// Registering with a stale ply fires at once.
	stale, err := s.WaitForMove(context.Background(), id, 0)
	require.NoError(t, err)
	select {
	case <-stale:
	case <-time.After(time.Second):
		t.Fatal("stale waiter not notified")
	}
}

func TestDeleteWakesWaiters(t *testing.T) {
	s := New(newChecker(), nil, zerolog.Nop())
	defer s.Close()
	id := s.GenerateGameID()
	_, err := s.CreateGame(id, humans, humans)
	require.NoError(t, err)

	ch, err := s.WaitForMove(context.Background(), id, 0)
	require.NoError(t, err)
	require.NoError(t, s.DeleteGame(id))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waiter not released")
	}
}

func TestRestoreGame(t *testing.T) {
	st := openStore(t)
	s := New(newChecker(), st, zerolog.Nop())
	defer s.Close()

	id := s.GenerateGameID()
	_, err := s.CreateGame(id, humans, core.PlayerConfig{Type: core.PlayerComputer, Level: 4, SearchTime: 300})
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.MakeMove(ctx, id, core.ColorWhite, mv(t, "b1c3"))
	require.NoError(t, err)
	_, err = s.MakeMove(ctx, id, core.ColorBlack, mv(t, "g8f6"))
	require.NoError(t, err)

	syncCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, st.Sync(syncCtx))
	assert.Equal(t, "ok", s.GetStorageHealth())

	moves, err := st.LoadMoves(id)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, "{K,Q,R,B}", moves[0].Eliminated)
	assert.Equal(t, "w", moves[0].PlayerColor)
	assert.NotEmpty(t, moves[0].GuessFEN)

	restored := New(newChecker(), st, zerolog.Nop())
	g, err := restored.RestoreGame(ctx, id)
	require.NoError(t, err)
	snap := g.Snapshot()
	assert.Equal(t, 2, snap.Ply)
	assert.Equal(t, core.ColorWhite, snap.Turn)
	assert.Equal(t, core.PlayerComputer, g.Player(core.ColorBlack).Type)
	assert.Equal(t, 4, g.Player(core.ColorBlack).Level)

	knight, ok := g.PieceAt(core.Square{File: 2, Rank: 2})
	require.True(t, ok)
	assert.Equal(t, core.NewNatureSet(core.Knight), knight.Natures)

	_, err = restored.RestoreGame(ctx, id)
	assert.ErrorIs(t, err, ErrGameExists)
	_, err = restored.RestoreGame(ctx, "missing")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestRestoreEndedGame(t *testing.T) {
	st := openStore(t)
	s := New(newChecker(), st, zerolog.Nop())
	defer s.Close()

	ctx := context.Background()
	id := s.GenerateGameID()
	_, err := s.CreateGame(id, humans, humans)
	require.NoError(t, err)
	_, err = s.MakeMove(ctx, id, core.ColorWhite, mv(t, "g1f3"))
	require.NoError(t, err)
	require.NoError(t, st.RecordOutcome(id, core.Checkmate.String(), "b"))

	syncCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, st.Sync(syncCtx))

	restored := New(newChecker(), st, zerolog.Nop())
	g, err := restored.RestoreGame(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.StateEnded, g.State())
	assert.Equal(t, core.Outcome{Kind: core.Checkmate, Loser: core.ColorBlack}, g.Snapshot().Outcome)

	_, err = restored.MakeMove(ctx, id, core.ColorBlack, mv(t, "g8f6"))
	assert.ErrorIs(t, err, core.ErrGameOver)

	outcome, err := restored.EndGame(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.Checkmate, outcome.Kind)
}

func TestStoredOutcome(t *testing.T) {
	o, err := storedOutcome(storage.GameRecord{Outcome: "in_progress"})
	require.NoError(t, err)
	assert.False(t, o.Over())

	o, err = storedOutcome(storage.GameRecord{Outcome: "ambiguous"})
	require.NoError(t, err)
	assert.Equal(t, core.Ambiguous, o.Kind)

	_, err = storedOutcome(storage.GameRecord{Outcome: "checkmate"})
	assert.Error(t, err)
	_, err = storedOutcome(storage.GameRecord{Outcome: "resigned"})
	assert.Error(t, err)
}
