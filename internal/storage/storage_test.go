package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.db")
	s, err := NewStore(path, false, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.InitDB())
	t.Cleanup(func() { s.Close() })
	return s
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Sync(ctx))
}

func TestRecordAndQuery(t *testing.T) {
	s := openStore(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordNewGame(GameRecord{
		GameID: "g1", WhitePlayerID: "pw", WhiteType: 1, BlackPlayerID: "pb", BlackType: 2,
		BlackLevel: 5, BlackSearchTime: 200, StartTimeUTC: start,
	}))
	require.NoError(t, s.RecordNewGame(GameRecord{
		GameID: "g2", WhitePlayerID: "px", WhiteType: 1, BlackPlayerID: "py", BlackType: 1,
		StartTimeUTC: start.Add(time.Hour),
	}))
	require.NoError(t, s.RecordMove(MoveRecord{
		GameID: "g1", Ply: 1, FromSquare: "b1", ToSquare: "c3", PlayerColor: "w",
		Eliminated: "{K,Q,R,B}", MoveTimeUTC: start,
	}))
	require.NoError(t, s.RecordMove(MoveRecord{
		GameID: "g1", Ply: 2, FromSquare: "e7", ToSquare: "e5", PlayerColor: "b", MoveTimeUTC: start,
	}))
	require.NoError(t, s.RecordOutcome("g1", "checkmate", "b"))
	flush(t, s)
	assert.True(t, s.IsHealthy())

	all, err := s.QueryGames("*", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "g2", all[0].GameID, "newest first")

	byPlayer, err := s.QueryGames("", "pb")
	require.NoError(t, err)
	require.Len(t, byPlayer, 1)
	g := byPlayer[0]
	assert.Equal(t, "g1", g.GameID)
	assert.Equal(t, 5, g.BlackLevel)
	assert.Equal(t, 200, g.BlackSearchTime)
	assert.Equal(t, "checkmate", g.Outcome)
	assert.Equal(t, "b", g.Loser)
	assert.True(t, start.Equal(g.StartTimeUTC))

	other, err := s.QueryGames("g2", "")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "in_progress", other[0].Outcome)

	moves, err := s.LoadMoves("g1")
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, 1, moves[0].Ply)
	assert.Equal(t, "b1", moves[0].FromSquare)
	assert.Equal(t, "c3", moves[0].ToSquare)
	assert.Equal(t, "{K,Q,R,B}", moves[0].Eliminated)
	assert.Equal(t, "b", moves[1].PlayerColor)
}

func TestFailedWriteDegrades(t *testing.T) {
	s := openStore(t)

	require.NoError(t, s.RecordNewGame(GameRecord{GameID: "g1", StartTimeUTC: time.Now().UTC()}))
	mv := MoveRecord{GameID: "g1", Ply: 1, FromSquare: "a2", ToSquare: "a3", PlayerColor: "w", MoveTimeUTC: time.Now().UTC()}
	require.NoError(t, s.RecordMove(mv))
	// Same ply twice violates the unique key.
	require.NoError(t, s.RecordMove(mv))
	flush(t, s)
	assert.False(t, s.IsHealthy())

	// Dropped silently once degraded.
	require.NoError(t, s.RecordNewGame(GameRecord{GameID: "later", StartTimeUTC: time.Now().UTC()}))
	flush(t, s)
	games, err := s.QueryGames("later", "")
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestDeleteDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.db")
	s, err := NewStore(path, true, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.InitDB())
	require.FileExists(t, path)

	require.NoError(t, s.DeleteDB())
	assert.NoFileExists(t, path)
}
