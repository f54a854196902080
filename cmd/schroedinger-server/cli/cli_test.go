package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schroedinger/internal/storage"
)

func TestDatabaseCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.db")
	var out bytes.Buffer

	require.NoError(t, Run([]string{"init", "-path", path}, &out))
	assert.Contains(t, out.String(), "Database initialized")

	store, err := storage.NewStore(path, false, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.RecordNewGame(storage.GameRecord{
		GameID: "0f5c2a9e-1111-4222-8333-944445555666", WhitePlayerID: "white-player", WhiteType: 1,
		BlackPlayerID: "black-player", BlackType: 2, StartTimeUTC: time.Now().UTC(),
	}))
	require.NoError(t, store.RecordMove(storage.MoveRecord{
		GameID: "0f5c2a9e-1111-4222-8333-944445555666", Ply: 1, FromSquare: "g1", ToSquare: "f3",
		PlayerColor: "w", Eliminated: "{K,Q,R,B}", MoveTimeUTC: time.Now().UTC(),
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, store.Sync(ctx))
	require.NoError(t, store.Close())

	out.Reset()
	require.NoError(t, Run([]string{"query", "-path", path, "-gameId", "*"}, &out))
	assert.Contains(t, out.String(), "white-pl (T1)")
	assert.Contains(t, out.String(), "in_progress")
	assert.Contains(t, out.String(), "Found 1 game(s)")

	out.Reset()
	require.NoError(t, Run([]string{"moves", "-path", path, "-gameId", "0f5c2a9e-1111-4222-8333-944445555666"}, &out))
	assert.Contains(t, out.String(), "g1f3")
	assert.Contains(t, out.String(), "{K,Q,R,B}")

	out.Reset()
	require.NoError(t, Run([]string{"delete", "-path", path}, &out))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, Run(nil, &out))
	assert.Error(t, Run([]string{"vacuum"}, &out))
	assert.Error(t, Run([]string{"init"}, &out))
	assert.Error(t, Run([]string{"moves", "-path", filepath.Join(t.TempDir(), "x.db")}, &out))
}
