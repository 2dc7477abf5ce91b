package chat

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	defer store.Close()
	testStore(t, store)
}

func testStore(t *testing.T, store Store) {
	t.Helper()

	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	turns := []Turn{
		NewUserTurn("you", "first"),
		NewAssistantTurn("bot", "second"),
		NewSystemNotice("connected"),
		NewUserTurn("you", "third"),
	}
	for _, turn := range turns {
		require.NoError(t, store.Append(turn))
	}

	n, err = store.Len()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	t.Run("recent returns chronological order", func(t *testing.T) {
		got, err := store.Recent(0)
		require.NoError(t, err)
		require.Len(t, got, 4)
		for i, turn := range got {
			assert.Equal(t, turns[i].ID, turn.ID)
			assert.Equal(t, turns[i].Text, turn.Text)
			assert.Equal(t, turns[i].IsUserAuthored, turn.IsUserAuthored)
			assert.Equal(t, turns[i].IsSystemNotice, turn.IsSystemNotice)
		}
	})

	t.Run("recent limits to newest n", func(t *testing.T) {
		got, err := store.Recent(2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "connected", got[0].Text)
		assert.Equal(t, "third", got[1].Text)
	})
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(NewUserTurn("you", "hello")))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Recent(0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Text)
}
