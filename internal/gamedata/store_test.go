package gamedata

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func writeGameFixture(t *testing.T, dir, gameID string) {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(dir, gameID+".db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE quests (id TEXT PRIMARY KEY, name TEXT, description TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE items (id TEXT PRIMARY KEY, name TEXT, description TEXT)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO quests VALUES
		('q1', 'Rescue the Blacksmith', 'Find the blacksmith in the mines'),
		('q2', 'The Broken Bridge', 'Repair the bridge to the east'),
		('q3', 'Blacksmith''s Revenge', 'Confront the bandits')`)
	require.NoError(t, err)
}

func TestGetAndSearch(t *testing.T) {
	dir := t.TempDir()
	writeGameFixture(t, dir, "skyrim")

	store := NewStore(dir)
	defer store.Close()

	entry, err := store.Get("skyrim", "quests", "q1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "Rescue the Blacksmith", entry.Name)

	missing, err := store.Get("skyrim", "quests", "q999")
	require.NoError(t, err)
	require.Nil(t, missing)

	results, err := store.Search("skyrim", "quests", "blacksmith", 25)
	require.NoError(t, err)
	require.Len(t, results, 2)

	limited, err := store.Search("skyrim", "quests", "", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestUnknownCategory(t *testing.T) {
	dir := t.TempDir()
	writeGameFixture(t, dir, "skyrim")

	store := NewStore(dir)
	defer store.Close()

	_, err := store.Get("skyrim", "cheats", "q1")
	require.ErrorIs(t, err, ErrUnknownCategory)

	_, err = store.Search("skyrim", "cheats", "x", 10)
	require.ErrorIs(t, err, ErrUnknownCategory)
}
