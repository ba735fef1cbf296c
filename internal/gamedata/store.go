package gamedata

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store is a read-only keyed lookup with search over per-game SQLite files.
// Each game ships as <dir>/<gameID>.db with one table per entity kind.

var ErrUnknownCategory = errors.New("unknown content category")

// category → table, fixed so request input never reaches SQL identifiers
var categoryTables = map[string]string{
	"quests":    "quests",
	"items":     "items",
	"locations": "locations",
	"npcs":      "npcs",
}

type Entry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Store struct {
	dir string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, dbs: make(map[string]*sql.DB)}
}

func (s *Store) open(gameID string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[gameID]; ok {
		return db, nil
	}

	path := filepath.Join(s.dir, gameID+".db")
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, err
	}
	s.dbs[gameID] = db
	return db, nil
}

func (s *Store) Get(gameID, category, id string) (*Entry, error) {
	table, ok := categoryTables[category]
	if !ok {
		return nil, ErrUnknownCategory
	}

	db, err := s.open(gameID)
	if err != nil {
		return nil, err
	}

	var entry Entry
	query := fmt.Sprintf("SELECT id, name, description FROM %s WHERE id = ?", table)
	err = db.QueryRow(query, id).Scan(&entry.ID, &entry.Name, &entry.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) Search(gameID, category, term string, limit int) ([]Entry, error) {
	table, ok := categoryTables[category]
	if !ok {
		return nil, ErrUnknownCategory
	}

	db, err := s.open(gameID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id, name, description FROM %s WHERE name LIKE ? ORDER BY name LIMIT ?", table)
	rows, err := db.Query(query, "%"+term+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.Name, &entry.Description); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for id, db := range s.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, id)
	}
	return firstErr
}
