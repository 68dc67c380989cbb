package main

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a file-backed Store for single-node deployments and tests.
type SQLiteStore struct {
	*sqlStore
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection: serializes writers and keeps ":memory:" databases alive
	d.SetMaxOpenConns(1)
	s := &SQLiteStore{
		sqlStore: &sqlStore{db: d, bind: questionMarks, isUnique: isSQLiteUnique},
		path:     path,
	}
	if err := s.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, username TEXT NOT NULL UNIQUE, email TEXT NOT NULL UNIQUE, password TEXT NOT NULL, created_at INTEGER NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS thoughts (id TEXT PRIMARY KEY, thought_text TEXT NOT NULL, username TEXT NOT NULL, created_at INTEGER NOT NULL);`,
		`CREATE INDEX IF NOT EXISTS thoughts_username_idx ON thoughts(username, created_at);`,
		`CREATE TABLE IF NOT EXISTS user_thoughts (user_id TEXT NOT NULL, thought_id TEXT NOT NULL, position INTEGER NOT NULL, PRIMARY KEY (user_id, thought_id));`,
		`CREATE TABLE IF NOT EXISTS reactions (id TEXT PRIMARY KEY, thought_id TEXT NOT NULL, reaction_body TEXT NOT NULL, username TEXT NOT NULL, created_at INTEGER NOT NULL);`,
		`CREATE INDEX IF NOT EXISTS reactions_thought_idx ON reactions(thought_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS friends (user_id TEXT NOT NULL, friend_id TEXT NOT NULL, added_at INTEGER NOT NULL, PRIMARY KEY (user_id, friend_id));`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
