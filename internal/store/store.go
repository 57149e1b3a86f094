package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// journalVersion is stored in PRAGMA user_version.
//
//	1  runs, captures
//	2  runs.productions
const journalVersion = 2

// pragmas are applied on every open; see the package doc.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store is the run journal.
type Store struct {
	db *sql.DB
}

// Open opens the journal at path, creating and upgrading it as needed.
// Opening an up-to-date journal again changes nothing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	// One connection: sqlite has a single writer and the pragmas are
	// per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare journal %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the journal. A zero Store closes cleanly.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func prepare(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return upgrade(db)
}

// upgrade brings an older journal to journalVersion.
func upgrade(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read journal version: %w", err)
	}
	if version == journalVersion {
		return nil
	}

	if version == 1 {
		if err := addProductionsColumn(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", journalVersion)); err != nil {
		return fmt.Errorf("write journal version: %w", err)
	}
	return nil
}

// addProductionsColumn upgrades a v1 runs table. Fresh journals already
// have the column from schema.sql.
func addProductionsColumn(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('runs') WHERE name = 'productions'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("upgrade to v2: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE runs ADD COLUMN productions INTEGER NOT NULL DEFAULT 0`); err != nil {
		return fmt.Errorf("upgrade to v2: %w", err)
	}
	return nil
}

// verifyPragma is a test hook comparing a pragma's current value.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRowContext(context.Background(), "PRAGMA "+name).Scan(&got); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("%s = %q, want %q", name, got, want)
	}
	return nil
}
