package eeprom

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

const schemaBlocks = `
CREATE TABLE IF NOT EXISTS eeprom_blocks (
    addr INTEGER PRIMARY KEY,
    data BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const (
	selectBlockSQL = `SELECT data FROM eeprom_blocks WHERE addr=?`

	upsertBlockSQL = `
		INSERT INTO eeprom_blocks (addr, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(addr) DO UPDATE SET
			data=excluded.data,
			updated_at=excluded.updated_at
	`
)

const defaultQueryTimeout = 5 * time.Second

// InitDB opens or creates a SQLite database and ensures the block table
// exists.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = FULL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaBlocks); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// SQLite stores each block as a row keyed by its offset. Blocks must be read
// back with the size they were written with; an unwritten block reads as
// Blank.
type SQLite struct {
	db      *sql.DB
	now     func() time.Time
	timeout time.Duration
}

// NewSQLite wraps an open database. The schema must already exist, see InitDB.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now, timeout: defaultQueryTimeout}
}

// OpenSQLite opens the database at path and wraps it.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := InitDB(path)
	if err != nil {
		return nil, err
	}
	return NewSQLite(db), nil
}

// ReadBlock returns the block stored at offset.
func (s *SQLite) ReadBlock(offset, size int) ([]byte, error) {
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrOutOfRange, offset, offset+size)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var data []byte
	err := s.db.QueryRowContext(ctx, selectBlockSQL, offset).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return blank(size), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select block %d: %w", offset, err)
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: block %d holds %d bytes, want %d", ErrBlockSize, offset, len(data), size)
	}
	return data, nil
}

// WriteBlock replaces the block at offset.
func (s *SQLite) WriteBlock(offset int, data []byte) error {
	if offset < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrOutOfRange, offset)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, upsertBlockSQL, offset, data, s.now().UTC()); err != nil {
		return fmt.Errorf("upsert block %d: %w", offset, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
