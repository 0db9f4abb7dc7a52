package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// sqlitePragmas are applied on open. The busy timeout keeps a second process
// from failing immediately while this one holds the write lock.
var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

// SQLiteStore manages habit entries in an embedded SQLite file.
// It implements the Store interface.
type SQLiteStore struct {
	*sqlStore
	path string
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
// The schema is not created here; call Initialize.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := defaultSettings()
	for _, o := range opts {
		o(&s)
	}
	d := &SQLiteDialect{}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	conn, err := sql.Open(d.DriverName(), path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serialises every write through the same file handle.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	for _, p := range sqlitePragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	return &SQLiteStore{sqlStore: newSQLStore(conn, d, s), path: path}, nil
}

// Path returns the file path of the database.
func (db *SQLiteStore) Path() string {
	return db.path
}
