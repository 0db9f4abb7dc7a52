package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore manages habit entries in a PostgreSQL database.
// It implements the Store interface.
type PostgresStore struct {
	*sqlStore
	connStr string
}

// OpenPostgres connects to the database named by connStr using a pooled connection.
// The database itself must already exist; Initialize creates the table.
func OpenPostgres(ctx context.Context, connStr string, opts ...Option) (*PostgresStore, error) {
	s := defaultSettings()
	for _, o := range opts {
		o(&s)
	}
	d := &PostgresDialect{}

	conn, err := sql.Open(d.DriverName(), connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(s.maxOpenConns)
	conn.SetMaxIdleConns(s.maxOpenConns)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return newPostgresStore(conn, connStr, s), nil
}

func newPostgresStore(conn *sql.DB, connStr string, s settings) *PostgresStore {
	return &PostgresStore{sqlStore: newSQLStore(conn, &PostgresDialect{}, s), connStr: connStr}
}

// Path returns the connection string with any password redacted.
func (db *PostgresStore) Path() string {
	u, err := url.Parse(db.connStr)
	if err != nil || u.Scheme == "" {
		return "postgres"
	}
	return u.Redacted()
}
