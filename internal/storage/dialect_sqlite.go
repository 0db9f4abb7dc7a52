package storage

import (
	"fmt"
	"time"
)

// SQLiteDialect implements the Dialect interface for SQLite databases.
// Dates and timestamps are stored as TEXT; both sort correctly as strings.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string                  { return "sqlite" }
func (d *SQLiteDialect) DateParam(index int) string          { return "?" }
func (d *SQLiteDialect) QuoteColumn(name string) string      { return name }
func (d *SQLiteDialect) DateSelectExpr(column string) string { return column }

func (d *SQLiteDialect) TimestampArg(t time.Time) interface{} {
	return t.UTC().Format(time.RFC3339Nano)
}

func (d *SQLiteDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS habit_entries (
		date TEXT PRIMARY KEY,
		pull_request_count INTEGER NOT NULL DEFAULT 0 CHECK (pull_request_count >= 0),
		last_updated TEXT NOT NULL
	)`
}

func (d *SQLiteDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, column)
}

func (d *SQLiteDialect) UpsertEntrySQL() string {
	return `INSERT INTO habit_entries (date, pull_request_count, last_updated)
		VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			pull_request_count = excluded.pull_request_count,
			last_updated = excluded.last_updated`
}
