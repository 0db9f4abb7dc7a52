package storage

import "time"

// Table and index names shared by every backend.
const (
	entriesTable     = "habit_entries"
	lastUpdatedIndex = "habit_entries_last_updated_idx"
)

// Dialect abstracts all database-specific SQL generation.
// Each database backend (SQLite, PostgreSQL) implements this interface.
type Dialect interface {
	// DriverName returns the database/sql driver name (e.g. "sqlite", "pgx").
	DriverName() string

	// DateParam returns the placeholder for the 1-based YYYY-MM-DD parameter
	// compared against the date column. SQLite: "?", PostgreSQL: "$1::date".
	DateParam(index int) string

	// QuoteColumn returns the column name quoted appropriately for the dialect.
	QuoteColumn(name string) string

	// DateSelectExpr returns an expression that reads the date column back as YYYY-MM-DD text.
	DateSelectExpr(column string) string

	// TimestampArg converts a write timestamp into the value bound for last_updated.
	TimestampArg(t time.Time) interface{}

	// CreateTableSQL returns the DDL for the habit_entries table.
	CreateTableSQL() string

	// CreateIndexSQL returns DDL to create an index on a table column.
	CreateIndexSQL(indexName, tableName, column string) string

	// UpsertEntrySQL returns the single-statement insert-or-overwrite keyed by date.
	// Parameters: date, pull_request_count, last_updated.
	UpsertEntrySQL() string
}
