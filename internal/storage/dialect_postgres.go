package storage

import (
	"fmt"
	"time"
)

// pgQuoteCol wraps a column name in double quotes if it collides with a
// PostgreSQL type name or keyword.
func pgQuoteCol(name string) string {
	switch name {
	case "date", "user":
		return `"` + name + `"`
	default:
		return name
	}
}

// PostgresDialect implements the Dialect interface for PostgreSQL databases.
// Dates are stored as DATE and timestamps as TIMESTAMPTZ.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string             { return "pgx" }
func (d *PostgresDialect) DateParam(index int) string     { return fmt.Sprintf("$%d::date", index) }
func (d *PostgresDialect) QuoteColumn(name string) string { return pgQuoteCol(name) }

func (d *PostgresDialect) DateSelectExpr(column string) string {
	return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD')", pgQuoteCol(column))
}

func (d *PostgresDialect) TimestampArg(t time.Time) interface{} {
	return t.UTC()
}

func (d *PostgresDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS habit_entries (
		"date" DATE PRIMARY KEY,
		pull_request_count INTEGER NOT NULL DEFAULT 0 CHECK (pull_request_count >= 0),
		last_updated TIMESTAMPTZ NOT NULL
	)`
}

func (d *PostgresDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, pgQuoteCol(column))
}

func (d *PostgresDialect) UpsertEntrySQL() string {
	return `INSERT INTO habit_entries ("date", pull_request_count, last_updated)
		VALUES ($1::date, $2, $3)
		ON CONFLICT ("date") DO UPDATE SET
			pull_request_count = EXCLUDED.pull_request_count,
			last_updated = EXCLUDED.last_updated`
}
