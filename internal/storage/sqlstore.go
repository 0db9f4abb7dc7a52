package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/naka-gawa/pr-habits/internal/domain"
)

// Option customises a store when it is opened.
type Option func(*settings)

type settings struct {
	now          func() time.Time
	maxOpenConns int
}

func defaultSettings() settings {
	return settings{now: time.Now, maxOpenConns: 10}
}

// WithClock sets the clock used for last_updated. Default: time.Now.
func WithClock(now func() time.Time) Option { return func(s *settings) { s.now = now } }

// WithMaxOpenConns sets the PostgreSQL pool size. SQLite always uses one connection.
func WithMaxOpenConns(n int) Option { return func(s *settings) { s.maxOpenConns = n } }

// sqlStore holds the statements shared by both backends. Only the SQL text
// differs between them, and that comes from the dialect.
type sqlStore struct {
	conn    *sql.DB
	dialect Dialect
	now     func() time.Time
}

func newSQLStore(conn *sql.DB, d Dialect, s settings) *sqlStore {
	return &sqlStore{conn: conn, dialect: d, now: s.now}
}

// Initialize builds the table and index inside one transaction.
func (db *sqlStore) Initialize(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, db.dialect.CreateTableSQL()); err != nil {
		return fmt.Errorf("creating %s table: %w", entriesTable, err)
	}
	if _, err := tx.ExecContext(ctx, db.dialect.CreateIndexSQL(lastUpdatedIndex, entriesTable, "last_updated")); err != nil {
		return fmt.Errorf("creating index %s: %w", lastUpdatedIndex, err)
	}
	return tx.Commit()
}

// UpsertEntry writes count for date in a single statement.
func (db *sqlStore) UpsertEntry(ctx context.Context, date string, count int) error {
	if _, err := domain.ParseDate(date); err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("%w: %d for %s", domain.ErrNegativeCount, count, date)
	}

	_, err := db.conn.ExecContext(ctx, db.dialect.UpsertEntrySQL(),
		date, count, db.dialect.TimestampArg(db.now()))
	if err != nil {
		return fmt.Errorf("upserting entry %s: %w", date, err)
	}
	return nil
}

// GetEntry returns the entry for date, or ErrEntryNotFound.
func (db *sqlStore) GetEntry(ctx context.Context, date string) (*domain.HabitEntry, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}

	query := db.selectSQL() + " WHERE " + db.dialect.QuoteColumn("date") + " = " + db.dialect.DateParam(1)
	var (
		e  domain.HabitEntry
		ts timestamp
	)
	err := db.conn.QueryRowContext(ctx, query, date).Scan(&e.Date, &e.PullRequestCount, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying entry %s: %w", date, err)
	}
	e.LastUpdated = ts.Time
	return &e, nil
}

// GetEntriesByYear returns the entries of one calendar year, ascending by date.
func (db *sqlStore) GetEntriesByYear(ctx context.Context, year int) ([]domain.HabitEntry, error) {
	r := domain.YearRange(year)
	return db.GetEntriesInRange(ctx, r.StartDate, r.EndDate)
}

// GetEntriesInRange returns entries between both dates inclusive, ascending by date.
func (db *sqlStore) GetEntriesInRange(ctx context.Context, startDate, endDate string) ([]domain.HabitEntry, error) {
	if err := (domain.DateRange{StartDate: startDate, EndDate: endDate}).Validate(); err != nil {
		return nil, err
	}

	col := db.dialect.QuoteColumn("date")
	query := db.selectSQL() +
		" WHERE " + col + " >= " + db.dialect.DateParam(1) +
		" AND " + col + " <= " + db.dialect.DateParam(2) +
		" ORDER BY " + col + " ASC"
	rows, err := db.conn.QueryContext(ctx, query, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("querying entries %s..%s: %w", startDate, endDate, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetStats reads every entry and hands them to the statistics engine.
func (db *sqlStore) GetStats(ctx context.Context) (domain.HabitStats, error) {
	query := db.selectSQL() + " ORDER BY " + db.dialect.QuoteColumn("date") + " ASC"
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return domain.HabitStats{}, fmt.Errorf("querying entries for stats: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return domain.HabitStats{}, err
	}
	return domain.ComputeStats(entries), nil
}

// Close closes the database connection.
func (db *sqlStore) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying *sql.DB connection.
func (db *sqlStore) Conn() *sql.DB {
	return db.conn
}

func (db *sqlStore) selectSQL() string {
	return "SELECT " + db.dialect.DateSelectExpr("date") + ", pull_request_count, last_updated FROM " + entriesTable
}

// scanEntries converts sql.Rows into entries. The select list is always
// date, pull_request_count, last_updated.
func scanEntries(rows *sql.Rows) ([]domain.HabitEntry, error) {
	entries := []domain.HabitEntry{}
	for rows.Next() {
		var (
			e  domain.HabitEntry
			ts timestamp
		)
		if err := rows.Scan(&e.Date, &e.PullRequestCount, &ts); err != nil {
			return nil, fmt.Errorf("scanning entry row: %w", err)
		}
		e.LastUpdated = ts.Time
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// timestamp scans last_updated from either backend. SQLite hands back
// RFC 3339 text, PostgreSQL a time.Time.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v.UTC()
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported last_updated type %T", src)
	}
	return nil
}

func (t *timestamp) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parsing last_updated %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}
