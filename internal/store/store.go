// Package store persists thermostats, rules and thermostat logs in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/clambin/thermostats/internal/calendar"
	_ "modernc.org/sqlite"
	"time"
)

const driverName = "sqlite"

// Store gives access to the thermostats database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path, ensures the schema exists and seeds the weekdays.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// SQLite doesn't handle concurrent writers. This also keeps an in-memory database alive between calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err = db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := New(db)
	if err = s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return s, nil
}

// New returns a Store for an open database. The caller is responsible for the schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS weekdays (
    day_order INTEGER PRIMARY KEY CHECK (day_order BETWEEN 0 AND 6),
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS rules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL DEFAULT '',
    start_time TEXT NOT NULL,
    end_time TEXT,
    temperature REAL NOT NULL,
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS rule_weekdays (
    rule_id INTEGER NOT NULL REFERENCES rules(id) ON DELETE CASCADE,
    day_order INTEGER NOT NULL REFERENCES weekdays(day_order),
    PRIMARY KEY (rule_id, day_order)
);
CREATE TABLE IF NOT EXISTS thermostats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ain TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS thermostat_rules (
    thermostat_id INTEGER NOT NULL REFERENCES thermostats(id) ON DELETE CASCADE,
    rule_id INTEGER NOT NULL REFERENCES rules(id) ON DELETE CASCADE,
    PRIMARY KEY (thermostat_id, rule_id)
);
CREATE TABLE IF NOT EXISTS thermostat_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    thermostat_id INTEGER NOT NULL REFERENCES thermostats(id) ON DELETE CASCADE,
    rule_id INTEGER REFERENCES rules(id) ON DELETE CASCADE,
    start_time TEXT,
    end_time TEXT,
    temperature REAL NOT NULL,
    created_at TEXT NOT NULL
);
DROP INDEX IF EXISTS thermostat_logs_rule;
CREATE INDEX IF NOT EXISTS thermostat_logs_thermostat_rule ON thermostat_logs (thermostat_id, rule_id, created_at);
`

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	for _, day := range calendar.WeekDays() {
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO weekdays (day_order, name) VALUES (?, ?)`, day.Order, day.Name); err != nil {
			return fmt.Errorf("seed weekday %s: %w", day.Name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}

// WeekDays returns the seeded weekdays, Monday first.
func (s *Store) WeekDays(ctx context.Context) ([]calendar.WeekDay, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, day_order FROM weekdays ORDER BY day_order`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var days []calendar.WeekDay
	for rows.Next() {
		var d calendar.WeekDay
		if err = rows.Scan(&d.Name, &d.Order); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// timestamps are stored in UTC, in a fixed-width format, so they sort correctly as text.
const timestampLayout = "2006-01-02 15:04:05.000000000"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, value, time.UTC)
}

const timeOfDayLayout = "15:04:05.000"

func formatTimeOfDay(t *calendar.TimeOfDay) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(timeOfDayLayout), Valid: true}
}

func parseTimeOfDay(value sql.NullString) (*calendar.TimeOfDay, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := calendar.Parse(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
