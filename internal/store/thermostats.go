package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/clambin/thermostats/internal/rules"
	"time"
)

// FindThermostat returns the thermostat with the provided AIN. Its rules are not loaded.
func (s *Store) FindThermostat(ctx context.Context, ain string) (rules.Thermostat, bool, error) {
	var t rules.Thermostat
	err := s.db.QueryRowContext(ctx, `SELECT id, ain, name FROM thermostats WHERE ain = ?`, ain).Scan(&t.ID, &t.AIN, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return rules.Thermostat{}, false, nil
	}
	if err != nil {
		return rules.Thermostat{}, false, fmt.Errorf("find thermostat %q: %w", ain, err)
	}
	return t, true, nil
}

// CreateThermostat adds a new thermostat.
func (s *Store) CreateThermostat(ctx context.Context, ain, name string) (rules.Thermostat, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO thermostats (ain, name, created_at) VALUES (?, ?, ?)`,
		ain, name, formatTimestamp(time.Now()),
	)
	if err != nil {
		return rules.Thermostat{}, fmt.Errorf("create thermostat %q: %w", ain, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return rules.Thermostat{}, fmt.Errorf("create thermostat %q: %w", ain, err)
	}
	return rules.Thermostat{ID: id, AIN: ain, Name: name}, nil
}

// UpdateThermostatName renames a thermostat.
func (s *Store) UpdateThermostatName(ctx context.Context, id int64, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE thermostats SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("update thermostat %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update thermostat %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// ListThermostats returns all thermostats, ordered by id. Their rules are not loaded.
func (s *Store) ListThermostats(ctx context.Context) ([]rules.Thermostat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, ain, name FROM thermostats ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list thermostats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var thermostats []rules.Thermostat
	for rows.Next() {
		var t rules.Thermostat
		if err = rows.Scan(&t.ID, &t.AIN, &t.Name); err != nil {
			return nil, fmt.Errorf("list thermostats: %w", err)
		}
		thermostats = append(thermostats, t)
	}
	return thermostats, rows.Err()
}
