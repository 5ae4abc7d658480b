package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/clambin/thermostats/internal/rules"
	"time"
)

// CreateLog appends a thermostat log. If CreatedAt is not set, the current time is used.
func (s *Store) CreateLog(ctx context.Context, l rules.Log) (rules.Log, error) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	ruleID := sql.NullInt64{Int64: l.RuleID, Valid: l.RuleID != 0}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO thermostat_logs (thermostat_id, rule_id, start_time, end_time, temperature, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ThermostatID, ruleID, formatTimeOfDay(l.Start), formatTimeOfDay(l.End), l.Temperature, formatTimestamp(l.CreatedAt),
	)
	if err != nil {
		return rules.Log{}, fmt.Errorf("create log: %w", err)
	}
	if l.ID, err = result.LastInsertId(); err != nil {
		return rules.Log{}, fmt.Errorf("create log: %w", err)
	}
	return l, nil
}

// LastLogForRule returns the most recent log for a rule on a thermostat.
func (s *Store) LastLogForRule(ctx context.Context, thermostatID, ruleID int64) (rules.Log, bool, error) {
	var l rules.Log
	var loggedRuleID sql.NullInt64
	var start, end sql.NullString
	var createdAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, thermostat_id, rule_id, start_time, end_time, temperature, created_at
		FROM thermostat_logs
		WHERE thermostat_id = ? AND rule_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		thermostatID, ruleID,
	).Scan(&l.ID, &l.ThermostatID, &loggedRuleID, &start, &end, &l.Temperature, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rules.Log{}, false, nil
	}
	if err != nil {
		return rules.Log{}, false, fmt.Errorf("last log for rule %d: %w", ruleID, err)
	}

	l.RuleID = loggedRuleID.Int64
	if l.Start, err = parseTimeOfDay(start); err == nil {
		l.End, err = parseTimeOfDay(end)
	}
	if err == nil {
		l.CreatedAt, err = parseTimestamp(createdAt)
	}
	if err != nil {
		return rules.Log{}, false, fmt.Errorf("last log for rule %d: %w", ruleID, err)
	}
	return l, true, nil
}
