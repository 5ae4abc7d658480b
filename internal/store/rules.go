package store

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/clambin/thermostats/internal/calendar"
	"github.com/clambin/thermostats/internal/rules"
	"time"
)

// ListRules returns the rules assigned to a thermostat, ordered by start time, end time (rules without an end time first) and id.
func (s *Store) ListRules(ctx context.Context, thermostatID int64) ([]rules.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.start_time, r.end_time, r.temperature
		FROM rules r JOIN thermostat_rules tr ON tr.rule_id = r.id
		WHERE tr.thermostat_id = ?
		ORDER BY r.start_time, r.end_time, r.id`,
		thermostatID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []rules.Rule
	index := make(map[int64]int)
	for rows.Next() {
		var r rules.Rule
		var start string
		var end sql.NullString
		if err = rows.Scan(&r.ID, &r.Name, &start, &end, &r.Temperature); err != nil {
			return nil, fmt.Errorf("list rules: %w", err)
		}
		if r.Start, err = calendar.Parse(start); err != nil {
			return nil, fmt.Errorf("rule %d: start time: %w", r.ID, err)
		}
		if r.End, err = parseTimeOfDay(end); err != nil {
			return nil, fmt.Errorf("rule %d: end time: %w", r.ID, err)
		}
		index[r.ID] = len(result)
		result = append(result, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	if err = s.loadWeekDays(ctx, thermostatID, result, index); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) loadWeekDays(ctx context.Context, thermostatID int64, r []rules.Rule, index map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rw.rule_id, w.name, w.day_order
		FROM rule_weekdays rw
		JOIN weekdays w ON w.day_order = rw.day_order
		JOIN thermostat_rules tr ON tr.rule_id = rw.rule_id
		WHERE tr.thermostat_id = ?
		ORDER BY rw.rule_id, w.day_order`,
		thermostatID,
	)
	if err != nil {
		return fmt.Errorf("list rule weekdays: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ruleID int64
		var day calendar.WeekDay
		if err = rows.Scan(&ruleID, &day.Name, &day.Order); err != nil {
			return fmt.Errorf("list rule weekdays: %w", err)
		}
		if i, ok := index[ruleID]; ok {
			r[i].WeekDays = append(r[i].WeekDays, day)
		}
	}
	return rows.Err()
}

// CreateRule adds a new rule, with its weekdays. It returns the rule with its ID set.
func (s *Store) CreateRule(ctx context.Context, rule rules.Rule) (rules.Rule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rules.Rule{}, fmt.Errorf("create rule: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	start := rule.Start
	result, err := tx.ExecContext(ctx,
		`INSERT INTO rules (name, start_time, end_time, temperature, created_at) VALUES (?, ?, ?, ?, ?)`,
		rule.Name, formatTimeOfDay(&start), formatTimeOfDay(rule.End), rule.Temperature, formatTimestamp(time.Now()),
	)
	if err != nil {
		return rules.Rule{}, fmt.Errorf("create rule: %w", err)
	}
	if rule.ID, err = result.LastInsertId(); err != nil {
		return rules.Rule{}, fmt.Errorf("create rule: %w", err)
	}
	for _, day := range rule.WeekDays {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO rule_weekdays (rule_id, day_order) VALUES (?, ?)`,
			rule.ID, day.Order,
		); err != nil {
			return rules.Rule{}, fmt.Errorf("create rule: weekday %s: %w", day.Name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return rules.Rule{}, fmt.Errorf("create rule: %w", err)
	}
	return rule, nil
}

// AssignRule makes a rule apply to a thermostat. Assigning a rule twice has no effect.
func (s *Store) AssignRule(ctx context.Context, thermostatID, ruleID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO thermostat_rules (thermostat_id, rule_id) VALUES (?, ?)`,
		thermostatID, ruleID,
	); err != nil {
		return fmt.Errorf("assign rule %d to thermostat %d: %w", ruleID, thermostatID, err)
	}
	return nil
}
