package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/clambin/go-common/set"
	"github.com/clambin/thermostats/internal/rules"
	"slices"
	"time"
)

// A RuleImport is a rule and the AINs of the thermostats it applies to.
type RuleImport struct {
	Rule        rules.Rule
	Thermostats []string
}

// ImportRules replaces the rules of every thermostat named in imports, in a single transaction: either all rules are
// imported, or none are. Thermostats that don't exist yet are created, named after their AIN.
//
// A rule that is identical to a stored one (same name, times, temperature and weekdays) keeps its id, so its logs still
// apply. Rules that are no longer assigned to any thermostat are removed.
func (s *Store) ImportRules(ctx context.Context, imports []RuleImport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import rules: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	thermostats := make(map[string]int64)
	for _, imp := range imports {
		for _, ain := range imp.Thermostats {
			if _, ok := thermostats[ain]; ok {
				continue
			}
			id, err := importThermostat(ctx, tx, ain)
			if err != nil {
				return fmt.Errorf("import rules: %w", err)
			}
			if _, err = tx.ExecContext(ctx, `DELETE FROM thermostat_rules WHERE thermostat_id = ?`, id); err != nil {
				return fmt.Errorf("import rules: clear rules of %q: %w", ain, err)
			}
			thermostats[ain] = id
		}
	}

	for _, imp := range imports {
		ruleID, err := importRule(ctx, tx, imp.Rule)
		if err != nil {
			return fmt.Errorf("import rules: %q: %w", imp.Rule.Name, err)
		}
		for _, ain := range imp.Thermostats {
			if _, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO thermostat_rules (thermostat_id, rule_id) VALUES (?, ?)`,
				thermostats[ain], ruleID,
			); err != nil {
				return fmt.Errorf("import rules: assign %q to %q: %w", imp.Rule.Name, ain, err)
			}
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM rules WHERE id NOT IN (SELECT rule_id FROM thermostat_rules)`); err != nil {
		return fmt.Errorf("import rules: remove unused rules: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("import rules: %w", err)
	}
	return nil
}

func importThermostat(ctx context.Context, tx *sql.Tx, ain string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM thermostats WHERE ain = ?`, ain).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("find thermostat %q: %w", ain, err)
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO thermostats (ain, name, created_at) VALUES (?, ?, ?)`,
		ain, ain, formatTimestamp(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("create thermostat %q: %w", ain, err)
	}
	return result.LastInsertId()
}

// importRule returns the id of the stored rule identical to rule, creating it if there is none.
func importRule(ctx context.Context, tx *sql.Tx, rule rules.Rule) (int64, error) {
	orders := make([]int, len(rule.WeekDays))
	for i, day := range rule.WeekDays {
		orders[i] = day.Order
	}
	weekDays := set.New(orders...).ListOrdered()

	start := rule.Start
	candidates, err := queryIDs(ctx, tx,
		`SELECT id FROM rules WHERE name = ? AND start_time = ? AND end_time IS ? AND temperature = ? ORDER BY id`,
		rule.Name, formatTimeOfDay(&start), formatTimeOfDay(rule.End), rule.Temperature,
	)
	if err != nil {
		return 0, err
	}
	for _, id := range candidates {
		stored, err := queryIDs(ctx, tx, `SELECT day_order FROM rule_weekdays WHERE rule_id = ? ORDER BY day_order`, id)
		if err != nil {
			return 0, err
		}
		if slices.EqualFunc(stored, weekDays, func(a int64, b int) bool { return a == int64(b) }) {
			return id, nil
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO rules (name, start_time, end_time, temperature, created_at) VALUES (?, ?, ?, ?, ?)`,
		rule.Name, formatTimeOfDay(&start), formatTimeOfDay(rule.End), rule.Temperature, formatTimestamp(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("create rule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create rule: %w", err)
	}
	for _, order := range weekDays {
		if _, err = tx.ExecContext(ctx, `INSERT INTO rule_weekdays (rule_id, day_order) VALUES (?, ?)`, id, order); err != nil {
			return 0, fmt.Errorf("create rule: weekday %d: %w", order, err)
		}
	}
	return id, nil
}

func queryIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var ids []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
