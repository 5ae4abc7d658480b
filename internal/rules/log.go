package rules

import (
	"github.com/clambin/thermostats/internal/calendar"
	"time"
)

// A Log records a temperature change applied to a thermostat. RuleID is zero if the change applied the fallback temperature.
// Start and End are copied from the rule at the time the change was applied, so later edits to the rule can be detected.
type Log struct {
	ID           int64
	ThermostatID int64
	RuleID       int64
	Start        *calendar.TimeOfDay
	End          *calendar.TimeOfDay
	Temperature  float64
	CreatedAt    time.Time
}

// NewRuleLog returns the Log for applying rule to a thermostat.
func NewRuleLog(thermostatID int64, rule Rule, createdAt time.Time) Log {
	start := rule.Start
	l := Log{
		ThermostatID: thermostatID,
		RuleID:       rule.ID,
		Start:        &start,
		Temperature:  rule.Temperature,
		CreatedAt:    createdAt,
	}
	if rule.End != nil {
		end := *rule.End
		l.End = &end
	}
	return l
}

// NewFallbackLog returns the Log for applying the fallback temperature to a thermostat.
func NewFallbackLog(thermostatID int64, temperature float64, createdAt time.Time) Log {
	return Log{
		ThermostatID: thermostatID,
		Temperature:  temperature,
		CreatedAt:    createdAt,
	}
}

// IsFallback reports whether the log records applying the provided fallback temperature.
func (l Log) IsFallback(fallback float64) bool {
	return l.RuleID == 0 && l.Temperature == fallback
}

// matches reports whether the log was written for the rule's current configuration.
func (l Log) matches(rule Rule) bool {
	return equalTime(l.Start, &rule.Start) && equalTime(l.End, rule.End) && l.Temperature == rule.Temperature
}

func equalTime(a, b *calendar.TimeOfDay) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
