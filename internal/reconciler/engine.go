package reconciler

import (
	"cmp"
	"context"
	"fmt"
	"github.com/clambin/thermostats/internal/rules"
	"math"
	"slices"
	"time"
)

// LogLookup returns the most recent Log written for a rule on a thermostat.
type LogLookup interface {
	LastLogForRule(ctx context.Context, thermostatID, ruleID int64) (rules.Log, bool, error)
}

// Configuration holds the temperature conventions of the gateway.
type Configuration struct {
	// OffTemperature is the value a gateway reports for a thermostat that is switched off.
	OffTemperature float64
	// FallbackTemperature is applied when no rule matches.
	FallbackTemperature float64
}

// Engine decides what needs to happen to a thermostat, given its rules and its current state.
type Engine struct {
	Configuration
}

func New(cfg Configuration) Engine {
	return Engine{Configuration: cfg}
}

const epsilon = 0.001

// TemperatureEqual compares two temperatures. The "off" value reported by the gateway equals 0, the value used to switch a thermostat off.
func (e Engine) TemperatureEqual(a, b float64) bool {
	return math.Abs(e.normalize(a)-e.normalize(b)) < epsilon
}

func (e Engine) normalize(t float64) float64 {
	if t == e.OffTemperature {
		return 0
	}
	return t
}

// Select returns the rule that governs the thermostat at the given time. Rules are ordered by start and end time
// and the last matching rule wins.
func (e Engine) Select(r []rules.Rule, now time.Time) (rules.Rule, bool) {
	var winner rules.Rule
	var found bool
	for _, rule := range Sorted(r) {
		if rule.IsValid(now) {
			winner, found = rule, true
		}
	}
	return winner, found
}

// Reconcile determines the Decision for a thermostat whose current target temperature is current.
func (e Engine) Reconcile(ctx context.Context, thermostat rules.Thermostat, current float64, now time.Time, logs LogLookup) (Decision, error) {
	rule, ok := e.Select(thermostat.Rules, now)
	if !ok {
		if e.TemperatureEqual(current, e.FallbackTemperature) {
			return Decision{Kind: NoOp, Actual: current}, nil
		}
		return Decision{Kind: ApplyFallback, Temperature: e.FallbackTemperature, Actual: current}, nil
	}

	if e.TemperatureEqual(current, rule.Temperature) {
		return Decision{Kind: NoOp, Rule: &rule, Temperature: rule.Temperature, Actual: current}, nil
	}

	last, found, err := logs.LastLogForRule(ctx, thermostat.ID, rule.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("last log for rule %d: %w", rule.ID, err)
	}
	var lastLog *rules.Log
	if found {
		lastLog = &last
	}

	kind := ApplyRule
	if rules.AlreadyTriggeredRecently(rule, now, lastLog) {
		kind = SuppressAndNotify
	}
	return Decision{Kind: kind, Rule: &rule, Temperature: rule.Temperature, Actual: current}, nil
}

// Sorted returns the rules ordered by start time, then end time. A rule without an end time sorts before any rule with
// the same start time.
func Sorted(r []rules.Rule) []rules.Rule {
	sorted := slices.Clone(r)
	slices.SortStableFunc(sorted, func(a, b rules.Rule) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		switch {
		case a.End == nil && b.End == nil:
			return 0
		case a.End == nil:
			return -1
		case b.End == nil:
			return 1
		default:
			return cmp.Compare(*a.End, *b.End)
		}
	})
	return sorted
}
