package rules_test

import (
	"github.com/clambin/thermostats/internal/calendar"
	"github.com/clambin/thermostats/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestLog_IsFallback(t *testing.T) {
	const fallback = 0

	r := rules.Rule{ID: 1, Start: calendar.At(6, 0, 0), End: ptr(calendar.At(8, 0, 0)), Temperature: 21}
	assert.False(t, rules.NewRuleLog(1, r, at(7, 0)).IsFallback(fallback))
	assert.False(t, rules.NewFallbackLog(1, 22, at(7, 0)).IsFallback(fallback))
	assert.True(t, rules.NewFallbackLog(1, fallback, at(7, 0)).IsFallback(fallback))
}

func TestNewRuleLog(t *testing.T) {
	end := calendar.At(8, 0, 0)
	r := rules.Rule{ID: 4, Start: calendar.At(6, 0, 0), End: &end, Temperature: 21}
	l := rules.NewRuleLog(2, r, at(7, 0))

	assert.Equal(t, int64(2), l.ThermostatID)
	assert.Equal(t, int64(4), l.RuleID)
	assert.Equal(t, 21.0, l.Temperature)
	require.NotNil(t, l.Start)
	assert.Equal(t, r.Start, *l.Start)
	require.NotNil(t, l.End)
	assert.Equal(t, end, *l.End)

	// the log keeps its own copy
	end = calendar.At(9, 0, 0)
	assert.Equal(t, calendar.At(8, 0, 0), *l.End)
}
