package rules

import (
	"github.com/clambin/thermostats/internal/calendar"
	"time"
)

// AlreadyTriggeredRecently reports whether last, the most recent log for the rule, was written during the rule's
// current occurrence. If so, the rule's temperature has already been applied once and any difference with the
// thermostat's state is a manual override that should be left alone.
//
// A log written for an older version of the rule never counts. For a window that wraps past midnight, the
// occurrence that is running at now started either today (now is before midnight) or yesterday (now is after
// midnight), and each half of the window is checked against its own calendar date.
func AlreadyTriggeredRecently(rule Rule, now time.Time, last *Log) bool {
	if last == nil || !last.matches(rule) {
		return false
	}

	created := last.CreatedAt.In(now.Location())
	logTime := calendar.Of(created)

	intervals := rule.Intervals()
	if len(intervals) == 1 {
		return intervals[0].Contains(logTime) && sameDay(created, now)
	}

	started := now
	if calendar.Of(now) < rule.Start {
		started = now.AddDate(0, 0, -1)
	}
	return (intervals[0].Contains(logTime) && sameDay(created, started)) ||
		(intervals[1].Contains(logTime) && sameDay(created, started.AddDate(0, 0, 1)))
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
