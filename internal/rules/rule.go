package rules

import (
	"github.com/clambin/go-common/set"
	"github.com/clambin/thermostats/internal/calendar"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

var _ slog.LogValuer = Rule{}

// A Rule requests a target Temperature on the given WeekDays, from Start until End. A nil End means
// the rule runs until midnight. If End is before Start, the rule's window wraps past midnight.
type Rule struct {
	ID          int64
	Name        string
	WeekDays    []calendar.WeekDay
	Start       calendar.TimeOfDay
	End         *calendar.TimeOfDay
	Temperature float64
}

// Intervals returns the time intervals during which the rule applies.
func (r Rule) Intervals() []calendar.Interval {
	return calendar.NormalizeWindow(r.Start, r.End)
}

// IsValid reports whether the rule applies at the given time. now's location determines the weekday & time of day.
func (r Rule) IsValid(now time.Time) bool {
	if !r.appliesOn(calendar.WeekDayOf(now)) {
		return false
	}
	t := calendar.Of(now)
	for _, interval := range r.Intervals() {
		if interval.Contains(t) {
			return true
		}
	}
	return false
}

func (r Rule) appliesOn(day calendar.WeekDay) bool {
	orders := set.New[int]()
	for _, d := range r.WeekDays {
		orders.Add(d.Order)
	}
	return orders.Contains(day.Order)
}

// WeekDaysShortDescription lists the abbreviations of the rule's weekdays, e.g. "Mo, Tu".
func (r Rule) WeekDaysShortDescription() string {
	abbreviations := make([]string, len(r.WeekDays))
	for i, d := range r.WeekDays {
		abbreviations[i] = d.Abbreviation()
	}
	return strings.Join(abbreviations, ", ")
}

func (r Rule) String() string {
	timing := r.Start.Format("15:04")
	if r.End != nil {
		timing += " - " + r.End.Format("15:04")
	}
	return r.Name + ", (" + r.WeekDaysShortDescription() + "), " + timing + ": " + strconv.Itoa(int(r.Temperature)) + " °C"
}

func (r Rule) LogValue() slog.Value {
	values := make([]slog.Attr, 4, 5)
	values[0] = slog.Int64("id", r.ID)
	values[1] = slog.String("name", r.Name)
	values[2] = slog.String("weekdays", r.WeekDaysShortDescription())
	values[3] = slog.String("start", r.Start.String())
	if r.End != nil {
		values = append(values, slog.String("end", r.End.String()))
	}
	return slog.GroupValue(append(values, slog.Float64("temperature", r.Temperature))...)
}
