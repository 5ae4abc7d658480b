package calendar

import (
	"slices"
	"strings"
	"time"
)

// A WeekDay is a calendar weekday. Order runs from 0 (Monday) to 6 (Sunday).
type WeekDay struct {
	Name  string
	Order int
}

// Abbreviation returns the first two characters of the weekday's name.
func (w WeekDay) Abbreviation() string {
	if len(w.Name) < 2 {
		return w.Name
	}
	return w.Name[:2]
}

func (w WeekDay) String() string {
	return w.Name
}

var weekDays = [7]WeekDay{
	{Name: "Monday", Order: 0},
	{Name: "Tuesday", Order: 1},
	{Name: "Wednesday", Order: 2},
	{Name: "Thursday", Order: 3},
	{Name: "Friday", Order: 4},
	{Name: "Saturday", Order: 5},
	{Name: "Sunday", Order: 6},
}

// WeekDays returns all seven weekdays, Monday first. The returned slice is a copy.
func WeekDays() []WeekDay {
	return slices.Clone(weekDays[:])
}

// WeekDayOf returns the weekday of t, in t's location.
func WeekDayOf(t time.Time) WeekDay {
	return weekDays[Order(t.Weekday())]
}

// Order converts a time.Weekday (Sunday=0) into a Monday=0 order.
func Order(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// LookupWeekDay finds a weekday by its full name or its abbreviation. Matching is case-insensitive.
func LookupWeekDay(name string) (WeekDay, bool) {
	for _, d := range weekDays {
		if strings.EqualFold(d.Name, name) || strings.EqualFold(d.Abbreviation(), name) {
			return d, true
		}
	}
	return WeekDay{}, false
}
