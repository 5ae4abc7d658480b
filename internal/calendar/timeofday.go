package calendar

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"time"
)

// TimeOfDay is a wall-clock time, expressed as the offset since midnight.
type TimeOfDay time.Duration

const (
	StartOfDay TimeOfDay = 0
	EndOfDay             = TimeOfDay(24*time.Hour - time.Millisecond)
)

var layouts = []string{"15:04:05.000", "15:04:05", "15:04"}

// At returns the TimeOfDay for the provided hour, minute and second.
func At(hour, minute, second int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)
}

// Of returns the wall-clock time of t, in t's location.
func Of(t time.Time) TimeOfDay {
	return At(t.Hour(), t.Minute(), t.Second()) + TimeOfDay(t.Nanosecond())
}

// Parse accepts "15:04", "15:04:05" and "15:04:05.000".
func Parse(value string) (TimeOfDay, error) {
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return Of(ts), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day: %q", value)
}

// MustParse is like Parse but panics if the value is invalid.
func MustParse(value string) TimeOfDay {
	t, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return t
}

// On returns the time at which date's calendar day reaches t, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, date.Location()).Add(time.Duration(t))
}

func (t TimeOfDay) Format(layout string) string {
	return time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(t)).Format(layout)
}

// String returns "15:04", "15:04:05" if t has a seconds component, or "15:04:05.000" if t has a sub-second component.
func (t TimeOfDay) String() string {
	switch {
	case time.Duration(t)%time.Second != 0:
		return t.Format("15:04:05.000")
	case time.Duration(t)%time.Minute != 0:
		return t.Format("15:04:05")
	default:
		return t.Format("15:04")
	}
}

func (t *TimeOfDay) UnmarshalYAML(value *yaml.Node) error {
	ts, err := Parse(value.Value)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	*t = ts
	return nil
}

func (t TimeOfDay) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}
