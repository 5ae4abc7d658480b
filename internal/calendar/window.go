package calendar

// An Interval is a closed range of wall-clock times: both Left and Right are included.
type Interval struct {
	Left  TimeOfDay
	Right TimeOfDay
}

func (i Interval) Contains(t TimeOfDay) bool {
	return i.Left <= t && t <= i.Right
}

// NormalizeWindow returns the intervals covered by a window starting at start and ending at end.
// A nil end means the window runs until the end of the day. If end is before start, the window
// wraps past midnight and is split in two: [start, EndOfDay] and [StartOfDay, end].
func NormalizeWindow(start TimeOfDay, end *TimeOfDay) []Interval {
	right := EndOfDay
	if end != nil {
		right = *end
	}
	if right < start {
		return []Interval{
			{Left: start, Right: EndOfDay},
			{Left: StartOfDay, Right: right},
		}
	}
	return []Interval{{Left: start, Right: right}}
}

// Wraps reports whether the window crosses midnight.
func Wraps(start TimeOfDay, end *TimeOfDay) bool {
	return end != nil && *end < start
}
