package reconciler

import (
	"strconv"
)

// DescribeTemperature returns "off" for both representations of "off" and "<t> °C" otherwise.
func (e Engine) DescribeTemperature(t float64) string {
	if e.TemperatureEqual(t, 0) {
		return "off"
	}
	return strconv.FormatFloat(t, 'f', -1, 64) + " °C"
}

// Describe returns a human-readable description of the decision, suitable for notifications.
func (e Engine) Describe(d Decision) string {
	switch d.Kind {
	case ApplyRule:
		return d.Rule.String() + ": " + e.DescribeTemperature(d.Actual) + " → " + e.DescribeTemperature(d.Temperature)
	case ApplyFallback:
		return "fallback: " + e.DescribeTemperature(d.Actual) + " → " + e.DescribeTemperature(d.Temperature)
	case SuppressAndNotify:
		return d.Rule.String() + ": expected " + e.DescribeTemperature(d.Temperature) +
			", found " + e.DescribeTemperature(d.Actual) + ". Not overriding manual change"
	default:
		return "no action"
	}
}
