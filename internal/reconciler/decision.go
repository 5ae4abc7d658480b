package reconciler

import (
	"github.com/clambin/thermostats/internal/rules"
	"log/slog"
)

// Kind is the outcome of reconciling a thermostat.
type Kind int

const (
	NoOp Kind = iota
	ApplyRule
	ApplyFallback
	SuppressAndNotify
)

var kindNames = map[Kind]string{
	NoOp:              "no action",
	ApplyRule:         "apply rule",
	ApplyFallback:     "apply fallback",
	SuppressAndNotify: "suppress",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

var _ slog.LogValuer = Decision{}

// A Decision is the outcome of reconciling a thermostat. Temperature is the temperature to apply
// (ApplyRule, ApplyFallback) or the rule's temperature that was not applied (SuppressAndNotify).
// Actual holds the thermostat's current target temperature. Rule is set for ApplyRule and SuppressAndNotify.
type Decision struct {
	Kind        Kind
	Rule        *rules.Rule
	Temperature float64
	Actual      float64
}

// IsChange reports whether the decision requires writing a new temperature to the thermostat.
func (d Decision) IsChange() bool {
	return d.Kind == ApplyRule || d.Kind == ApplyFallback
}

func (d Decision) LogValue() slog.Value {
	values := make([]slog.Attr, 2, 4)
	values[0] = slog.String("kind", d.Kind.String())
	values[1] = slog.Float64("actual", d.Actual)
	if d.Kind != NoOp {
		values = append(values, slog.Float64("temperature", d.Temperature))
	}
	if d.Rule != nil {
		values = append(values, slog.Any("rule", *d.Rule))
	}
	return slog.GroupValue(values...)
}
