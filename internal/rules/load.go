package rules

import (
	"errors"
	"fmt"
	"github.com/clambin/thermostats/internal/calendar"
	"gopkg.in/yaml.v3"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// A File holds the rules to be imported in the store.
type File struct {
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig is the configuration of a single rule. Thermostats lists the AINs of the thermostats it applies to.
type RuleConfig struct {
	Name        string              `yaml:"name"`
	WeekDays    []string            `yaml:"weekdays"`
	Start       *calendar.TimeOfDay `yaml:"start"`
	End         *calendar.TimeOfDay `yaml:"end"`
	Temperature Temperature         `yaml:"temperature"`
	Thermostats []string            `yaml:"thermostats"`
}

// Load reads a rules file.
func Load(in io.Reader, l *slog.Logger) (File, error) {
	var f File
	if err := yaml.NewDecoder(in).Decode(&f); err != nil {
		return File{}, err
	}
	for i, rule := range f.Rules {
		if rule.Start == nil {
			return File{}, fmt.Errorf("rule %d (%q): start time is missing", i+1, rule.Name)
		}
		l.Info("rule found",
			slog.String("name", rule.Name),
			slog.String("thermostats", strings.Join(rule.Thermostats, ",")),
		)
	}
	return f, nil
}

// Rule converts the configuration into a Rule.
func (c RuleConfig) Rule() (Rule, error) {
	if c.Start == nil {
		return Rule{}, errors.New("start time is missing")
	}
	r := Rule{
		Name:        c.Name,
		Start:       *c.Start,
		End:         c.End,
		Temperature: float64(c.Temperature),
	}
	for _, name := range c.WeekDays {
		day, ok := calendar.LookupWeekDay(name)
		if !ok {
			return Rule{}, fmt.Errorf("invalid weekday: %s", name)
		}
		r.WeekDays = append(r.WeekDays, day)
	}
	return r, nil
}

// Temperature is a target temperature in a rules file. Besides a number, it accepts "off", which maps to 0.
type Temperature float64

func (t *Temperature) UnmarshalYAML(node *yaml.Node) error {
	if strings.EqualFold(node.Value, "off") {
		*t = 0
		return nil
	}
	v, err := strconv.ParseFloat(node.Value, 64)
	if err != nil {
		return fmt.Errorf("invalid temperature: %s", node.Value)
	}
	*t = Temperature(v)
	return nil
}
