package eval

import (
	"context"
	"fmt"
	"github.com/clambin/go-common/charmer"
	"github.com/clambin/thermostats/internal/app"
	"github.com/clambin/thermostats/internal/controller"
	"github.com/clambin/thermostats/internal/reconciler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"text/tabwriter"
	"time"
)

var (
	Cmd = cobra.Command{
		Use:   "eval",
		Short: "Show what a pass would do, without changing any thermostat",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), viper.GetViper(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	args = charmer.Arguments{
		"at": {Default: "", Help: "Evaluate at this time (\"2006-01-02 15:04\", default: now)"},
	}
)

const atLayout = "2006-01-02 15:04"

func init() {
	_ = charmer.SetPersistentFlags(&Cmd, viper.GetViper(), args)
}

func run(ctx context.Context, v *viper.Viper, w io.Writer, logOutput io.Writer) error {
	a, err := app.New(ctx, v, app.Logger(logOutput, v.GetBool("debug")))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	at := time.Now().In(a.Configuration.Location)
	if value := v.GetString("at"); value != "" {
		if at, err = time.ParseInLocation(atLayout, value, a.Configuration.Location); err != nil {
			return fmt.Errorf("invalid time %q: %w", value, err)
		}
	}

	evaluations, err := a.Controller.Evaluate(ctx, at)
	if err != nil {
		return err
	}
	report(w, a.Controller.Engine, at, evaluations)
	return nil
}

func report(w io.Writer, engine reconciler.Engine, at time.Time, evaluations []controller.Evaluation) {
	_, _ = fmt.Fprintf(w, "%s\n\n", at.Format("Monday 15:04"))

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "THERMOSTAT\tCURRENT\tRULE\tMATCH\tDECISION")
	for _, e := range evaluations {
		thermostat := e.Thermostat.String()
		current := engine.DescribeTemperature(e.Device.Temperature)
		if e.Err != nil {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t\t\terror: %v\n", thermostat, current, e.Err)
			continue
		}
		var winner int64
		if e.Decision.Rule != nil {
			winner = e.Decision.Rule.ID
		}
		for _, rule := range reconciler.Sorted(e.Thermostat.Rules) {
			match := "skip"
			if rule.IsValid(at) {
				match = "match"
			}
			decision := ""
			if rule.ID == winner {
				decision = decisionString(engine, e.Decision)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", thermostat, current, rule.String(), match, decision)
		}
		if e.Decision.Rule == nil {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t\t%s\n", thermostat, current, "no rule matched", decisionString(engine, e.Decision))
		}
	}
	_ = tw.Flush()
}

func decisionString(engine reconciler.Engine, d reconciler.Decision) string {
	switch d.Kind {
	case reconciler.NoOp:
		return d.Kind.String()
	default:
		return d.Kind.String() + ": " + engine.DescribeTemperature(d.Temperature)
	}
}
