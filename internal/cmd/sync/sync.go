package sync

import (
	"context"
	"github.com/clambin/thermostats/internal/app"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
)

var Cmd = cobra.Command{
	Use:   "sync",
	Short: "Run one pass: set the target temperature of each thermostat according to its rules",
	Long: `Run one pass: set the target temperature of each thermostat according to its rules.

Schedule sync to run every few minutes (e.g. from cron). Make sure two passes never run at the same time.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), viper.GetViper(), cmd.ErrOrStderr())
	},
}

func run(ctx context.Context, v *viper.Viper, w io.Writer) error {
	logger := app.Logger(w, v.GetBool("debug"))
	a, err := app.New(ctx, v, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	err = a.Controller.Run(ctx)

	if url := a.Configuration.PushGateway; url != "" {
		if pushErr := push.New(url, "thermostats").Gatherer(a.Registry).Push(); pushErr != nil {
			logger.Warn("failed to push metrics", "url", url, "err", pushErr)
		}
	}
	return err
}
