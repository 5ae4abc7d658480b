package cmd

import (
	"errors"
	"github.com/clambin/go-common/charmer"
	"github.com/clambin/thermostats/internal/cmd/eval"
	"github.com/clambin/thermostats/internal/cmd/rules"
	"github.com/clambin/thermostats/internal/cmd/sync"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log/slog"
	"os"
	"strings"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:          "thermostats",
		Short:        "Sets the target temperature of thermostats according to weekly rules",
		SilenceUsage: true,
	}
)

var arguments = charmer.Arguments{
	"debug":               {Default: false, Help: "Log debug messages"},
	"timezone":            {Default: "UTC", Help: "Timezone in which rules are evaluated"},
	"database.path":       {Default: "thermostats.db", Help: "Path of the SQLite database"},
	"gateway.kind":        {Default: "fritzbox", Help: "Thermostat gateway (fritzbox, tado)"},
	"fritzbox.host":       {Default: "http://fritz.box", Help: "FRITZ!Box URL"},
	"fritzbox.username":   {Default: "", Help: "FRITZ!Box username"},
	"fritzbox.password":   {Default: "", Help: "FRITZ!Box password"},
	"tado.username":       {Default: "", Help: "Tadoº username"},
	"tado.password":       {Default: "", Help: "Tadoº password"},
	"tado.clientSecret":   {Default: "", Help: "Tadoº client secret"},
	"slack.token":         {Default: "", Help: "Slack token"},
	"slack.channel":       {Default: "", Help: "Slack channel (default: all channels the bot has joined)"},
	"pushover.userKey":    {Default: "", Help: "Pushover user key"},
	"pushover.apiToken":   {Default: "", Help: "Pushover application token"},
	"metrics.pushgateway": {Default: "", Help: "Prometheus Pushgateway URL (blank: don't push metrics)"},
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	if err := charmer.SetPersistentFlags(&RootCmd, viper.GetViper(), arguments); err != nil {
		panic("failed to set flags: " + err.Error())
	}
	viper.SetDefault("temperature.off", 126.5)
	viper.SetDefault("temperature.fallback", 0.0)

	RootCmd.AddCommand(&sync.Cmd, &eval.Cmd, &rules.Cmd)
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/thermostats/")
		viper.AddConfigPath("$HOME/.thermostats")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("THERMOSTATS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// without a config file, all configuration comes from flags & environment
		var notFound viper.ConfigFileNotFoundError
		if configFilename != "" || !errors.As(err, &notFound) {
			slog.Error("failed to read config file", "err", err)
			os.Exit(1)
		}
	}
}
