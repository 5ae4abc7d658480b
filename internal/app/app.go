// Package app wires the configured gateway, store and notifiers into a controller.
package app

import (
	"context"
	"fmt"
	"github.com/clambin/thermostats/internal/configuration"
	"github.com/clambin/thermostats/internal/controller"
	"github.com/clambin/thermostats/internal/gateway"
	"github.com/clambin/thermostats/internal/gateway/fritzbox"
	tadogw "github.com/clambin/thermostats/internal/gateway/tado"
	"github.com/clambin/thermostats/internal/notifier"
	"github.com/clambin/thermostats/internal/reconciler"
	"github.com/clambin/thermostats/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slack-go/slack"
	"github.com/spf13/viper"
	"io"
	"log/slog"
)

type App struct {
	Configuration configuration.Configuration
	Store         *store.Store
	Controller    *controller.Controller
	Registry      *prometheus.Registry
}

// New reads the configuration, opens the database and sets up the controller. Close the App when done.
func New(ctx context.Context, v *viper.Viper, logger *slog.Logger) (*App, error) {
	cfg, err := configuration.Load(v)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	gw, err := makeGateway(cfg, registry, logger.With("component", "gateway"))
	if err != nil {
		return nil, err
	}

	n, err := makeNotifier(cfg, logger.With("component", "notifier"))
	if err != nil {
		return nil, err
	}

	s, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	c := controller.New(
		gw,
		s,
		n,
		reconciler.New(reconciler.Configuration{
			OffTemperature:      cfg.OffTemperature,
			FallbackTemperature: cfg.FallbackTemperature,
		}),
		cfg.Location,
		logger.With("component", "controller"),
	)
	registry.MustRegister(c.Metrics)

	return &App{
		Configuration: cfg,
		Store:         s,
		Controller:    c,
		Registry:      registry,
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

func makeGateway(cfg configuration.Configuration, registry prometheus.Registerer, logger *slog.Logger) (controller.Gateway, error) {
	switch cfg.Gateway.Kind {
	case configuration.FritzBox:
		m := gateway.NewRequestMetrics("thermostats", "gateway", "/webservices", prometheus.Labels{"gateway": configuration.FritzBox})
		registry.MustRegister(m)
		return fritzbox.New(
			cfg.Gateway.FritzBox.Host,
			cfg.Gateway.FritzBox.Username,
			cfg.Gateway.FritzBox.Password,
			gateway.InstrumentedRoundTripper(nil, m),
			logger,
		), nil
	case configuration.Tado:
		m := gateway.NewRequestMetrics("thermostats", "gateway", "/api/v2/homes", prometheus.Labels{"gateway": configuration.Tado})
		registry.MustRegister(m)
		api, err := tadogw.NewInstrumentedClient(cfg.Gateway.Tado.Username, cfg.Gateway.Tado.Password, cfg.Gateway.Tado.ClientSecret, m)
		if err != nil {
			return nil, err
		}
		return tadogw.New(api, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown gateway %q", configuration.ErrConfiguration, cfg.Gateway.Kind)
	}
}

func makeNotifier(cfg configuration.Configuration, logger *slog.Logger) (notifier.Notifiers, error) {
	n := notifier.Notifiers{&notifier.SLogNotifier{Logger: logger}}
	if cfg.Slack.Enabled() {
		n = append(n, &notifier.SlackNotifier{
			Logger:      logger,
			SlackSender: slack.New(cfg.Slack.Token),
			Channel:     cfg.Slack.Channel,
		})
	}
	if cfg.Pushover.Enabled() {
		p, err := notifier.NewPushoverNotifier(cfg.Pushover.APIToken, cfg.Pushover.UserKey, logger)
		if err != nil {
			return nil, err
		}
		n = append(n, p)
	}
	return n, nil
}

// Logger returns a JSON logger writing to w.
func Logger(w io.Writer, debug bool) *slog.Logger {
	var opts slog.HandlerOptions
	if debug {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &opts))
}
