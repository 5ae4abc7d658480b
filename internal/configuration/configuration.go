// Package configuration reads the thermostats configuration from viper.
package configuration

import (
	"errors"
	"fmt"
	"github.com/spf13/viper"
	"time"
	_ "time/tzdata"
)

var ErrConfiguration = errors.New("invalid configuration")

const (
	FritzBox = "fritzbox"
	Tado     = "tado"
)

type Configuration struct {
	Debug               bool
	Location            *time.Location
	OffTemperature      float64
	FallbackTemperature float64
	DatabasePath        string
	Gateway             GatewayConfiguration
	Slack               SlackConfiguration
	Pushover            PushoverConfiguration
	PushGateway         string
}

type GatewayConfiguration struct {
	Kind     string
	FritzBox FritzBoxConfiguration
	Tado     TadoConfiguration
}

type FritzBoxConfiguration struct {
	Host     string
	Username string
	Password string
}

type TadoConfiguration struct {
	Username     string
	Password     string
	ClientSecret string
}

type SlackConfiguration struct {
	Token   string
	Channel string
}

func (s SlackConfiguration) Enabled() bool {
	return s.Token != ""
}

type PushoverConfiguration struct {
	UserKey  string
	APIToken string
}

func (p PushoverConfiguration) Enabled() bool {
	return p.UserKey != "" && p.APIToken != ""
}

// Load returns the configuration stored in v. It returns ErrConfiguration if the configured gateway lacks credentials,
// if the gateway kind is unknown or if the timezone cannot be loaded.
func Load(v *viper.Viper) (Configuration, error) {
	cfg := Configuration{
		Debug:               v.GetBool("debug"),
		OffTemperature:      v.GetFloat64("temperature.off"),
		FallbackTemperature: v.GetFloat64("temperature.fallback"),
		DatabasePath:        v.GetString("database.path"),
		Gateway: GatewayConfiguration{
			Kind: v.GetString("gateway.kind"),
			FritzBox: FritzBoxConfiguration{
				Host:     v.GetString("fritzbox.host"),
				Username: v.GetString("fritzbox.username"),
				Password: v.GetString("fritzbox.password"),
			},
			Tado: TadoConfiguration{
				Username:     v.GetString("tado.username"),
				Password:     v.GetString("tado.password"),
				ClientSecret: v.GetString("tado.clientSecret"),
			},
		},
		Slack: SlackConfiguration{
			Token:   v.GetString("slack.token"),
			Channel: v.GetString("slack.channel"),
		},
		Pushover: PushoverConfiguration{
			UserKey:  v.GetString("pushover.userKey"),
			APIToken: v.GetString("pushover.apiToken"),
		},
		PushGateway: v.GetString("metrics.pushgateway"),
	}

	zone := v.GetString("timezone")
	if zone == "" {
		zone = "UTC"
	}
	var err error
	if cfg.Location, err = time.LoadLocation(zone); err != nil {
		return cfg, fmt.Errorf("%w: timezone: %w", ErrConfiguration, err)
	}
	if cfg.OffTemperature == 0 {
		return cfg, fmt.Errorf("%w: temperature.off must be set", ErrConfiguration)
	}
	if cfg.DatabasePath == "" {
		return cfg, fmt.Errorf("%w: database.path must be set", ErrConfiguration)
	}

	switch cfg.Gateway.Kind {
	case FritzBox:
		if cfg.Gateway.FritzBox.Host == "" || cfg.Gateway.FritzBox.Password == "" {
			return cfg, fmt.Errorf("%w: fritzbox.host and fritzbox.password must be set", ErrConfiguration)
		}
	case Tado:
		if cfg.Gateway.Tado.Username == "" || cfg.Gateway.Tado.Password == "" {
			return cfg, fmt.Errorf("%w: tado.username and tado.password must be set", ErrConfiguration)
		}
	default:
		return cfg, fmt.Errorf("%w: unknown gateway %q", ErrConfiguration, cfg.Gateway.Kind)
	}
	return cfg, nil
}
