// Package tado exposes the zones of a Tadoº home as thermostats.
package tado

import (
	"context"
	"fmt"
	"github.com/clambin/tado"
	"github.com/clambin/thermostats/internal/gateway"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"strconv"
)

// offTemperature is the overlay temperature that Tadoº treats as "heating off".
const offTemperature = 5.0

const maxParallelCalls = 4

type TadoClient interface {
	GetZones(context.Context) (tado.Zones, error)
	GetZoneInfo(context.Context, int) (tado.ZoneInfo, error)
	SetZoneOverlay(context.Context, int, float64) error
}

// Gateway presents each Tadoº zone as a thermostat. A zone's AIN is its zone ID.
type Gateway struct {
	TadoClient TadoClient
	logger     *slog.Logger
}

func New(client TadoClient, logger *slog.Logger) *Gateway {
	return &Gateway{TadoClient: client, logger: logger}
}

// ListThermostats returns all zones. A zone whose heating is powered off reports gateway.OffTemperature.
func (g *Gateway) ListThermostats(ctx context.Context) ([]gateway.Device, error) {
	zones, err := g.TadoClient.GetZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("tado zones: %w", err)
	}

	devices := make([]gateway.Device, len(zones))
	var eg errgroup.Group
	eg.SetLimit(maxParallelCalls)
	for i, zone := range zones {
		eg.Go(func() error {
			info, err := g.TadoClient.GetZoneInfo(ctx, zone.ID)
			if err != nil {
				return fmt.Errorf("tado zone %q: %w", zone.Name, err)
			}
			temperature := gateway.OffTemperature
			if info.Setting.Power == "ON" {
				temperature = info.Setting.Temperature.Celsius
			}
			devices[i] = gateway.Device{
				AIN:         strconv.Itoa(zone.ID),
				Name:        zone.Name,
				Temperature: temperature,
			}
			return nil
		})
	}
	if err = eg.Wait(); err != nil {
		return nil, err
	}
	return devices, nil
}

// SetTargetTemperature sets a manual overlay on the zone. Zero, the off sentinel or anything at or below 5 °C switches heating off.
func (g *Gateway) SetTargetTemperature(ctx context.Context, ain string, temperature float64) error {
	zoneID, err := strconv.Atoi(ain)
	if err != nil {
		return fmt.Errorf("invalid tado zone id %q: %w", ain, err)
	}
	if temperature <= offTemperature || temperature == gateway.OffTemperature {
		temperature = offTemperature
	}
	g.logger.Debug("setting zone overlay", "zone", zoneID, "temperature", temperature)
	return g.TadoClient.SetZoneOverlay(ctx, zoneID, temperature)
}
