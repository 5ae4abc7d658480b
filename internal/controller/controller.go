// Package controller runs a reconciliation pass: it brings the target temperature of every thermostat in line with its rules.
//
// A pass reads all state it needs from the gateway and the repository. Passes must not overlap.
package controller

import (
	"context"
	"errors"
	"fmt"
	"github.com/clambin/thermostats/internal/gateway"
	"github.com/clambin/thermostats/internal/notifier"
	"github.com/clambin/thermostats/internal/reconciler"
	"github.com/clambin/thermostats/internal/rules"
	"log/slog"
	"time"
)

type Gateway interface {
	ListThermostats(ctx context.Context) ([]gateway.Device, error)
	SetTargetTemperature(ctx context.Context, ain string, temperature float64) error
}

type Repository interface {
	reconciler.LogLookup
	FindThermostat(ctx context.Context, ain string) (rules.Thermostat, bool, error)
	CreateThermostat(ctx context.Context, ain, name string) (rules.Thermostat, error)
	UpdateThermostatName(ctx context.Context, id int64, name string) error
	ListRules(ctx context.Context, thermostatID int64) ([]rules.Rule, error)
	CreateLog(ctx context.Context, l rules.Log) (rules.Log, error)
}

const (
	stepResolve   = "resolve"
	stepRules     = "rules"
	stepReconcile = "reconcile"
	stepApply     = "apply"
	stepLog       = "log"
)

type Controller struct {
	Gateway        Gateway
	Repository     Repository
	Notifier       notifier.Notifier
	Engine         reconciler.Engine
	Metrics        *Metrics
	Location       *time.Location
	GetCurrentTime func() time.Time
	logger         *slog.Logger
}

func New(gw Gateway, repo Repository, n notifier.Notifier, engine reconciler.Engine, location *time.Location, logger *slog.Logger) *Controller {
	if location == nil {
		location = time.UTC
	}
	return &Controller{
		Gateway:        gw,
		Repository:     repo,
		Notifier:       n,
		Engine:         engine,
		Metrics:        NewMetrics(),
		Location:       location,
		GetCurrentTime: time.Now,
		logger:         logger,
	}
}

func (c *Controller) now() time.Time {
	return c.GetCurrentTime().In(c.Location)
}

// Run performs one pass. If the gateway can't be reached, it returns ErrGatewayUnavailable and no thermostat is processed.
// Otherwise, every thermostat is processed: failures are logged and returned as a joined error of DeviceErrors.
func (c *Controller) Run(ctx context.Context) error {
	now := c.now()
	c.logger.Debug("pass started", "time", now)

	devices, err := c.Gateway.ListThermostats(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	var errs []error
	for _, device := range devices {
		if err = c.sync(ctx, device, now); err != nil {
			c.logger.Error("failed to process thermostat", "ain", device.AIN, "name", device.Name, "err", err)
			var deviceErr *DeviceError
			if errors.As(err, &deviceErr) {
				c.Metrics.failure(deviceErr.Step)
			}
			errs = append(errs, err)
		}
	}
	c.Metrics.passCompleted(now)
	c.logger.Debug("pass completed", "thermostats", len(devices), "errors", len(errs))
	return errors.Join(errs...)
}

func (c *Controller) sync(ctx context.Context, device gateway.Device, now time.Time) error {
	l := c.logger.With("ain", device.AIN, "name", device.Name)

	thermostat, err := c.resolve(ctx, device, l)
	if err != nil {
		return &DeviceError{AIN: device.AIN, Step: stepResolve, Err: err}
	}
	if thermostat.Rules, err = c.Repository.ListRules(ctx, thermostat.ID); err != nil {
		return &DeviceError{AIN: device.AIN, Step: stepRules, Err: err}
	}

	decision, err := c.Engine.Reconcile(ctx, thermostat, device.Temperature, now, c.Repository)
	if err != nil {
		return &DeviceError{AIN: device.AIN, Step: stepReconcile, Err: err}
	}
	l.Debug("thermostat reconciled", "decision", decision)

	switch decision.Kind {
	case reconciler.NoOp:
		c.Metrics.decision(device.AIN, thermostat.Name, decision, c.reported(device.Temperature))
		return nil
	case reconciler.SuppressAndNotify:
		c.Metrics.decision(device.AIN, thermostat.Name, decision, c.reported(device.Temperature))
		l.Info("not overriding manual change", "decision", decision)
		c.Notifier.Notify(thermostat.Name, c.Engine.Describe(decision))
		return nil
	}

	if err = c.Gateway.SetTargetTemperature(ctx, device.AIN, decision.Temperature); err != nil {
		return &DeviceError{AIN: device.AIN, Step: stepApply, Err: err}
	}
	c.Metrics.decision(device.AIN, thermostat.Name, decision, decision.Temperature)
	l.Info("target temperature changed", "decision", decision)

	entry := rules.NewFallbackLog(thermostat.ID, decision.Temperature, now)
	if decision.Kind == reconciler.ApplyRule {
		entry = rules.NewRuleLog(thermostat.ID, *decision.Rule, now)
	}
	_, err = c.Repository.CreateLog(ctx, entry)

	c.Notifier.Notify(thermostat.Name, c.Engine.Describe(decision))

	if err != nil {
		return &DeviceError{AIN: device.AIN, Step: stepLog, Err: fmt.Errorf("%w: %w", ErrInconsistent, err)}
	}
	return nil
}

// resolve finds the thermostat for a device, creating it on first sight. If the device was renamed on the gateway,
// the new name is stored.
func (c *Controller) resolve(ctx context.Context, device gateway.Device, l *slog.Logger) (rules.Thermostat, error) {
	thermostat, found, err := c.Repository.FindThermostat(ctx, device.AIN)
	if err != nil {
		return rules.Thermostat{}, err
	}
	if !found {
		l.Info("new thermostat found")
		return c.Repository.CreateThermostat(ctx, device.AIN, device.Name)
	}
	if thermostat.Name != device.Name {
		l.Info("thermostat renamed", "old", thermostat.Name)
		if err = c.Repository.UpdateThermostatName(ctx, thermostat.ID, device.Name); err != nil {
			return rules.Thermostat{}, err
		}
		thermostat.Name = device.Name
	}
	return thermostat, nil
}

// reported converts the gateway's "off" value to 0, the value used to switch a thermostat off.
func (c *Controller) reported(temperature float64) float64 {
	if c.Engine.TemperatureEqual(temperature, 0) {
		return 0
	}
	return temperature
}
