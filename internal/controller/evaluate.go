package controller

import (
	"context"
	"fmt"
	"github.com/clambin/thermostats/internal/gateway"
	"github.com/clambin/thermostats/internal/reconciler"
	"github.com/clambin/thermostats/internal/rules"
	"time"
)

// Evaluation is the outcome of reconciling a thermostat, without applying it.
type Evaluation struct {
	Device     gateway.Device
	Thermostat rules.Thermostat
	Decision   reconciler.Decision
	Err        error
}

// Evaluate reconciles every thermostat at the given time, without side effects: nothing is written to the gateway
// or the repository and no notifications are sent. Thermostats unknown to the repository are evaluated without rules.
func (c *Controller) Evaluate(ctx context.Context, at time.Time) ([]Evaluation, error) {
	at = at.In(c.Location)
	devices, err := c.Gateway.ListThermostats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	evaluations := make([]Evaluation, 0, len(devices))
	for _, device := range devices {
		evaluations = append(evaluations, c.evaluate(ctx, device, at))
	}
	return evaluations, nil
}

func (c *Controller) evaluate(ctx context.Context, device gateway.Device, at time.Time) Evaluation {
	e := Evaluation{Device: device, Thermostat: rules.Thermostat{AIN: device.AIN, Name: device.Name}}

	thermostat, found, err := c.Repository.FindThermostat(ctx, device.AIN)
	if err != nil {
		e.Err = &DeviceError{AIN: device.AIN, Step: stepResolve, Err: err}
		return e
	}
	if found {
		e.Thermostat.ID = thermostat.ID
		if e.Thermostat.Rules, err = c.Repository.ListRules(ctx, thermostat.ID); err != nil {
			e.Err = &DeviceError{AIN: device.AIN, Step: stepRules, Err: err}
			return e
		}
	}
	if e.Decision, err = c.Engine.Reconcile(ctx, e.Thermostat, device.Temperature, at, c.Repository); err != nil {
		e.Err = &DeviceError{AIN: device.AIN, Step: stepReconcile, Err: err}
	}
	return e
}
