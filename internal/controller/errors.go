package controller

import (
	"errors"
)

var (
	// ErrGatewayUnavailable indicates that the thermostats could not be retrieved from the gateway. No thermostat was processed.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// ErrInconsistent indicates that a new temperature was applied to a thermostat, but could not be logged.
	ErrInconsistent = errors.New("temperature applied but not logged")
)

var _ error = &DeviceError{}

// DeviceError reports why a thermostat could not be processed.
type DeviceError struct {
	AIN  string
	Step string
	Err  error
}

func (e *DeviceError) Error() string {
	reason := "unknown reason"
	if e.Err != nil {
		reason = e.Err.Error()
	}
	return "thermostat " + e.AIN + ": " + e.Step + ": " + reason
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
