package tado

import (
	"fmt"
	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/tado"
	"github.com/clambin/thermostats/internal/gateway"
	"net/http"
)

// NewInstrumentedClient returns a Tadoº API client that records metrics for each API call.
func NewInstrumentedClient(username, password, secret string, m metrics.RequestMetrics) (*tado.APIClient, error) {
	c, err := tado.New(username, password, secret)
	if err != nil {
		return nil, fmt.Errorf("tado: %w", err)
	}
	c.HTTPClient = &http.Client{Transport: gateway.InstrumentedRoundTripper(c.HTTPClient.Transport, m)}
	return c, nil
}
