// Package gateway holds what the thermostat gateways have in common.
package gateway

import (
	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/go-common/http/roundtripper"
	"github.com/prometheus/client_golang/prometheus"
	"net/http"
	"strconv"
	"strings"
)

const (
	// OffTemperature is the target temperature a gateway reports for a thermostat that is switched off.
	OffTemperature = 126.5
	// OnTemperature is the target temperature a gateway reports for a thermostat that is permanently on.
	OnTemperature = 127.0
)

// Device is a thermostat, as reported by a gateway.
type Device struct {
	AIN         string
	Name        string
	Temperature float64
}

// NewRequestMetrics returns the metrics recorded for each call to a gateway's API.
// Paths under prefix are recorded as prefix, to keep the label's cardinality down.
func NewRequestMetrics(namespace, subsystem, prefix string, labels prometheus.Labels) metrics.RequestMetrics {
	return metrics.NewRequestMetrics(metrics.Options{
		Namespace:   namespace,
		Subsystem:   subsystem,
		ConstLabels: labels,
		LabelValues: func(request *http.Request, code int) (string, string, string) {
			path := request.URL.Path
			if prefix != "" && strings.HasPrefix(path, prefix) {
				path = prefix
			}
			return request.Method, path, strconv.Itoa(code)
		},
	})
}

// InstrumentedRoundTripper records the metrics of each request sent through rt.
func InstrumentedRoundTripper(rt http.RoundTripper, m metrics.RequestMetrics) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return roundtripper.New(
		roundtripper.WithRequestMetrics(m),
		roundtripper.WithRoundTripper(rt),
	)
}
