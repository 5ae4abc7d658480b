package gateway_test

import (
	"bytes"
	"github.com/clambin/go-common/http/roundtripper"
	"github.com/clambin/thermostats/internal/gateway"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestInstrumentedRoundTripper(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "root",
			path: "/",
			want: `
# HELP thermostats_gateway_http_requests_total total number of http requests
# TYPE thermostats_gateway_http_requests_total counter
thermostats_gateway_http_requests_total{code="404",gateway="fritzbox",method="GET",path="/"} 1
`,
		},
		{
			name: "blank",
			path: "",
			want: `
# HELP thermostats_gateway_http_requests_total total number of http requests
# TYPE thermostats_gateway_http_requests_total counter
thermostats_gateway_http_requests_total{code="404",gateway="fritzbox",method="GET",path="/"} 1
`,
		},
		{
			name: "prefixed",
			path: "/webservices/homeautoswitch.lua?switchcmd=getdevicelistinfos",
			want: `
# HELP thermostats_gateway_http_requests_total total number of http requests
# TYPE thermostats_gateway_http_requests_total counter
thermostats_gateway_http_requests_total{code="404",gateway="fritzbox",method="GET",path="/webservices"} 1
`,
		},
		{
			name: "login",
			path: "/login_sid.lua?version=2",
			want: `
# HELP thermostats_gateway_http_requests_total total number of http requests
# TYPE thermostats_gateway_http_requests_total counter
thermostats_gateway_http_requests_total{code="404",gateway="fritzbox",method="GET",path="/login_sid.lua"} 1
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := gateway.NewRequestMetrics("thermostats", "gateway", "/webservices", map[string]string{"gateway": "fritzbox"})
			final := roundtripper.RoundTripperFunc(func(request *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(&bytes.Buffer{})}, nil
			})

			c := http.Client{Transport: gateway.InstrumentedRoundTripper(final, m)}

			_, err := c.Get(tt.path)
			require.NoError(t, err)

			assert.NoError(t, testutil.CollectAndCompare(m, strings.NewReader(tt.want), "thermostats_gateway_http_requests_total"))
		})
	}
}
