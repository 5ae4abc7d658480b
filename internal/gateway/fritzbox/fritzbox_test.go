package fritzbox_test

import (
	"errors"
	"fmt"
	"github.com/clambin/thermostats/internal/gateway"
	"github.com/clambin/thermostats/internal/gateway/fritzbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const (
	challenge = "1234567z"
	password  = "äbc"
	response  = "1234567z-9e224a41eeefa284df7bb0f26c2913e2"
	sid       = "9c977765016899f8"
)

const deviceList = `<devicelist version="1">
<device identifier="08761 0000434" id="17" functionbitmask="320" fwversion="03.33" manufacturer="AVM" productname="Comet DECT">
  <present>1</present><name>Living room</name>
  <hkr><tist>44</tist><tsoll>42</tsoll><absenk>32</absenk><komfort>42</komfort></hkr>
</device>
<device identifier="08761 0000435" id="18" functionbitmask="320" fwversion="03.33" manufacturer="AVM" productname="Comet DECT">
  <present>1</present><name>Bedroom</name>
  <hkr><tist>40</tist><tsoll>253</tsoll></hkr>
</device>
<device identifier="11657 0240192" id="19" functionbitmask="2944" fwversion="04.16" manufacturer="AVM" productname="FRITZ!DECT 200">
  <present>1</present><name>Coffee machine</name>
</device>
</devicelist>`

type fakeBox struct {
	lock     sync.Mutex
	sessions int
	expired  bool
	set      map[string]string
}

func (f *fakeBox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()

	switch r.URL.Path {
	case "/login_sid.lua":
		if r.Method == http.MethodGet {
			_, _ = fmt.Fprintf(w, `<SessionInfo><SID>0000000000000000</SID><Challenge>%s</Challenge><BlockTime>0</BlockTime></SessionInfo>`, challenge)
			return
		}
		if r.FormValue("username") != "admin" || r.FormValue("response") != response {
			_, _ = fmt.Fprintf(w, `<SessionInfo><SID>0000000000000000</SID><Challenge>%s</Challenge><BlockTime>8</BlockTime></SessionInfo>`, challenge)
			return
		}
		f.sessions++
		f.expired = false
		_, _ = fmt.Fprintf(w, `<SessionInfo><SID>%s</SID><Challenge>%s</Challenge><BlockTime>0</BlockTime></SessionInfo>`, sid, challenge)
	case "/webservices/homeautoswitch.lua":
		if r.URL.Query().Get("sid") != sid || f.expired {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		switch r.URL.Query().Get("switchcmd") {
		case "getdevicelistinfos":
			_, _ = w.Write([]byte(deviceList))
		case "sethkrtsoll":
			f.set[r.URL.Query().Get("ain")] = r.URL.Query().Get("param")
			_, _ = w.Write([]byte(r.URL.Query().Get("param")))
		default:
			http.Error(w, "bad request", http.StatusBadRequest)
		}
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBox) stats() (int, map[string]string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	set := make(map[string]string, len(f.set))
	for k, v := range f.set {
		set[k] = v
	}
	return f.sessions, set
}

func TestClient(t *testing.T) {
	box := fakeBox{set: make(map[string]string)}
	s := httptest.NewServer(&box)
	t.Cleanup(s.Close)

	c := fritzbox.New(s.URL, "admin", password, nil, slog.New(slog.DiscardHandler))
	ctx := t.Context()

	devices, err := c.ListThermostats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []gateway.Device{
		{AIN: "08761 0000434", Name: "Living room", Temperature: 21},
		{AIN: "08761 0000435", Name: "Bedroom", Temperature: gateway.OffTemperature},
	}, devices)

	require.NoError(t, c.SetTargetTemperature(ctx, "08761 0000434", 19.5))
	require.NoError(t, c.SetTargetTemperature(ctx, "08761 0000435", 0))
	sessions, set := box.stats()
	assert.Equal(t, map[string]string{"08761 0000434": "39", "08761 0000435": "253"}, set)
	assert.Equal(t, 1, sessions)

	// box expires the session: client logs in again
	box.lock.Lock()
	box.expired = true
	box.lock.Unlock()

	_, err = c.ListThermostats(ctx)
	require.NoError(t, err)
	sessions, _ = box.stats()
	assert.Equal(t, 2, sessions)
}

func TestClient_Login(t *testing.T) {
	s := httptest.NewServer(&fakeBox{set: make(map[string]string)})
	t.Cleanup(s.Close)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  assert.ErrorAssertionFunc
	}{
		{name: "valid", username: "admin", password: password, wantErr: assert.NoError},
		{
			name:     "invalid",
			username: "admin",
			password: "wrong",
			wantErr: func(t assert.TestingT, err error, _ ...interface{}) bool {
				return assert.ErrorIs(t, err, fritzbox.ErrLoginFailed)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := fritzbox.New(s.URL, tt.username, tt.password, nil, slog.New(slog.DiscardHandler))
			tt.wantErr(t, c.Login(t.Context()))
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	rt := roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	c := fritzbox.New("http://fritz.box", "admin", password, rt, slog.New(slog.DiscardHandler))
	_, err := c.ListThermostats(t.Context())
	assert.Error(t, err)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
