package controller_test

import (
	"context"
	"errors"
	"github.com/clambin/thermostats/internal/calendar"
	"github.com/clambin/thermostats/internal/controller"
	"github.com/clambin/thermostats/internal/gateway"
	"github.com/clambin/thermostats/internal/reconciler"
	"github.com/clambin/thermostats/internal/rules"
	"github.com/clambin/thermostats/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// Monday 4 March 2024, 08:00 UTC
var now = time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)

type fakeGateway struct {
	lock    sync.Mutex
	devices []gateway.Device
	listErr error
	setErr  map[string]error
	set     map[string]float64
}

func (f *fakeGateway) ListThermostats(context.Context) ([]gateway.Device, error) {
	return f.devices, f.listErr
}

func (f *fakeGateway) SetTargetTemperature(_ context.Context, ain string, temperature float64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.setErr[ain]; err != nil {
		return err
	}
	if f.set == nil {
		f.set = make(map[string]float64)
	}
	f.set[ain] = temperature
	return nil
}

type notification struct {
	title   string
	message string
}

type fakeNotifier struct {
	notifications []notification
}

func (f *fakeNotifier) Notify(title, message string) {
	f.notifications = append(f.notifications, notification{title: title, message: message})
}

// recordingStore keeps the logs written during a pass.
type recordingStore struct {
	*store.Store
	logs   []rules.Log
	logErr error
}

func (r *recordingStore) CreateLog(ctx context.Context, l rules.Log) (rules.Log, error) {
	if r.logErr != nil {
		return rules.Log{}, r.logErr
	}
	l, err := r.Store.CreateLog(ctx, l)
	if err == nil {
		r.logs = append(r.logs, l)
	}
	return l, err
}

type fixture struct {
	gateway    *fakeGateway
	store      *recordingStore
	notifier   *fakeNotifier
	controller *controller.Controller
}

func newFixture(t *testing.T, devices ...gateway.Device) fixture {
	t.Helper()
	s, err := store.Open(t.Context(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	f := fixture{
		gateway:  &fakeGateway{devices: devices},
		store:    &recordingStore{Store: s},
		notifier: &fakeNotifier{},
	}
	f.controller = controller.New(
		f.gateway,
		f.store,
		f.notifier,
		reconciler.New(reconciler.Configuration{OffTemperature: gateway.OffTemperature}),
		time.UTC,
		slog.New(slog.DiscardHandler),
	)
	f.controller.GetCurrentTime = func() time.Time { return now }
	return f
}

func (f fixture) thermostat(t *testing.T, ain, name string, r ...rules.Rule) (rules.Thermostat, []rules.Rule) {
	t.Helper()
	ctx := t.Context()
	thermostat, err := f.store.CreateThermostat(ctx, ain, name)
	require.NoError(t, err)
	created := make([]rules.Rule, 0, len(r))
	for _, rule := range r {
		rule, err = f.store.CreateRule(ctx, rule)
		require.NoError(t, err)
		require.NoError(t, f.store.AssignRule(ctx, thermostat.ID, rule.ID))
		created = append(created, rule)
	}
	return thermostat, created
}

func ptr(t calendar.TimeOfDay) *calendar.TimeOfDay { return &t }

func morning(temperature float64) rules.Rule {
	return rules.Rule{Name: "morning", WeekDays: calendar.WeekDays(), Start: calendar.At(6, 0, 0), End: ptr(calendar.At(9, 0, 0)), Temperature: temperature}
}

func evening() rules.Rule {
	return rules.Rule{Name: "evening", WeekDays: calendar.WeekDays(), Start: calendar.At(18, 0, 0), End: ptr(calendar.At(22, 0, 0)), Temperature: 21}
}

func TestController_Run_NoOp(t *testing.T) {
	f := newFixture(t, gateway.Device{AIN: "1234", Name: "living", Temperature: 21})
	f.thermostat(t, "1234", "living", morning(21))

	require.NoError(t, f.controller.Run(t.Context()))
	assert.Empty(t, f.gateway.set)
	assert.Empty(t, f.store.logs)
	assert.Empty(t, f.notifier.notifications)
}

func TestController_Run_ApplyRule(t *testing.T) {
	f := newFixture(t, gateway.Device{AIN: "1234", Name: "living", Temperature: 18})
	thermostat, created := f.thermostat(t, "1234", "living", morning(21))

	require.NoError(t, f.controller.Run(t.Context()))
	assert.Equal(t, map[string]float64{"1234": 21}, f.gateway.set)

	require.Len(t, f.store.logs, 1)
	assert.Equal(t, 21.0, f.store.logs[0].Temperature)
	assert.Equal(t, created[0].ID, f.store.logs[0].RuleID)
	assert.Equal(t, thermostat.ID, f.store.logs[0].ThermostatID)
	assert.True(t, now.Equal(f.store.logs[0].CreatedAt))

	assert.Equal(t, []notification{{title: "living", message: "morning, (Mo, Tu, We, Th, Fr, Sa, Su), 06:00 - 09:00: 21 °C: 18 °C → 21 °C"}}, f.notifier.notifications)

	// the next pass finds the thermostat at its target temperature
	f.gateway.devices[0].Temperature = 21
	require.NoError(t, f.controller.Run(t.Context()))
	assert.Len(t, f.store.logs, 1)
}

func TestController_Run_ApplyFallback(t *testing.T) {
	f := newFixture(t, gateway.Device{AIN: "1234", Name: "living", Temperature: 21})
	f.thermostat(t, "1234", "living", evening())

	require.NoError(t, f.controller.Run(t.Context()))
	assert.Equal(t, map[string]float64{"1234": 0}, f.gateway.set)
	require.Len(t, f.store.logs, 1)
	assert.Zero(t, f.store.logs[0].RuleID)
	assert.Zero(t, f.store.logs[0].Temperature)
	assert.Nil(t, f.store.logs[0].Start)
	assert.Equal(t, []notification{{title: "living", message: "fallback: 21 °C → off"}}, f.notifier.notifications)

	// thermostat now reports "off"
	f.gateway.devices[0].Temperature = gateway.OffTemperature
	f.gateway.set = nil
	require.NoError(t, f.controller.Run(t.Context()))
	assert.Empty(t, f.gateway.set)
}

func TestController_Run_SharedRule(t *testing.T) {
	f := newFixture(t,
		gateway.Device{AIN: "1234", Name: "living", Temperature: 18},
		gateway.Device{AIN: "5678", Name: "bedroom", Temperature: 18},
	)
	_, created := f.thermostat(t, "1234", "living", morning(21))
	bedroom, _ := f.thermostat(t, "5678", "bedroom")
	require.NoError(t, f.store.AssignRule(t.Context(), bedroom.ID, created[0].ID))

	require.NoError(t, f.controller.Run(t.Context()))
	assert.Equal(t, map[string]float64{"1234": 21, "5678": 21}, f.gateway.set)
	require.Len(t, f.store.logs, 2)
	require.Len(t, f.notifier.notifications, 2)
	for _, n := range f.notifier.notifications {
		assert.NotContains(t, n.message, "Not overriding manual change")
	}

	// a manual change on one thermostat leaves the other one alone
	f.gateway.set = nil
	f.gateway.devices[0].Temperature = 21
	f.gateway.devices[1].Temperature = 19
	require.NoError(t, f.controller.Run(t.Context()))
	assert.Empty(t, f.gateway.set)
	require.Len(t, f.notifier.notifications, 3)
	assert.Equal(t, "bedroom", f.notifier.notifications[2].title)
}

func TestController_Run_SuppressManualChange(t *testing.T) {
	f := newFixture(t, gateway.Device{AIN: "1234", Name: "living", Temperature: 19})
	thermostat, created := f.thermostat(t, "1234", "living", morning(21))

	_, err := f.store.Store.CreateLog(t.Context(), rules.NewRuleLog(thermostat.ID, created[0], now.Add(-time.Hour)))
	require.NoError(t, err)

	require.NoError(t, f.controller.Run(t.Context()))
	assert.Empty(t, f.gateway.set)
	assert.Empty(t, f.store.logs)
	require.Len(t, f.notifier.notifications, 1)
	assert.Equal(t, "morning, (Mo, Tu, We, Th, Fr, Sa, Su), 06:00 - 09:00: 21 °C: expected 21 °C, found 19 °C. Not overriding manual change", f.notifier.notifications[0].message)
}

func TestController_Run_RuleEditedSinceLastApplied(t *testing.T) {
	f := newFixture(t, gateway.Device{AIN: "1234", Name: "living", Temperature: 19})
	thermostat, created := f.thermostat(t, "1234", "living", morning(21))

	stale := rules.NewRuleLog(thermostat.ID, created[0], now.Add(-time.Hour))
	stale.Temperature = 20
	_, err := f.store.Store.CreateLog(t.Context(), stale)
	require.NoError(t, err)

	require.NoError(t, f.controller.Run(t.Context()))
	assert.Equal(t, map[string]float64{"1234": 21}, f.gateway.set)
}

func TestController_Run_Rename(t *testing.T) {
	f := newFixture(t, gateway.Device{AIN: "1234", Name: "new name", Temperature: 21})
	thermostat, _ := f.thermostat(t, "1234", "old name", morning(21))

	require.NoError(t, f.controller.Run(t.Context()))
	assert.Empty(t, f.gateway.set)

	stored, ok, err := f.store.FindThermostat(t.Context(), "1234")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, thermostat.ID, stored.ID)
	assert.Equal(t, "new name", stored.Name)
}

func TestController_Run_NewThermostat(t *testing.T) {
	f := newFixture(t, gateway.Device{AIN: "1234", Name: "living", Temperature: 0})

	require.NoError(t, f.controller.Run(t.Context()))
	assert.Empty(t, f.gateway.set)

	stored, ok, err := f.store.FindThermostat(t.Context(), "1234")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "living", stored.Name)
}

func TestController_Run_GatewayUnavailable(t *testing.T) {
	f := newFixture(t)
	f.gateway.listErr = errors.New("login failed")

	err := f.controller.Run(t.Context())
	assert.ErrorIs(t, err, controller.ErrGatewayUnavailable)
	all, err := f.store.ListThermostats(t.Context())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestController_Run_IsolatesFailures(t *testing.T) {
	f := newFixture(t,
		gateway.Device{AIN: "1", Name: "living", Temperature: 18},
		gateway.Device{AIN: "2", Name: "office", Temperature: 18},
	)
	f.thermostat(t, "1", "living", morning(21))
	f.thermostat(t, "2", "office", morning(20))
	f.gateway.setErr = map[string]error{"1": errors.New("device not present")}

	err := f.controller.Run(t.Context())
	require.Error(t, err)

	var deviceErr *controller.DeviceError
	require.ErrorAs(t, err, &deviceErr)
	assert.Equal(t, "1", deviceErr.AIN)
	assert.Equal(t, "apply", deviceErr.Step)
	assert.Equal(t, "thermostat 1: apply: device not present", deviceErr.Error())

	assert.Equal(t, map[string]float64{"2": 20}, f.gateway.set)
	require.Len(t, f.store.logs, 1)
	assert.Equal(t, 20.0, f.store.logs[0].Temperature)
	require.Len(t, f.notifier.notifications, 1)
	assert.Equal(t, "office", f.notifier.notifications[0].title)

	assert.NoError(t, testutil.CollectAndCompare(f.controller.Metrics, strings.NewReader(`
# HELP thermostats_sync_decisions_total Number of decisions, by kind
# TYPE thermostats_sync_decisions_total counter
thermostats_sync_decisions_total{kind="apply rule"} 1
# HELP thermostats_sync_errors_total Number of thermostats that failed to process, by step
# TYPE thermostats_sync_errors_total counter
thermostats_sync_errors_total{step="apply"} 1
# HELP thermostats_thermostat_target_temperature_celsius Target temperature of the thermostat after the last pass. 0 if the thermostat is off
# TYPE thermostats_thermostat_target_temperature_celsius gauge
thermostats_thermostat_target_temperature_celsius{ain="2",name="office"} 20
`), "thermostats_sync_decisions_total", "thermostats_sync_errors_total", "thermostats_thermostat_target_temperature_celsius"))
}

func TestController_Run_Inconsistent(t *testing.T) {
	f := newFixture(t, gateway.Device{AIN: "1234", Name: "living", Temperature: 18})
	f.thermostat(t, "1234", "living", morning(21))
	f.store.logErr = errors.New("disk full")

	err := f.controller.Run(t.Context())
	assert.ErrorIs(t, err, controller.ErrInconsistent)
	assert.Equal(t, map[string]float64{"1234": 21}, f.gateway.set)
	assert.Len(t, f.notifier.notifications, 1)
}

func TestController_Run_Timezone(t *testing.T) {
	f := newFixture(t, gateway.Device{AIN: "1234", Name: "living", Temperature: 18})
	f.thermostat(t, "1234", "living", morning(21))

	// 08:00 UTC is 17:00 in Tokyo: the morning rule doesn't match
	f.controller.Location = time.FixedZone("JST", 9*60*60)

	require.NoError(t, f.controller.Run(t.Context()))
	assert.Equal(t, map[string]float64{"1234": 0}, f.gateway.set)
}

func TestController_Evaluate(t *testing.T) {
	f := newFixture(t,
		gateway.Device{AIN: "1", Name: "living", Temperature: 18},
		gateway.Device{AIN: "2", Name: "unknown", Temperature: 20},
	)
	f.thermostat(t, "1", "living", morning(21), evening())

	evaluations, err := f.controller.Evaluate(t.Context(), now)
	require.NoError(t, err)
	require.Len(t, evaluations, 2)

	assert.NoError(t, evaluations[0].Err)
	assert.Len(t, evaluations[0].Thermostat.Rules, 2)
	assert.Equal(t, reconciler.ApplyRule, evaluations[0].Decision.Kind)
	assert.Equal(t, 21.0, evaluations[0].Decision.Temperature)

	assert.NoError(t, evaluations[1].Err)
	assert.Zero(t, evaluations[1].Thermostat.ID)
	assert.Equal(t, reconciler.ApplyFallback, evaluations[1].Decision.Kind)

	assert.Empty(t, f.gateway.set)
	assert.Empty(t, f.store.logs)
	assert.Empty(t, f.notifier.notifications)
	all, err := f.store.ListThermostats(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	f.gateway.listErr = errors.New("timeout")
	_, err = f.controller.Evaluate(t.Context(), now)
	assert.ErrorIs(t, err, controller.ErrGatewayUnavailable)
}
