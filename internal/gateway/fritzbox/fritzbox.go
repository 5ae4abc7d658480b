// Package fritzbox reads and sets the target temperature of the thermostats connected to a FRITZ!Box,
// using the box's AVM Home Automation HTTP interface.
package fritzbox

import (
	"context"
	"encoding/xml"
	"fmt"
	"github.com/clambin/thermostats/internal/gateway"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

const (
	loginPath      = "/login_sid.lua"
	homeAutoPath   = "/webservices/homeautoswitch.lua"
	thermostatMask = 1 << 6

	tsollOff = 253
	tsollOn  = 254
)

// Client talks to a FRITZ!Box. It logs in on first use and again when the box expires the session.
type Client struct {
	host       string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
	lock       sync.Mutex
	sid        string
}

// New returns a Client for the FRITZ!Box at host (e.g. "http://fritz.box"). If rt is nil, http.DefaultTransport is used.
func New(host, username, password string, rt http.RoundTripper, logger *slog.Logger) *Client {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &Client{
		host:       strings.TrimSuffix(host, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Transport: rt},
		logger:     logger,
	}
}

// Login creates a new session.
func (c *Client) Login(ctx context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	info, err := c.session(ctx, nil)
	if err != nil {
		return err
	}
	if info.valid() {
		c.sid = info.SID
		return nil
	}

	response, err := challengeResponse(info.Challenge, c.password)
	if err != nil {
		return err
	}
	if info, err = c.session(ctx, url.Values{"username": {c.username}, "response": {response}}); err != nil {
		return err
	}
	if !info.valid() {
		return fmt.Errorf("%w (blocked for %ds)", ErrLoginFailed, info.BlockTime)
	}
	c.sid = info.SID
	c.logger.Debug("logged in", "host", c.host)
	return nil
}

func (c *Client) session(ctx context.Context, form url.Values) (sessionInfo, error) {
	target := c.host + loginPath + "?version=2"
	method := http.MethodGet
	var body io.Reader
	if form != nil {
		method = http.MethodPost
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return sessionInfo{}, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sessionInfo{}, fmt.Errorf("fritzbox login: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return sessionInfo{}, fmt.Errorf("fritzbox login: %s", resp.Status)
	}
	var info sessionInfo
	if err = xml.NewDecoder(resp.Body).Decode(&info); err != nil {
		return sessionInfo{}, fmt.Errorf("fritzbox login: decode: %w", err)
	}
	return info, nil
}

// command runs a homeautoswitch command and returns the response body. If the session expired, it logs in again and retries once.
func (c *Client) command(ctx context.Context, params url.Values) ([]byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.sid == "" {
		if err := c.login(ctx); err != nil {
			return nil, err
		}
	}

	body, status, err := c.do(ctx, params)
	if err == nil && status == http.StatusForbidden {
		c.logger.Debug("session expired. logging in again")
		if err = c.login(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.do(ctx, params)
	}
	if err != nil {
		return nil, fmt.Errorf("fritzbox %s: %w", params.Get("switchcmd"), err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fritzbox %s: %s", params.Get("switchcmd"), http.StatusText(status))
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, params url.Values) ([]byte, int, error) {
	query := url.Values{}
	for key, values := range params {
		query[key] = values
	}
	query.Set("sid", c.sid)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+homeAutoPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, err
}

type deviceList struct {
	XMLName xml.Name `xml:"devicelist"`
	Devices []device `xml:"device"`
}

type device struct {
	Identifier      string `xml:"identifier,attr"`
	FunctionBitmask int    `xml:"functionbitmask,attr"`
	Present         int    `xml:"present"`
	Name            string `xml:"name"`
	HKR             *hkr   `xml:"hkr"`
}

type hkr struct {
	TIst  int `xml:"tist"`
	TSoll int `xml:"tsoll"`
}

func (d device) isThermostat() bool {
	return d.FunctionBitmask&thermostatMask != 0 && d.HKR != nil
}

// ListThermostats returns all devices with thermostat capability. Temperature is the device's target temperature.
func (c *Client) ListThermostats(ctx context.Context) ([]gateway.Device, error) {
	body, err := c.command(ctx, url.Values{"switchcmd": {"getdevicelistinfos"}})
	if err != nil {
		return nil, err
	}
	var list deviceList
	if err = xml.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("fritzbox getdevicelistinfos: decode: %w", err)
	}

	devices := make([]gateway.Device, 0, len(list.Devices))
	for _, d := range list.Devices {
		if !d.isThermostat() {
			continue
		}
		devices = append(devices, gateway.Device{
			AIN:         d.Identifier,
			Name:        d.Name,
			Temperature: float64(d.HKR.TSoll) / 2,
		})
	}
	return devices, nil
}

// SetTargetTemperature sets the target temperature of a thermostat.
// Temperatures below 8 °C (including 0 and the off sentinel) switch the thermostat off. Temperatures above 28 °C switch it on permanently.
func (c *Client) SetTargetTemperature(ctx context.Context, ain string, temperature float64) error {
	param := tsoll(temperature)
	c.logger.Debug("setting target temperature", "ain", ain, "temperature", temperature, "tsoll", param)
	_, err := c.command(ctx, url.Values{
		"switchcmd": {"sethkrtsoll"},
		"ain":       {ain},
		"param":     {strconv.Itoa(param)},
	})
	return err
}

func tsoll(temperature float64) int {
	switch {
	case temperature == gateway.OffTemperature || temperature < 8:
		return tsollOff
	case temperature > 28:
		return tsollOn
	default:
		return int(math.Round(temperature * 2))
	}
}
