package rules

// A Thermostat is the local record of a device managed by the gateway. AIN is the gateway's identifier for the device.
type Thermostat struct {
	ID    int64
	AIN   string
	Name  string
	Rules []Rule
}

func (t Thermostat) String() string {
	return t.Name + " (AIN: '" + t.AIN + "')"
}
