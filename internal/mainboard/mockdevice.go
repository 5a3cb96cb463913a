package mainboard

import (
	"time"

	"github.com/kstaniek/spa-gateway/internal/protocol"
)

// MockDevice is a small fixed hot-tub model the engine dispatches
// SettingsRequest/StatusUpdate/ToggleItem traffic against, so the protocol
// engine has something concrete to arbitrate and answer.
type MockDevice struct {
	State SpaDeviceState

	Information   protocol.InformationResponseMessage
	Configuration protocol.ConfigurationResponseMessage
	Preferences   protocol.PreferencesResponseMessage
	Settings0x04  []byte
	FaultLog      []protocol.FaultResponseMessage

	CurrentTemperature protocol.ProtocolTemperature
	SetTemperature     protocol.ProtocolTemperature
	Time               protocol.ProtocolTime
	HeatingMode        protocol.HeatingMode
	PumpStatus         [protocol.NumPumpStatus]protocol.PumpStatus
	LightStatus        [protocol.NumLightStatus]protocol.RelayStatus
	CirculationPumpOn  bool
	BlowerStatus       protocol.RelayStatus
	PanelLocked        bool
}

// SpaDeviceState is the mock device's own coarse lifecycle, distinct from
// the wire-level SpaState enum (which it feeds into StatusUpdate).
type SpaDeviceState int

const (
	DeviceInitializing SpaDeviceState = iota
	DeviceRunning
)

// NewMockDevice constructs a plausible default device, initializing.
func NewMockDevice() *MockDevice {
	return &MockDevice{
		State: DeviceInitializing,
		Information: protocol.InformationResponseMessage{
			SystemModelNumber: "Mock Spa",
			HeaterVoltage:     protocol.NewParsedEnum(byte(protocol.HeaterVoltage240), protocol.HeaterVoltageFromByte),
			HeaterType:        protocol.NewParsedEnum(byte(protocol.HeaterTypeStandard), protocol.HeaterTypeFromByte),
		},
		Configuration: protocol.ConfigurationResponseMessage{
			Pumps: []protocol.ParsedEnum[protocol.PumpConfig]{
				protocol.Known(protocol.PumpConfig{Present: true, NumSpeeds: 2}, 2),
				protocol.Known(protocol.PumpConfig{Present: true, NumSpeeds: 1}, 1),
				protocol.Known(protocol.PumpConfig{}, 0),
				protocol.Known(protocol.PumpConfig{}, 0),
				protocol.Known(protocol.PumpConfig{}, 0),
				protocol.Known(protocol.PumpConfig{}, 0),
			},
			HasLights: []protocol.ParsedEnum[bool]{
				protocol.Known(true, 1),
				protocol.Known(false, 0),
			},
			HasBlower:          true,
			HasCirculationPump: true,
			HasAux: []protocol.ParsedEnum[bool]{
				protocol.Known(false, 0),
				protocol.Known(false, 0),
			},
			HasMister: protocol.Known(false, 0),
		},
		CurrentTemperature: protocol.ProtocolTemperature{RawValue: 80},
		SetTemperature:     protocol.ProtocolTemperature{RawValue: 100},
		Time:               protocol.ProtocolTime{Hour: 12, Minute: 0},
		HeatingMode:        protocol.HeatingReady,
		Settings0x04:       []byte{},
	}
}

// FinishInit transitions the device out of its startup phase; status
// broadcasts switch from SpaInitializing to SpaRunning, with HeatingMode
// HeatingReady.
func (d *MockDevice) FinishInit() {
	d.State = DeviceRunning
	d.HeatingMode = protocol.HeatingReady
}

// SpaState derives the wire-level SpaState for StatusUpdate from the
// device's own lifecycle state.
func (d *MockDevice) SpaState() protocol.SpaState {
	if d.State == DeviceInitializing {
		return protocol.SpaInitializing
	}
	return protocol.SpaRunning
}

// StatusUpdate builds the current StatusUpdateResponseV1 snapshot.
func (d *MockDevice) StatusUpdate() protocol.StatusUpdateResponseV1 {
	pumps := make([]protocol.ParsedEnum[protocol.PumpStatus], protocol.NumPumpStatus)
	for i, p := range d.PumpStatus {
		pumps[i] = protocol.Known(p, byte(p))
	}
	lights := make([]protocol.ParsedEnum[protocol.RelayStatus], protocol.NumLightStatus)
	for i, l := range d.LightStatus {
		lights[i] = protocol.Known(l, byte(l))
	}
	return protocol.StatusUpdateResponseV1{
		SpaState:           protocol.Known(d.SpaState(), byte(d.SpaState())),
		InitMode:           protocol.Known(protocol.InitIdle, byte(protocol.InitIdle)),
		CurrentTemperature: &d.CurrentTemperature,
		Time:               d.Time,
		HeatingMode:        protocol.Known(d.HeatingMode, byte(d.HeatingMode)),
		ReminderType:       protocol.Known(protocol.ReminderNone, byte(protocol.ReminderNone)),
		FilterMode:         protocol.Known(protocol.FilterOff, byte(protocol.FilterOff)),
		PanelLocked:        d.PanelLocked,
		TemperatureRange:   protocol.RangeHigh,
		ClockMode:          protocol.Known(protocol.ClockHour24, byte(protocol.ClockHour24)),
		NeedsHeat:          d.SetTemperature.RawValue > d.CurrentTemperature.RawValue,
		HeatingState:       protocol.Known(protocol.HeatingOff, byte(protocol.HeatingOff)),
		MisterOn:           protocol.Known(false, 0),
		SetTemperature:     d.SetTemperature,
		PumpStatus:         pumps,
		CirculationPumpOn:  protocol.Known(d.CirculationPumpOn, boolAsByte(d.CirculationPumpOn)),
		BlowerStatus:       protocol.Known(d.BlowerStatus, byte(d.BlowerStatus)),
		LightStatus:        lights,
		ReminderSet:        protocol.Known(false, 0),
		NotificationSet:    protocol.Known(false, 0),
	}
}

func boolAsByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// ApplyToggleItem updates the simulated model for a ToggleItemRequest so
// subsequent StatusUpdate broadcasts reflect the toggle.
func (d *MockDevice) ApplyToggleItem(item protocol.ItemCode) {
	switch item {
	case protocol.ItemPump1, protocol.ItemPump2, protocol.ItemPump3,
		protocol.ItemPump4, protocol.ItemPump5, protocol.ItemPump6:
		idx := int(item) - int(protocol.ItemPump1)
		if idx >= 0 && idx < len(d.PumpStatus) {
			if d.PumpStatus[idx] == protocol.PumpOff {
				d.PumpStatus[idx] = protocol.PumpLow
			} else {
				d.PumpStatus[idx] = protocol.PumpOff
			}
		}
	case protocol.ItemBlower:
		if d.BlowerStatus == protocol.RelayOff {
			d.BlowerStatus = protocol.RelayOn
		} else {
			d.BlowerStatus = protocol.RelayOff
		}
	case protocol.ItemLight1, protocol.ItemLight2:
		idx := int(item) - int(protocol.ItemLight1)
		if idx >= 0 && idx < len(d.LightStatus) {
			if d.LightStatus[idx] == protocol.RelayOff {
				d.LightStatus[idx] = protocol.RelayOn
			} else {
				d.LightStatus[idx] = protocol.RelayOff
			}
		}
	}
}

// ApplySetTemperature updates the target temperature.
func (d *MockDevice) ApplySetTemperature(t protocol.SetTemperature) {
	d.SetTemperature = protocol.ProtocolTemperature{RawValue: t.RawValue}
}

// ApplySetTime updates the device clock.
func (d *MockDevice) ApplySetTime(t protocol.ProtocolTime) {
	d.Time = t
}

// DefaultInitDelay is how long the engine waits from startup before
// firing InitFinished, when a daemon does not override init_delay.
const DefaultInitDelay = 3 * time.Second
