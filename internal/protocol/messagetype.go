package protocol

import (
	"encoding/binary"

	"github.com/kstaniek/spa-gateway/internal/protoerr"
)

// MessageTypeKind is the stable wire discriminant for every known message,
// equal to the protocol's `message_type` byte.
type MessageTypeKind byte

const (
	KindNewClientClearToSend      MessageTypeKind = 0x00
	KindChannelAssignmentRequest  MessageTypeKind = 0x01
	KindChannelAssignmentResponse MessageTypeKind = 0x02
	KindChannelAssignmentAck      MessageTypeKind = 0x03
	KindExistingClientRequest     MessageTypeKind = 0x04
	KindExistingClientResponse    MessageTypeKind = 0x05
	KindClearToSend               MessageTypeKind = 0x06
	KindNothingToSend             MessageTypeKind = 0x07
	KindToggleItemRequest         MessageTypeKind = 0x11
	KindStatusUpdate              MessageTypeKind = 0x13
	KindSetTemperatureRequest     MessageTypeKind = 0x20
	KindSetTimeRequest            MessageTypeKind = 0x21
	KindSettingsRequest           MessageTypeKind = 0x22
	KindFilterCycles              MessageTypeKind = 0x23
	KindInformationResponse       MessageTypeKind = 0x24
	KindPreferencesResponse       MessageTypeKind = 0x26
	KindSetPreferenceRequest      MessageTypeKind = 0x27
	KindFaultLogResponse          MessageTypeKind = 0x28
	KindChangeSetupRequest        MessageTypeKind = 0x2A
	KindGfciTestResponse          MessageTypeKind = 0x2B
	KindLockRequest               MessageTypeKind = 0x2D
	KindConfigurationResponse     MessageTypeKind = 0x2E
	KindSettings0x04Response      MessageTypeKind = 0x2F
	KindWifiModuleConfigResponse  MessageTypeKind = 0x94
	KindToggleTestSettingRequest  MessageTypeKind = 0xE0
)

// MessageType is the closed sum over every known protocol message. Exactly
// one of the typed fields is meaningful, selected by Kind.
type MessageType struct {
	Kind MessageTypeKind

	// ChannelAssignmentRequest / part of the handshake.
	DeviceType byte
	ClientHash uint16

	// ChannelAssignmentResponse.
	Channel Channel

	// ExistingClientResponse / Settings0x04Response: opaque bytes with no
	// further known structure.
	Unknown []byte

	// ToggleItemRequest.
	ItemCode ItemCode
	Dummy1   byte

	// StatusUpdate.
	Status StatusUpdateMessage

	// SetTemperatureRequest.
	Temperature SetTemperature

	// SetTimeRequest.
	Time ProtocolTime

	// SettingsRequest.
	SettingsRequest SettingsRequestMessage

	// FilterCycles.
	Cycles []FilterCycle

	// InformationResponse.
	Information InformationResponseMessage

	// PreferencesResponse.
	Preferences PreferencesResponseMessage

	// SetPreferenceRequest.
	SetPreference SetPreferenceMessage

	// FaultLogResponse.
	Fault FaultResponseMessage

	// ChangeSetupRequest.
	SetupNumber byte

	// GfciTestResponse.
	GfciResult ParsedEnum[GfciTestResult]

	// LockRequest.
	Lock LockRequestMessage

	// ConfigurationResponse.
	Configuration ConfigurationResponseMessage

	// WifiModuleConfigurationResponse.
	Mac [6]byte

	// ToggleTestSettingRequest.
	ToggleTest ToggleTestMessage
}

// ItemCode identifies a togglable spa item.
type ItemCode byte

const (
	ItemNormalOperation   ItemCode = 0x01
	ItemClearNotification ItemCode = 0x03
	ItemPump1             ItemCode = 0x04
	ItemPump2             ItemCode = 0x05
	ItemPump3             ItemCode = 0x06
	ItemPump4             ItemCode = 0x07
	ItemPump5             ItemCode = 0x08
	ItemPump6             ItemCode = 0x09
	ItemBlower            ItemCode = 0x0C
	ItemMister            ItemCode = 0x0E
	ItemLight1            ItemCode = 0x11
	ItemLight2            ItemCode = 0x12
	ItemAux1              ItemCode = 0x16
	ItemAux2              ItemCode = 0x17
	ItemSoakMode          ItemCode = 0x1D
	ItemHoldMode          ItemCode = 0x3C
	ItemTemperatureRange  ItemCode = 0x50
	ItemHeatMode          ItemCode = 0x51
)

// GfciTestResult is the outcome of a GFCI self-test.
type GfciTestResult byte

const (
	GfciFail GfciTestResult = 0x0
	GfciPass GfciTestResult = 0x1
)

func gfciTestResultFromByte(b byte) (GfciTestResult, bool) {
	switch b {
	case 0x0:
		return GfciFail, true
	case 0x1:
		return GfciPass, true
	default:
		return GfciFail, false
	}
}

// LockRequestMessage requests locking/unlocking settings or the panel.
type LockRequestMessage byte

const (
	LockSettings   LockRequestMessage = 0x01
	LockPanel      LockRequestMessage = 0x02
	UnlockSettings LockRequestMessage = 0x03
	UnlockPanel    LockRequestMessage = 0x04
)

// ToggleTestMessage selects a diagnostic toggle-test mode.
type ToggleTestMessage byte

const (
	ToggleSensorABTemperatures ToggleTestMessage = 0x03
	ToggleTimeouts             ToggleTestMessage = 0x04
	ToggleTempLimits           ToggleTestMessage = 0x05
)

// SettingsRequestMessage is the closed sum of settings-fetch requests,
// including the Settings0x04 descriptor the topside panel fetches during
// its startup handshake.
type SettingsRequestMessage struct {
	Kind     SettingsRequestKind
	EntryNum byte // only meaningful for FaultLog
}

type SettingsRequestKind int

const (
	SettingsConfiguration SettingsRequestKind = iota
	SettingsFilterCycles
	SettingsInformation
	SettingsPreferences
	SettingsFaultLog
	SettingsGfciTest
	SettingsSettings0x04
)

func (s SettingsRequestMessage) encode() []byte {
	switch s.Kind {
	case SettingsConfiguration:
		return []byte{0x00, 0x00, 0x01}
	case SettingsFilterCycles:
		return []byte{0x01, 0x00, 0x00}
	case SettingsInformation:
		return []byte{0x02, 0x00, 0x00}
	case SettingsPreferences:
		return []byte{0x08, 0x00, 0x00}
	case SettingsFaultLog:
		return []byte{0x20, s.EntryNum, 0x00}
	case SettingsGfciTest:
		return []byte{0x80, 0x00, 0x00}
	case SettingsSettings0x04:
		return []byte{0x04, 0x00, 0x00}
	default:
		return nil
	}
}

// decodeSettingsRequest is the inverse of encode, used by the mainboard
// engine to classify which settings a client is asking for.
func decodeSettingsRequest(p []byte) (SettingsRequestMessage, error) {
	if len(p) < 3 {
		return SettingsRequestMessage{}, protoerr.ErrInvalidPayloadLength
	}
	switch p[0] {
	case 0x00:
		return SettingsRequestMessage{Kind: SettingsConfiguration}, nil
	case 0x01:
		return SettingsRequestMessage{Kind: SettingsFilterCycles}, nil
	case 0x02:
		return SettingsRequestMessage{Kind: SettingsInformation}, nil
	case 0x08:
		return SettingsRequestMessage{Kind: SettingsPreferences}, nil
	case 0x20:
		return SettingsRequestMessage{Kind: SettingsFaultLog, EntryNum: p[1]}, nil
	case 0x80:
		return SettingsRequestMessage{Kind: SettingsGfciTest}, nil
	case 0x04:
		return SettingsRequestMessage{Kind: SettingsSettings0x04}, nil
	default:
		return SettingsRequestMessage{}, protoerr.ErrInvalidPayloadLength
	}
}

// FilterCycle describes one scheduled filtration cycle.
type FilterCycle struct {
	Enabled  bool
	StartAt  uint16 // minutes since midnight
	Duration uint16 // minutes
}

// NumFilterCycles fixes the filtration cycle count this build encodes and
// decodes: filter cycle 1 and 2, matching FilterMode's two independently
// schedulable cycles.
const NumFilterCycles = 2

func encodeFilterCycles(cycles []FilterCycle) []byte {
	out := make([]byte, 0, NumFilterCycles*5)
	for n := 0; n < NumFilterCycles; n++ {
		var c FilterCycle
		if n < len(cycles) {
			c = cycles[n]
		}
		out = append(out, boolAsByte(c.Enabled))
		var buf [2]byte
		binary.BigEndian.PutUint16(buf[:], c.StartAt)
		out = append(out, buf[:]...)
		binary.BigEndian.PutUint16(buf[:], c.Duration)
		out = append(out, buf[:]...)
	}
	return out
}

func decodeFilterCycles(p []byte) ([]FilterCycle, error) {
	if len(p) < NumFilterCycles*5 {
		return nil, protoerr.ErrInvalidPayloadLength
	}
	out := make([]FilterCycle, NumFilterCycles)
	for n := 0; n < NumFilterCycles; n++ {
		base := n * 5
		enabled, _ := BoolFromByte(p[base])
		out[n] = FilterCycle{
			Enabled:  enabled,
			StartAt:  binary.BigEndian.Uint16(p[base+1 : base+3]),
			Duration: binary.BigEndian.Uint16(p[base+3 : base+5]),
		}
	}
	return out, nil
}

// SoftwareVersion is the mainboard firmware version tuple.
type SoftwareVersion struct {
	Version [5]byte
}

// InformationResponseMessage answers SettingsRequest(Information).
type InformationResponseMessage struct {
	SoftwareVersion           SoftwareVersion
	SystemModelNumber         string
	CurrentConfigurationSetup byte
	ConfigurationSignature    [4]byte
	HeaterVoltage             ParsedEnum[HeaterVoltage]
	HeaterType                ParsedEnum[HeaterType]
	DipSwitchSettings         uint16
}

type HeaterVoltage byte

const HeaterVoltage240 HeaterVoltage = 0x01

type HeaterType byte

const HeaterTypeStandard HeaterType = 0x0A

func (m InformationResponseMessage) encode() []byte {
	out := make([]byte, 0, 32)
	out = append(out, m.SoftwareVersion.Version[:]...)
	model := []byte(m.SystemModelNumber)
	if len(model) > 255 {
		model = model[:255]
	}
	out = append(out, byte(len(model)))
	out = append(out, model...)
	out = append(out, m.CurrentConfigurationSetup)
	out = append(out, m.ConfigurationSignature[:]...)
	out = append(out, m.HeaterVoltage.AsRaw())
	out = append(out, m.HeaterType.AsRaw())
	var dip [2]byte
	binary.BigEndian.PutUint16(dip[:], m.DipSwitchSettings)
	out = append(out, dip[:]...)
	return out
}

func decodeInformationResponse(p []byte) (InformationResponseMessage, error) {
	if len(p) < 6 {
		return InformationResponseMessage{}, protoerr.ErrInvalidPayloadLength
	}
	var m InformationResponseMessage
	copy(m.SoftwareVersion.Version[:], p[:5])
	i := 5
	modelLen := int(p[i])
	i++
	if len(p) < i+modelLen+1+4+2+2 {
		return InformationResponseMessage{}, protoerr.ErrInvalidPayloadLength
	}
	m.SystemModelNumber = string(p[i : i+modelLen])
	i += modelLen
	m.CurrentConfigurationSetup = p[i]
	i++
	copy(m.ConfigurationSignature[:], p[i:i+4])
	i += 4
	m.HeaterVoltage = NewParsedEnum(p[i], HeaterVoltageFromByte)
	i++
	m.HeaterType = NewParsedEnum(p[i], HeaterTypeFromByte)
	i++
	m.DipSwitchSettings = binary.BigEndian.Uint16(p[i : i+2])
	return m, nil
}

// PreferencesResponseMessage answers SettingsRequest(Preferences).
type PreferencesResponseMessage struct {
	ReminderSet              ParsedEnum[bool]
	TemperatureScale         ParsedEnum[TemperatureScale]
	ClockMode                ParsedEnum[ClockMode]
	CleanupCycle             CleanupCycle
	DolphinAddress           byte
	M8ArtificialIntelligence ParsedEnum[bool]
}

type ClockMode byte

const (
	ClockHour12 ClockMode = 0
	ClockHour24 ClockMode = 1
)

// CleanupCycle describes the secondary filtration cleanup window.
type CleanupCycle struct {
	Enabled  bool
	Duration uint16 // minutes
}

// EncodeByte encodes CleanupCycle to the single-byte wire form: 0 when
// enabled (continuous), else the duration in 30-minute increments.
func (c CleanupCycle) EncodeByte() byte {
	if c.Enabled {
		return 0
	}
	return byte((c.Duration + 15) / 30)
}

func (m PreferencesResponseMessage) encode() []byte {
	return []byte{
		boolByte(m.ReminderSet),
		m.TemperatureScale.AsRaw(),
		m.ClockMode.AsRaw(),
		m.CleanupCycle.EncodeByte(),
		m.DolphinAddress,
		boolByte(m.M8ArtificialIntelligence),
	}
}

func boolByte(p ParsedEnum[bool]) byte { return p.AsRaw() }

func decodePreferencesResponse(p []byte) (PreferencesResponseMessage, error) {
	if len(p) < 6 {
		return PreferencesResponseMessage{}, protoerr.ErrInvalidPayloadLength
	}
	return PreferencesResponseMessage{
		ReminderSet:              NewParsedEnum(p[0], BoolFromByte),
		TemperatureScale:         NewParsedEnum(p[1], TemperatureScaleFromByte),
		ClockMode:                NewParsedEnum(p[2], ClockModeFromByte),
		CleanupCycle:             cleanupCycleFromByte(p[3]),
		DolphinAddress:           p[4],
		M8ArtificialIntelligence: NewParsedEnum(p[5], BoolFromByte),
	}, nil
}

// cleanupCycleFromByte is the inverse of CleanupCycle.EncodeByte: 0 means
// continuous (Enabled), otherwise the byte is a count of 30-minute slots.
func cleanupCycleFromByte(b byte) CleanupCycle {
	if b == 0 {
		return CleanupCycle{Enabled: true}
	}
	return CleanupCycle{Duration: uint16(b) * 30}
}

// SetPreferenceMessage is the closed sum of preference-change requests.
type SetPreferenceMessage struct {
	Kind             SetPreferenceKind
	Reminders        bool
	TemperatureScale TemperatureScale
	ClockMode        ClockMode
	CleanupCycle     CleanupCycle
	DolphinAddress   byte
	M8AI             bool
}

type SetPreferenceKind int

const (
	SetPrefReminders SetPreferenceKind = iota
	SetPrefTemperatureScale
	SetPrefClockMode
	SetPrefCleanupCycle
	SetPrefDolphinAddress
	SetPrefM8ArtificialIntelligence
)

func (m SetPreferenceMessage) encode() []byte {
	switch m.Kind {
	case SetPrefReminders:
		return []byte{0x00, boolAsByte(m.Reminders)}
	case SetPrefTemperatureScale:
		return []byte{0x01, m.TemperatureScale.rawByte()}
	case SetPrefClockMode:
		return []byte{0x02, byte(m.ClockMode)}
	case SetPrefCleanupCycle:
		return []byte{0x03, m.CleanupCycle.EncodeByte()}
	case SetPrefDolphinAddress:
		return []byte{0x04, m.DolphinAddress}
	case SetPrefM8ArtificialIntelligence:
		return []byte{0x06, boolAsByte(m.M8AI)}
	default:
		return nil
	}
}

func decodeSetPreference(p []byte) (SetPreferenceMessage, error) {
	if len(p) < 2 {
		return SetPreferenceMessage{}, protoerr.ErrInvalidPayloadLength
	}
	switch p[0] {
	case 0x00:
		v, _ := BoolFromByte(p[1])
		return SetPreferenceMessage{Kind: SetPrefReminders, Reminders: v}, nil
	case 0x01:
		scale, _ := TemperatureScaleFromByte(p[1])
		return SetPreferenceMessage{Kind: SetPrefTemperatureScale, TemperatureScale: scale}, nil
	case 0x02:
		return SetPreferenceMessage{Kind: SetPrefClockMode, ClockMode: ClockMode(p[1])}, nil
	case 0x03:
		return SetPreferenceMessage{Kind: SetPrefCleanupCycle, CleanupCycle: cleanupCycleFromByte(p[1])}, nil
	case 0x04:
		return SetPreferenceMessage{Kind: SetPrefDolphinAddress, DolphinAddress: p[1]}, nil
	case 0x06:
		v, _ := BoolFromByte(p[1])
		return SetPreferenceMessage{Kind: SetPrefM8ArtificialIntelligence, M8AI: v}, nil
	default:
		return SetPreferenceMessage{}, protoerr.ErrInvalidPayloadLength
	}
}

func boolAsByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// FaultCode enumerates the documented spa fault conditions, each with a
// human-readable message.
type FaultCode byte

const (
	FaultSensorsOutOfSync               FaultCode = 15
	FaultWaterFlowLow                   FaultCode = 16
	FaultWaterFlowFailed                FaultCode = 17
	FaultSettingsReset1                 FaultCode = 18
	FaultPrimingMode                    FaultCode = 19
	FaultClockFailed                    FaultCode = 20
	FaultSettingsReset2                 FaultCode = 21
	FaultProgramMemoryFailure           FaultCode = 22
	FaultSensorsOutOfSyncCallForService FaultCode = 26
	FaultHeaterIsDry                    FaultCode = 27
	FaultHeaterMayBeDry                 FaultCode = 28
	FaultWaterTooHot                    FaultCode = 29
	FaultHeaterTooHot                   FaultCode = 30
	FaultSensorAFault                   FaultCode = 31
	FaultSensorBFault                   FaultCode = 32
	FaultPumpMayBeStuckOn               FaultCode = 34
	FaultHotFault                       FaultCode = 35
	FaultGfciTestFailed                 FaultCode = 36
	FaultStandbyMode                    FaultCode = 37
)

var faultMessages = map[FaultCode]string{
	FaultSensorsOutOfSync:               "sensors are out of sync",
	FaultWaterFlowLow:                   "the water flow is low",
	FaultWaterFlowFailed:                "the water flow has failed",
	FaultSettingsReset1:                 "the settings have been reset",
	FaultPrimingMode:                    "priming mode",
	FaultClockFailed:                    "the clock has failed",
	FaultSettingsReset2:                 "the settings have been reset",
	FaultProgramMemoryFailure:           "program memory failure",
	FaultSensorsOutOfSyncCallForService: "sensors are out of sync -- call for service",
	FaultHeaterIsDry:                    "the heater is dry",
	FaultHeaterMayBeDry:                 "the heater may be dry",
	FaultWaterTooHot:                    "the water is too hot",
	FaultHeaterTooHot:                   "the heater is too hot",
	FaultSensorAFault:                   "sensor A fault",
	FaultSensorBFault:                   "sensor B fault",
	FaultPumpMayBeStuckOn:               "a pump may be stuck on",
	FaultHotFault:                       "hot fault",
	FaultGfciTestFailed:                 "the GFCI test failed",
	FaultStandbyMode:                    "standby mode (hold mode)",
}

func (f FaultCode) Error() string {
	if msg, ok := faultMessages[f]; ok {
		return msg
	}
	return "unknown fault"
}

func faultCodeFromByte(b byte) (FaultCode, bool) {
	_, ok := faultMessages[FaultCode(b)]
	return FaultCode(b), ok
}

// FaultResponseMessage answers SettingsRequest(FaultLog).
type FaultResponseMessage struct {
	TotalEntries byte
	EntryNumber  byte
	FaultCode    ParsedEnum[FaultCode]
}

func (m FaultResponseMessage) encode() []byte {
	return []byte{m.TotalEntries, m.EntryNumber, m.FaultCode.AsRaw()}
}

func decodeFaultResponse(p []byte) (FaultResponseMessage, error) {
	if len(p) < 3 {
		return FaultResponseMessage{}, protoerr.ErrInvalidPayloadLength
	}
	return FaultResponseMessage{
		TotalEntries: p[0],
		EntryNumber:  p[1],
		FaultCode:    NewParsedEnum(p[2], faultCodeFromByte),
	}, nil
}

// PumpConfig describes one pump's presence and speed count, packed into a
// single wire byte as 0 (absent) or the speed count (1 or 2) otherwise.
type PumpConfig struct {
	Present   bool
	NumSpeeds byte
}

func (p PumpConfig) rawByte() byte {
	if !p.Present {
		return 0
	}
	return p.NumSpeeds
}

func pumpConfigFromByte(b byte) (PumpConfig, bool) {
	if b == 0 {
		return PumpConfig{}, true
	}
	if b == 1 || b == 2 {
		return PumpConfig{Present: true, NumSpeeds: b}, true
	}
	return PumpConfig{}, false
}

// NumAuxStatus fixes the aux-relay slot count, matching ItemAux1/ItemAux2.
const NumAuxStatus = 2

// ConfigurationResponseMessage answers SettingsRequest(Configuration).
type ConfigurationResponseMessage struct {
	Pumps              []ParsedEnum[PumpConfig]
	HasLights          []ParsedEnum[bool]
	HasBlower          bool
	HasCirculationPump bool
	HasAux             []ParsedEnum[bool]
	HasMister          ParsedEnum[bool]
}

func (m ConfigurationResponseMessage) encode() []byte {
	out := make([]byte, 0, 16)
	for _, p := range m.Pumps {
		out = append(out, p.AsRaw())
	}
	for _, l := range m.HasLights {
		out = append(out, l.AsRaw())
	}
	out = append(out, boolAsByte(m.HasBlower), boolAsByte(m.HasCirculationPump))
	for _, a := range m.HasAux {
		out = append(out, a.AsRaw())
	}
	out = append(out, m.HasMister.AsRaw())
	return out
}

func decodeConfigurationResponse(p []byte) (ConfigurationResponseMessage, error) {
	want := NumPumpStatus + NumLightStatus + 2 + NumAuxStatus + 1
	if len(p) < want {
		return ConfigurationResponseMessage{}, protoerr.ErrInvalidPayloadLength
	}
	out := ConfigurationResponseMessage{
		Pumps:     make([]ParsedEnum[PumpConfig], NumPumpStatus),
		HasLights: make([]ParsedEnum[bool], NumLightStatus),
		HasAux:    make([]ParsedEnum[bool], NumAuxStatus),
	}
	idx := 0
	for n := 0; n < NumPumpStatus; n++ {
		out.Pumps[n] = NewParsedEnum(p[idx], pumpConfigFromByte)
		idx++
	}
	for n := 0; n < NumLightStatus; n++ {
		out.HasLights[n] = NewParsedEnum(p[idx], BoolFromByte)
		idx++
	}
	out.HasBlower, _ = BoolFromByte(p[idx])
	idx++
	out.HasCirculationPump, _ = BoolFromByte(p[idx])
	idx++
	for n := 0; n < NumAuxStatus; n++ {
		out.HasAux[n] = NewParsedEnum(p[idx], BoolFromByte)
		idx++
	}
	out.HasMister = NewParsedEnum(p[idx], BoolFromByte)
	return out, nil
}

// StatusUpdateMessage is the periodic broadcast summarizing device state.
// Only V1 is encodable; V2/V3 are reserved and return ErrNotSupported.
type StatusUpdateMessage struct {
	V1 StatusUpdateResponseV1
	V2 *StatusUpdateResponseV2
	V3 *StatusUpdateResponseV3
}

type StatusUpdateResponseV2 struct{}
type StatusUpdateResponseV3 struct{}

// StatusUpdateResponseV1 is the fully specified v1 status payload.
type StatusUpdateResponseV1 struct {
	SpaState           ParsedEnum[SpaState]
	InitMode           ParsedEnum[InitializationMode]
	CurrentTemperature *ProtocolTemperature
	Time               ProtocolTime
	HeatingMode        ParsedEnum[HeatingMode]
	ReminderType       ParsedEnum[ReminderType]
	HoldTimer          *ProtocolTime
	FilterMode         ParsedEnum[FilterMode]
	PanelLocked        bool
	TemperatureRange   TemperatureRange
	ClockMode          ParsedEnum[ClockMode]
	NeedsHeat          bool
	HeatingState       ParsedEnum[HeatingState]
	MisterOn           ParsedEnum[bool]
	SetTemperature     ProtocolTemperature
	PumpStatus         []ParsedEnum[PumpStatus]
	CirculationPumpOn  ParsedEnum[bool]
	BlowerStatus       ParsedEnum[RelayStatus]
	LightStatus        []ParsedEnum[RelayStatus]
	ReminderSet        ParsedEnum[bool]
	NotificationSet    ParsedEnum[bool]
}

type SpaState byte

const (
	SpaRunning      SpaState = 0x00
	SpaInitializing SpaState = 0x01
	SpaHoldMode     SpaState = 0x05
	SpaAbTempsOn    SpaState = 0x14
	SpaTestMode     SpaState = 0x17
)

type InitializationMode byte

const (
	InitIdle              InitializationMode = 0x00
	InitPrimingMode       InitializationMode = 0x01
	InitPostSettingsReset InitializationMode = 0x02
	InitReminder          InitializationMode = 0x03
	InitStage1            InitializationMode = 0x04
	InitStage2            InitializationMode = 0x42
	InitStage3            InitializationMode = 0x05
)

type HeatingMode byte

const (
	HeatingReady       HeatingMode = 0
	HeatingRest        HeatingMode = 1
	HeatingReadyInRest HeatingMode = 3
)

type ReminderType byte

const (
	ReminderNone           ReminderType = 0x00
	ReminderCleanFilter    ReminderType = 0x04
	ReminderCheckPhLevel   ReminderType = 0x0A
	ReminderCheckSanitizer ReminderType = 0x09
)

type FilterMode byte

const (
	FilterOff        FilterMode = 0
	FilterCycle1     FilterMode = 1
	FilterCycle2     FilterMode = 2
	FilterCycle1And2 FilterMode = 3
)

type TemperatureRange byte

const (
	RangeLow  TemperatureRange = 0
	RangeHigh TemperatureRange = 1
)

type HeatingState byte

const (
	HeatingOff         HeatingState = 0
	HeatingHeating     HeatingState = 1
	HeatingHeatWaiting HeatingState = 2
)

type PumpStatus byte

const (
	PumpOff  PumpStatus = 0
	PumpLow  PumpStatus = 1
	PumpHigh PumpStatus = 2
)

type RelayStatus byte

const (
	RelayOff RelayStatus = 0
	RelayOn  RelayStatus = 3
)

// NumPumpStatus and NumLightStatus fix the pump/light slot counts this
// build encodes and decodes, matching the ItemCode enumeration's
// Pump1..6/Light1/2.
const (
	NumPumpStatus  = 6
	NumLightStatus = 2
)

func (v StatusUpdateResponseV1) encode() []byte {
	out := make([]byte, 0, 32)
	out = append(out, v.SpaState.AsRaw(), v.InitMode.AsRaw())
	if v.CurrentTemperature != nil {
		out = append(out, v.CurrentTemperature.RawValue)
	} else {
		out = append(out, 0xFF)
	}
	var timeRaw [2]byte
	binary.BigEndian.PutUint16(timeRaw[:], v.Time.AsRaw())
	out = append(out, timeRaw[:]...)
	out = append(out, v.HeatingMode.AsRaw(), v.ReminderType.AsRaw())

	var sensorA, sensorB byte
	if parsed, ok := v.SpaState.Value(); ok && parsed == SpaAbTempsOn {
		if v.HoldTimer != nil {
			sensorA = v.HoldTimer.ToMinutes()
		}
		sensorB = v.SetTemperature.RawValue
		if v.CurrentTemperature != nil {
			sensorB = v.CurrentTemperature.RawValue
		}
	}
	out = append(out, sensorA, sensorB)

	out = append(out, v.FilterMode.AsRaw(), boolAsByte(v.PanelLocked))
	out = append(out, byte(v.TemperatureRange), v.ClockMode.AsRaw())
	out = append(out, boolAsByte(v.NeedsHeat), v.HeatingState.AsRaw())
	out = append(out, v.MisterOn.AsRaw(), v.SetTemperature.RawValue)
	for _, p := range v.PumpStatus {
		out = append(out, p.AsRaw())
	}
	out = append(out, v.CirculationPumpOn.AsRaw(), v.BlowerStatus.AsRaw())
	for _, l := range v.LightStatus {
		out = append(out, l.AsRaw())
	}
	out = append(out, v.ReminderSet.AsRaw(), v.NotificationSet.AsRaw())
	return out
}

func decodeStatusUpdateV1(p []byte) (StatusUpdateResponseV1, error) {
	// 17 bytes through set-temperature, then the pump block, circulation
	// pump + blower, the light block, and reminder + notification flags.
	want := 17 + NumPumpStatus + 2 + NumLightStatus + 2
	if len(p) < want {
		return StatusUpdateResponseV1{}, protoerr.ErrInvalidPayloadLength
	}
	i := 0
	v := StatusUpdateResponseV1{}
	v.SpaState = NewParsedEnum(p[i], SpaStateFromByte)
	i++
	v.InitMode = NewParsedEnum(p[i], InitializationModeFromByte)
	i++
	if p[i] != 0xFF {
		v.CurrentTemperature = &ProtocolTemperature{RawValue: p[i]}
	}
	i++
	v.Time = ProtocolTimeFromRaw(binary.BigEndian.Uint16(p[i : i+2]))
	i += 2
	v.HeatingMode = NewParsedEnum(p[i], HeatingModeFromByte)
	i++
	v.ReminderType = NewParsedEnum(p[i], ReminderTypeFromByte)
	i++
	sensorA, sensorB := p[i], p[i+1]
	i += 2
	if parsed, ok := v.SpaState.Value(); ok && parsed == SpaAbTempsOn {
		t := ProtocolTime{Minute: sensorA}
		v.HoldTimer = &t
		v.CurrentTemperature = &ProtocolTemperature{RawValue: sensorB}
	}
	v.FilterMode = NewParsedEnum(p[i], FilterModeFromByte)
	i++
	v.PanelLocked, _ = BoolFromByte(p[i])
	i++
	v.TemperatureRange = TemperatureRange(p[i])
	i++
	v.ClockMode = NewParsedEnum(p[i], ClockModeFromByte)
	i++
	v.NeedsHeat, _ = BoolFromByte(p[i])
	i++
	v.HeatingState = NewParsedEnum(p[i], HeatingStateFromByte)
	i++
	v.MisterOn = NewParsedEnum(p[i], BoolFromByte)
	i++
	v.SetTemperature = ProtocolTemperature{RawValue: p[i]}
	i++
	v.PumpStatus = make([]ParsedEnum[PumpStatus], NumPumpStatus)
	for n := 0; n < NumPumpStatus; n++ {
		v.PumpStatus[n] = NewParsedEnum(p[i], PumpStatusFromByte)
		i++
	}
	v.CirculationPumpOn = NewParsedEnum(p[i], BoolFromByte)
	i++
	v.BlowerStatus = NewParsedEnum(p[i], RelayStatusFromByte)
	i++
	v.LightStatus = make([]ParsedEnum[RelayStatus], NumLightStatus)
	for n := 0; n < NumLightStatus; n++ {
		v.LightStatus[n] = NewParsedEnum(p[i], RelayStatusFromByte)
		i++
	}
	v.ReminderSet = NewParsedEnum(p[i], BoolFromByte)
	i++
	v.NotificationSet = NewParsedEnum(p[i], BoolFromByte)
	return v, nil
}

// EncodePayload serializes the MessageType's payload. V2/V3 StatusUpdate
// payloads are not supported and fail explicitly rather than silently
// truncating.
func (mt MessageType) EncodePayload() ([]byte, error) {
	switch mt.Kind {
	case KindNewClientClearToSend, KindChannelAssignmentAck, KindExistingClientRequest,
		KindClearToSend, KindNothingToSend:
		return []byte{}, nil
	case KindChannelAssignmentRequest:
		out := make([]byte, 3)
		out[0] = mt.DeviceType
		binary.BigEndian.PutUint16(out[1:], mt.ClientHash)
		return out, nil
	case KindChannelAssignmentResponse:
		out := make([]byte, 3)
		out[0] = mt.Channel.Byte()
		binary.BigEndian.PutUint16(out[1:], mt.ClientHash)
		return out, nil
	case KindExistingClientResponse, KindSettings0x04Response:
		return mt.Unknown, nil
	case KindToggleItemRequest:
		return []byte{byte(mt.ItemCode), mt.Dummy1}, nil
	case KindStatusUpdate:
		if mt.Status.V2 != nil || mt.Status.V3 != nil {
			return nil, protoerr.ErrNotSupported
		}
		return mt.Status.V1.encode(), nil
	case KindSetTemperatureRequest:
		return []byte{mt.Temperature.RawValue}, nil
	case KindSetTimeRequest:
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, mt.Time.AsRaw())
		return out, nil
	case KindSettingsRequest:
		return mt.SettingsRequest.encode(), nil
	case KindFilterCycles:
		return encodeFilterCycles(mt.Cycles), nil
	case KindInformationResponse:
		return mt.Information.encode(), nil
	case KindPreferencesResponse:
		return mt.Preferences.encode(), nil
	case KindSetPreferenceRequest:
		return mt.SetPreference.encode(), nil
	case KindFaultLogResponse:
		return mt.Fault.encode(), nil
	case KindChangeSetupRequest:
		return []byte{mt.SetupNumber}, nil
	case KindGfciTestResponse:
		return []byte{mt.GfciResult.AsRaw()}, nil
	case KindLockRequest:
		return []byte{byte(mt.Lock)}, nil
	case KindConfigurationResponse:
		return mt.Configuration.encode(), nil
	case KindWifiModuleConfigResponse:
		return mt.Mac[:], nil
	case KindToggleTestSettingRequest:
		return []byte{byte(mt.ToggleTest)}, nil
	default:
		return nil, protoerr.ErrNotSupported
	}
}

// ToMessage encodes the MessageType onto the given channel, producing a
// wire-ready Message.
func (mt MessageType) ToMessage(channel Channel) (Message, error) {
	payload, err := mt.EncodePayload()
	if err != nil {
		return Message{}, err
	}
	return NewMessage(channel, byte(mt.Kind), payload), nil
}

// DecodeMessageType parses a Message's payload according to its
// MessageType discriminant. Every variant exercised by either end of the
// protocol (mainboard decoding client requests, topside decoding mainboard
// responses) has a decode path; anything else is rejected with
// ErrNotSupported, which the caller is expected to treat as
// ClientUnsupported.
func DecodeMessageType(m Message) (MessageType, error) {
	kind := MessageTypeKind(m.MessageType)
	p := m.Payload
	switch kind {
	case KindNewClientClearToSend, KindChannelAssignmentAck, KindExistingClientRequest,
		KindClearToSend, KindNothingToSend:
		return MessageType{Kind: kind}, nil
	case KindChannelAssignmentRequest:
		if len(p) < 3 {
			return MessageType{}, protoerr.ErrInvalidPayloadLength
		}
		return MessageType{Kind: kind, DeviceType: p[0], ClientHash: binary.BigEndian.Uint16(p[1:3])}, nil
	case KindChannelAssignmentResponse:
		if len(p) < 3 {
			return MessageType{}, protoerr.ErrInvalidPayloadLength
		}
		return MessageType{
			Kind:       kind,
			Channel:    ChannelFromByte(p[0]),
			ClientHash: binary.BigEndian.Uint16(p[1:3]),
		}, nil
	case KindExistingClientResponse, KindSettings0x04Response:
		return MessageType{Kind: kind, Unknown: append([]byte(nil), p...)}, nil
	case KindToggleItemRequest:
		if len(p) < 2 {
			return MessageType{}, protoerr.ErrInvalidPayloadLength
		}
		return MessageType{Kind: kind, ItemCode: ItemCode(p[0]), Dummy1: p[1]}, nil
	case KindSetTemperatureRequest:
		if len(p) < 1 {
			return MessageType{}, protoerr.ErrInvalidPayloadLength
		}
		return MessageType{Kind: kind, Temperature: SetTemperature{RawValue: p[0]}}, nil
	case KindSetTimeRequest:
		if len(p) < 2 {
			return MessageType{}, protoerr.ErrInvalidPayloadLength
		}
		return MessageType{Kind: kind, Time: ProtocolTimeFromRaw(binary.BigEndian.Uint16(p))}, nil
	case KindChangeSetupRequest:
		if len(p) < 1 {
			return MessageType{}, protoerr.ErrInvalidPayloadLength
		}
		return MessageType{Kind: kind, SetupNumber: p[0]}, nil
	case KindGfciTestResponse:
		if len(p) < 1 {
			return MessageType{}, protoerr.ErrInvalidPayloadLength
		}
		return MessageType{Kind: kind, GfciResult: NewParsedEnum(p[0], gfciTestResultFromByte)}, nil
	case KindLockRequest:
		if len(p) < 1 {
			return MessageType{}, protoerr.ErrInvalidPayloadLength
		}
		return MessageType{Kind: kind, Lock: LockRequestMessage(p[0])}, nil
	case KindWifiModuleConfigResponse:
		if len(p) < 6 {
			return MessageType{}, protoerr.ErrInvalidPayloadLength
		}
		var mac [6]byte
		copy(mac[:], p[:6])
		return MessageType{Kind: kind, Mac: mac}, nil
	case KindToggleTestSettingRequest:
		if len(p) < 1 {
			return MessageType{}, protoerr.ErrInvalidPayloadLength
		}
		return MessageType{Kind: kind, ToggleTest: ToggleTestMessage(p[0])}, nil
	case KindStatusUpdate:
		v1, err := decodeStatusUpdateV1(p)
		if err != nil {
			return MessageType{}, err
		}
		return MessageType{Kind: kind, Status: StatusUpdateMessage{V1: v1}}, nil
	case KindSettingsRequest:
		req, err := decodeSettingsRequest(p)
		if err != nil {
			return MessageType{}, err
		}
		return MessageType{Kind: kind, SettingsRequest: req}, nil
	case KindFilterCycles:
		cycles, err := decodeFilterCycles(p)
		if err != nil {
			return MessageType{}, err
		}
		return MessageType{Kind: kind, Cycles: cycles}, nil
	case KindInformationResponse:
		info, err := decodeInformationResponse(p)
		if err != nil {
			return MessageType{}, err
		}
		return MessageType{Kind: kind, Information: info}, nil
	case KindPreferencesResponse:
		prefs, err := decodePreferencesResponse(p)
		if err != nil {
			return MessageType{}, err
		}
		return MessageType{Kind: kind, Preferences: prefs}, nil
	case KindFaultLogResponse:
		fault, err := decodeFaultResponse(p)
		if err != nil {
			return MessageType{}, err
		}
		return MessageType{Kind: kind, Fault: fault}, nil
	case KindConfigurationResponse:
		cfg, err := decodeConfigurationResponse(p)
		if err != nil {
			return MessageType{}, err
		}
		return MessageType{Kind: kind, Configuration: cfg}, nil
	case KindSetPreferenceRequest:
		pref, err := decodeSetPreference(p)
		if err != nil {
			return MessageType{}, err
		}
		return MessageType{Kind: kind, SetPreference: pref}, nil
	default:
		return MessageType{}, protoerr.ErrNotSupported
	}
}
