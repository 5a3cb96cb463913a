package protocol

import "testing"

func roundTrip(t *testing.T, channel Channel, mt MessageType) MessageType {
	t.Helper()
	msg, err := mt.ToMessage(channel)
	if err != nil {
		t.Fatalf("ToMessage: %v", err)
	}
	got, err := DecodeMessageType(msg)
	if err != nil {
		t.Fatalf("DecodeMessageType: %v", err)
	}
	return got
}

func TestChannelAssignmentHandshakeRoundTrip(t *testing.T) {
	req := MessageType{Kind: KindChannelAssignmentRequest, DeviceType: 0x02, ClientHash: 0xBEEF}
	got := roundTrip(t, MulticastRequest, req)
	if got.DeviceType != 0x02 || got.ClientHash != 0xBEEF {
		t.Fatalf("got %+v", got)
	}

	channel, ok := NewClientChannel(0)
	if !ok {
		t.Fatal("expected a valid client channel")
	}
	resp := MessageType{Kind: KindChannelAssignmentResponse, Channel: channel, ClientHash: 0xBEEF}
	got = roundTrip(t, MulticastRequest, resp)
	if !got.Channel.Equal(channel) || got.ClientHash != 0xBEEF {
		t.Fatalf("got %+v", got)
	}
}

func TestToggleItemRequestRoundTrip(t *testing.T) {
	channel, _ := NewClientChannel(0)
	mt := MessageType{Kind: KindToggleItemRequest, ItemCode: ItemPump1, Dummy1: 0x00}
	got := roundTrip(t, channel, mt)
	if got.ItemCode != ItemPump1 || got.Dummy1 != 0x00 {
		t.Fatalf("got %+v", got)
	}
}

func TestSetTemperatureRoundTrip(t *testing.T) {
	channel, _ := NewClientChannel(0)
	mt := MessageType{Kind: KindSetTemperatureRequest, Temperature: SetTemperature{RawValue: 100}}
	got := roundTrip(t, channel, mt)
	if got.Temperature.RawValue != 100 {
		t.Fatalf("got %+v", got)
	}
}

func TestSetTimeRoundTrip(t *testing.T) {
	channel, _ := NewClientChannel(0)
	mt := MessageType{Kind: KindSetTimeRequest, Time: FromHM(14, 30)}
	got := roundTrip(t, channel, mt)
	if got.Time.Hour != 14 || got.Time.Minute != 30 {
		t.Fatalf("got %+v", got)
	}
}

func TestSettingsRequestRoundTrip(t *testing.T) {
	channel, _ := NewClientChannel(0)
	cases := []SettingsRequestMessage{
		{Kind: SettingsConfiguration},
		{Kind: SettingsFilterCycles},
		{Kind: SettingsInformation},
		{Kind: SettingsPreferences},
		{Kind: SettingsFaultLog, EntryNum: 3},
		{Kind: SettingsGfciTest},
		{Kind: SettingsSettings0x04},
	}
	for _, c := range cases {
		mt := MessageType{Kind: KindSettingsRequest, SettingsRequest: c}
		got := roundTrip(t, channel, mt)
		if got.SettingsRequest.Kind != c.Kind || got.SettingsRequest.EntryNum != c.EntryNum {
			t.Fatalf("case %+v: got %+v", c, got.SettingsRequest)
		}
	}
}

func TestStatusUpdateV1RoundTrip(t *testing.T) {
	v1 := StatusUpdateResponseV1{
		SpaState:           NewParsedEnum(byte(SpaRunning), SpaStateFromByte),
		InitMode:           NewParsedEnum(byte(InitIdle), InitializationModeFromByte),
		CurrentTemperature: &ProtocolTemperature{RawValue: 102, Scale: Fahrenheit},
		Time:               FromHM(8, 15),
		HeatingMode:        NewParsedEnum(byte(HeatingReady), HeatingModeFromByte),
		ReminderType:       NewParsedEnum(byte(ReminderNone), ReminderTypeFromByte),
		FilterMode:         NewParsedEnum(byte(FilterCycle1), FilterModeFromByte),
		PanelLocked:        false,
		TemperatureRange:   RangeHigh,
		ClockMode:          NewParsedEnum(byte(ClockHour24), ClockModeFromByte),
		NeedsHeat:          true,
		HeatingState:       NewParsedEnum(byte(HeatingHeating), HeatingStateFromByte),
		MisterOn:           Known(false, 0),
		SetTemperature:     ProtocolTemperature{RawValue: 104},
		PumpStatus: []ParsedEnum[PumpStatus]{
			NewParsedEnum(byte(PumpHigh), PumpStatusFromByte),
			NewParsedEnum(byte(PumpOff), PumpStatusFromByte),
			NewParsedEnum(byte(PumpOff), PumpStatusFromByte),
			NewParsedEnum(byte(PumpOff), PumpStatusFromByte),
			NewParsedEnum(byte(PumpOff), PumpStatusFromByte),
			NewParsedEnum(byte(PumpOff), PumpStatusFromByte),
		},
		CirculationPumpOn: Known(true, 1),
		BlowerStatus:      NewParsedEnum(byte(RelayOff), RelayStatusFromByte),
		LightStatus: []ParsedEnum[RelayStatus]{
			NewParsedEnum(byte(RelayOn), RelayStatusFromByte),
			NewParsedEnum(byte(RelayOff), RelayStatusFromByte),
		},
		ReminderSet:     NewParsedEnum(byte(0), BoolFromByte),
		NotificationSet: NewParsedEnum(byte(0), BoolFromByte),
	}
	mt := MessageType{Kind: KindStatusUpdate, Status: StatusUpdateMessage{V1: v1}}
	got := roundTrip(t, MulticastBroadcast, mt)

	gv1 := got.Status.V1
	if gv, ok := gv1.SpaState.Value(); !ok || gv != SpaRunning {
		t.Fatalf("spa state: %+v", gv1.SpaState)
	}
	if gv1.CurrentTemperature == nil || gv1.CurrentTemperature.RawValue != 102 {
		t.Fatalf("current temperature: %+v", gv1.CurrentTemperature)
	}
	if gv1.Time.Hour != 8 || gv1.Time.Minute != 15 {
		t.Fatalf("time: %+v", gv1.Time)
	}
	if len(gv1.PumpStatus) != NumPumpStatus {
		t.Fatalf("expected %d pump statuses, got %d", NumPumpStatus, len(gv1.PumpStatus))
	}
	if v, ok := gv1.PumpStatus[0].Value(); !ok || v != PumpHigh {
		t.Fatalf("pump 0: %+v", gv1.PumpStatus[0])
	}
	if len(gv1.LightStatus) != NumLightStatus {
		t.Fatalf("expected %d light statuses, got %d", NumLightStatus, len(gv1.LightStatus))
	}
	if v, ok := gv1.CirculationPumpOn.Value(); !ok || !v {
		t.Fatal("expected circulation pump on")
	}
}

func TestInformationResponseRoundTrip(t *testing.T) {
	info := InformationResponseMessage{
		SoftwareVersion:           SoftwareVersion{Version: [5]byte{1, 2, 3, 4, 5}},
		SystemModelNumber:         "BP601G1",
		CurrentConfigurationSetup: 7,
		ConfigurationSignature:    [4]byte{0xDE, 0xAD, 0xBE, 0xEF},
		HeaterVoltage:             Known(HeaterVoltage240, byte(HeaterVoltage240)),
		HeaterType:                Known(HeaterTypeStandard, byte(HeaterTypeStandard)),
		DipSwitchSettings:         0x1234,
	}
	mt := MessageType{Kind: KindInformationResponse, Information: info}
	got := roundTrip(t, MulticastRequest, mt)

	if got.Information.SystemModelNumber != "BP601G1" {
		t.Fatalf("model number: %q", got.Information.SystemModelNumber)
	}
	if got.Information.DipSwitchSettings != 0x1234 {
		t.Fatalf("dip switch: %x", got.Information.DipSwitchSettings)
	}
	if got.Information.ConfigurationSignature != [4]byte{0xDE, 0xAD, 0xBE, 0xEF} {
		t.Fatalf("signature: %x", got.Information.ConfigurationSignature)
	}
}

func TestPreferencesResponseRoundTrip(t *testing.T) {
	prefs := PreferencesResponseMessage{
		ReminderSet:              Known(true, 1),
		TemperatureScale:         Known(Celsius, 1),
		ClockMode:                Known(ClockHour24, byte(ClockHour24)),
		CleanupCycle:             CleanupCycle{Duration: 90},
		DolphinAddress:           5,
		M8ArtificialIntelligence: Known(false, 0),
	}
	mt := MessageType{Kind: KindPreferencesResponse, Preferences: prefs}
	got := roundTrip(t, MulticastRequest, mt)

	if v, ok := got.Preferences.TemperatureScale.Value(); !ok || v != Celsius {
		t.Fatalf("scale: %+v", got.Preferences.TemperatureScale)
	}
	if got.Preferences.CleanupCycle.Duration != 90 {
		t.Fatalf("cleanup duration: %d", got.Preferences.CleanupCycle.Duration)
	}
	if got.Preferences.DolphinAddress != 5 {
		t.Fatalf("dolphin address: %d", got.Preferences.DolphinAddress)
	}
}

func TestConfigurationResponseRoundTrip(t *testing.T) {
	cfg := ConfigurationResponseMessage{
		Pumps: []ParsedEnum[PumpConfig]{
			Known(PumpConfig{Present: true, NumSpeeds: 2}, 2),
			Known(PumpConfig{Present: true, NumSpeeds: 1}, 1),
			Known(PumpConfig{}, 0),
			Known(PumpConfig{}, 0),
			Known(PumpConfig{}, 0),
			Known(PumpConfig{}, 0),
		},
		HasLights: []ParsedEnum[bool]{Known(true, 1), Known(false, 0)},
		HasBlower: true,
		HasAux:    []ParsedEnum[bool]{Known(true, 1), Known(false, 0)},
		HasMister: Known(false, 0),
	}
	mt := MessageType{Kind: KindConfigurationResponse, Configuration: cfg}
	got := roundTrip(t, MulticastRequest, mt)

	if v, ok := got.Configuration.Pumps[0].Value(); !ok || !v.Present || v.NumSpeeds != 2 {
		t.Fatalf("pump 0: %+v", got.Configuration.Pumps[0])
	}
	if !got.Configuration.HasBlower {
		t.Fatal("expected blower present")
	}
	if v, ok := got.Configuration.HasAux[0].Value(); !ok || !v {
		t.Fatalf("aux 0: %+v", got.Configuration.HasAux[0])
	}
}

func TestFaultLogRoundTrip(t *testing.T) {
	fault := FaultResponseMessage{
		TotalEntries: 4,
		EntryNumber:  1,
		FaultCode:    Known(FaultSensorAFault, byte(FaultSensorAFault)),
	}
	mt := MessageType{Kind: KindFaultLogResponse, Fault: fault}
	got := roundTrip(t, MulticastRequest, mt)

	if got.Fault.TotalEntries != 4 || got.Fault.EntryNumber != 1 {
		t.Fatalf("got %+v", got.Fault)
	}
	if v, ok := got.Fault.FaultCode.Value(); !ok || v != FaultSensorAFault {
		t.Fatalf("fault code: %+v", got.Fault.FaultCode)
	}
}

func TestSetPreferenceRoundTrip(t *testing.T) {
	channel, _ := NewClientChannel(0)
	cases := []SetPreferenceMessage{
		{Kind: SetPrefReminders, Reminders: true},
		{Kind: SetPrefTemperatureScale, TemperatureScale: Celsius},
		{Kind: SetPrefClockMode, ClockMode: ClockHour12},
		{Kind: SetPrefCleanupCycle, CleanupCycle: CleanupCycle{Duration: 60}},
		{Kind: SetPrefDolphinAddress, DolphinAddress: 9},
		{Kind: SetPrefM8ArtificialIntelligence, M8AI: true},
	}
	for _, c := range cases {
		mt := MessageType{Kind: KindSetPreferenceRequest, SetPreference: c}
		got := roundTrip(t, channel, mt)
		if got.SetPreference.Kind != c.Kind {
			t.Fatalf("case %+v: got %+v", c, got.SetPreference)
		}
	}
}

func TestFilterCyclesRoundTrip(t *testing.T) {
	channel, _ := NewClientChannel(0)
	cycles := []FilterCycle{
		{Enabled: true, StartAt: 0, Duration: 120},
		{Enabled: false, StartAt: 720, Duration: 60},
	}
	mt := MessageType{Kind: KindFilterCycles, Cycles: cycles}
	got := roundTrip(t, channel, mt)

	if len(got.Cycles) != NumFilterCycles {
		t.Fatalf("expected %d cycles, got %d", NumFilterCycles, len(got.Cycles))
	}
	if !got.Cycles[0].Enabled || got.Cycles[0].Duration != 120 {
		t.Fatalf("cycle 0: %+v", got.Cycles[0])
	}
	if got.Cycles[1].StartAt != 720 {
		t.Fatalf("cycle 1: %+v", got.Cycles[1])
	}
}

func TestMalformedStatusUpdateRejected(t *testing.T) {
	channel, _ := NewClientChannel(0)
	msg := NewMessage(channel, byte(KindStatusUpdate), []byte{0x01, 0x02})
	if _, err := DecodeMessageType(msg); err == nil {
		t.Fatal("expected an error decoding a truncated status update")
	}
}
