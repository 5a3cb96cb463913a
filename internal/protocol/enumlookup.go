package protocol

// Exported raw-byte classifiers for every ParsedEnum[V] used in this
// package, so sibling packages (mainboard constructing responses, topside
// decoding them) can build ParsedEnum values without reaching into
// unexported lookup tables.

func SpaStateFromByte(b byte) (SpaState, bool) {
	switch SpaState(b) {
	case SpaRunning, SpaInitializing, SpaHoldMode, SpaAbTempsOn, SpaTestMode:
		return SpaState(b), true
	default:
		return SpaState(b), false
	}
}

func InitializationModeFromByte(b byte) (InitializationMode, bool) {
	switch InitializationMode(b) {
	case InitIdle, InitPrimingMode, InitPostSettingsReset, InitReminder, InitStage1, InitStage2, InitStage3:
		return InitializationMode(b), true
	default:
		return InitializationMode(b), false
	}
}

func HeatingModeFromByte(b byte) (HeatingMode, bool) {
	switch HeatingMode(b) {
	case HeatingReady, HeatingRest, HeatingReadyInRest:
		return HeatingMode(b), true
	default:
		return HeatingMode(b), false
	}
}

func ReminderTypeFromByte(b byte) (ReminderType, bool) {
	switch ReminderType(b) {
	case ReminderNone, ReminderCleanFilter, ReminderCheckPhLevel, ReminderCheckSanitizer:
		return ReminderType(b), true
	default:
		return ReminderType(b), false
	}
}

func FilterModeFromByte(b byte) (FilterMode, bool) {
	switch FilterMode(b) {
	case FilterOff, FilterCycle1, FilterCycle2, FilterCycle1And2:
		return FilterMode(b), true
	default:
		return FilterMode(b), false
	}
}

func ClockModeFromByte(b byte) (ClockMode, bool) {
	switch ClockMode(b) {
	case ClockHour12, ClockHour24:
		return ClockMode(b), true
	default:
		return ClockMode(b), false
	}
}

func HeatingStateFromByte(b byte) (HeatingState, bool) {
	switch HeatingState(b) {
	case HeatingOff, HeatingHeating, HeatingHeatWaiting:
		return HeatingState(b), true
	default:
		return HeatingState(b), false
	}
}

func PumpStatusFromByte(b byte) (PumpStatus, bool) {
	switch PumpStatus(b) {
	case PumpOff, PumpLow, PumpHigh:
		return PumpStatus(b), true
	default:
		return PumpStatus(b), false
	}
}

func RelayStatusFromByte(b byte) (RelayStatus, bool) {
	switch RelayStatus(b) {
	case RelayOff, RelayOn:
		return RelayStatus(b), true
	default:
		return RelayStatus(b), false
	}
}

func BoolFromByte(b byte) (bool, bool) {
	switch b {
	case 0:
		return false, true
	case 1, 3:
		return true, true
	default:
		return b != 0, false
	}
}

func TemperatureScaleFromByte(b byte) (TemperatureScale, bool) {
	return temperatureScaleFromByte(b)
}

func HeaterVoltageFromByte(b byte) (HeaterVoltage, bool) {
	if HeaterVoltage(b) == HeaterVoltage240 {
		return HeaterVoltage240, true
	}
	return HeaterVoltage(b), false
}

func HeaterTypeFromByte(b byte) (HeaterType, bool) {
	if HeaterType(b) == HeaterTypeStandard {
		return HeaterTypeStandard, true
	}
	return HeaterType(b), false
}

func GfciTestResultFromByte(b byte) (GfciTestResult, bool) { return gfciTestResultFromByte(b) }

func FaultCodeFromByte(b byte) (FaultCode, bool) { return faultCodeFromByte(b) }
