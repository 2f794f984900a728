package victron_modbus

import (
	"fmt"
)

// charger operating states (register 775)
const (
	ChargerStateOff        = 0
	ChargerStateFault      = 2
	ChargerStateBulk       = 3
	ChargerStateAbsorption = 4
	ChargerStateFloat      = 5
	ChargerStateStorage    = 6
	ChargerStateEqualize   = 7
)

// charger operating state strings
const (
	ChargerStateOffStr        = "off"
	ChargerStateFaultStr      = "fault"
	ChargerStateBulkStr       = "bulk"
	ChargerStateAbsorptionStr = "absorption"
	ChargerStateFloatStr      = "float"
	ChargerStateStorageStr    = "storage"
	ChargerStateEqualizeStr   = "equalize"
	ChargerStateUnknownStr    = "unknown"
)

func ChargerStateToString(state uint16) string {
	switch state {
	case ChargerStateOff:
		return ChargerStateOffStr
	case ChargerStateFault:
		return ChargerStateFaultStr
	case ChargerStateBulk:
		return ChargerStateBulkStr
	case ChargerStateAbsorption:
		return ChargerStateAbsorptionStr
	case ChargerStateFloat:
		return ChargerStateFloatStr
	case ChargerStateStorage:
		return ChargerStateStorageStr
	case ChargerStateEqualize:
		return ChargerStateEqualizeStr
	default:
		return fmt.Sprintf("%s(%d)", ChargerStateUnknownStr, state)
	}
}

type SolarChargerState struct {
	OperatingState    uint16
	OperatingStateStr string
	// Charger-side battery voltage in millivolts
	BatteryVoltageMilliVolt float64
	// Configured absorption voltage setpoint in millivolts
	AbsorptionVoltageMilliVolt float64
	// Configured float voltage setpoint in millivolts
	FloatVoltageMilliVolt float64
	// Instantaneous PV output power in watts
	SolarPowerWatt float64
}

type BatteryMonitorState struct {
	// State of charge in percent
	StateOfCharge float64
	// Battery terminal voltage in volts
	BatteryVoltage float64
	// Battery current in amps. Positive = charging. Negative = discharging
	CurrentAmp float64
}

type SolarChargerModbusReader interface {
	Open() error
	Close() error
	GetState() (*SolarChargerState, error)
}

type BatteryMonitorModbusReader interface {
	Open() error
	Close() error
	GetState() (*BatteryMonitorState, error)
}
