package domain

import "time"

// ChargerMode is the operating mode reported by the solar charge controller.
type ChargerMode uint8

const (
	ChargerModeOff ChargerMode = iota
	ChargerModeBulk
	ChargerModeAbsorption
	ChargerModeFloat
)

var chargerModeText = map[ChargerMode]string{
	ChargerModeOff:        "off",
	ChargerModeBulk:       "bulk",
	ChargerModeAbsorption: "absorption",
	ChargerModeFloat:      "float",
}

func (m ChargerMode) String() string {
	if s, ok := chargerModeText[m]; ok {
		return s
	}
	return "unknown"
}

// ChargerStatus is one telemetry snapshot read from the solar charge controller.
// Voltages are millivolts like the charger reports them.
type ChargerStatus struct {
	Mode                ChargerMode
	AbsorptionVoltageMV float64
	FloatVoltageMV      float64
	BatteryVoltageMV    float64
	SolarPowerWatts     int // -1 if unavailable
	UpdatedAt           time.Time
}

// BatteryStats is one telemetry snapshot read from the battery monitor.
// ChargeCurrentAmps is sign-significant: negative means discharge.
type BatteryStats struct {
	SoC               float64
	SoCValid          bool
	SoCUpdatedAt      time.Time
	ChargeCurrentAmps float64
	CurrentValid      bool
	CurrentUpdatedAt  time.Time
	BatteryVoltage    float64
}

// PowerMeterSample is a grid power reading ingested from a meter topic.
type PowerMeterSample struct {
	Topic      string
	PowerWatts float64
	ReceivedAt time.Time
}
