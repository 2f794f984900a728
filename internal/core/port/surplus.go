package port

import (
	"time"

	"surplus2mqtt/internal/core/domain"
)

// SolarCharger exposes the last known charge controller telemetry.
// Every read is a point-in-time snapshot; values may be unavailable.
type SolarCharger interface {
	// OperatingMode returns the charging phase, or false when no fresh
	// telemetry is available.
	OperatingMode() (domain.ChargerMode, bool)
	// AbsorptionVoltage returns the configured absorption target [mV].
	AbsorptionVoltage() (float64, bool)
	// FloatVoltage returns the configured float target [mV].
	FloatVoltage() (float64, bool)
	// BatteryVoltage returns the charger-side battery voltage [mV].
	BatteryVoltage() (float64, bool)
	// SolarPowerWatts returns the instantaneous panel output power, or -1
	// when unavailable.
	SolarPowerWatts() int
}

// BatteryProvider exposes the last known battery monitor telemetry.
type BatteryProvider interface {
	Enabled() bool
	Stats() domain.BatteryStats
}

// SunClock provides wall-clock time and the sunset time for a given day.
type SunClock interface {
	LocalTime() (time.Time, bool)
	SunsetTime(day time.Time) (time.Time, bool)
}

// SurplusPowerRegulator computes how much surplus solar power the inverter
// may draw on top of the baseline requested power.
type SurplusPowerRegulator interface {
	// CalculateSurplusPower never returns less than requestedPower.
	CalculateSurplusPower(requestedPower int) int
	UpdateSettings()
	// SetAbsorptionToSunsetMinutes returns the effective value after
	// bounds checking.
	SetAbsorptionToSunsetMinutes(minutes int) int
	SwitchSurplus(stage domain.SurplusStage, mode domain.SurplusSwitchMode) bool
	IsSurplusEnabled() bool
	Status() domain.SurplusStatus
}
