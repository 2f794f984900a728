package service

import (
	"math"
	"time"

	"surplus2mqtt/internal/core/domain"
)

// calcBulkMode is the stage I loop. While the charger is in bulk mode the
// battery absorbs any amount of power, so surplus is whatever the panels
// produce beyond the reserve the battery still needs to reach absorption
// mode before sunset.
func (reg *SurplusPowerRegulator) calcBulkMode(requestedPower int) int {
	soc, ok := reg.batterySoC()
	if !ok {
		reg.errorCounter++
		reg.logger.Warn("[Surplus I] battery state of charge is not available")
		return requestedPower
	}

	// small hysteresis band below the start threshold to avoid toggling
	stopSoC := reg.settings.StartSoC - 2.0
	if soc <= stopSoC || (soc < reg.settings.StartSoC && reg.state == domain.StateIdle) {
		reg.surplusPower = 0
		reg.state = domain.StateIdle
		if reg.verboseLogging {
			reg.logger.Sugar().Debugf("[Surplus I] State: %s, SoC: %.1f%% below start threshold %.1f%%",
				reg.state, soc, reg.settings.StartSoC)
		}
		return requestedPower
	}

	solarPower := reg.charger.SolarPowerWatts()
	if solarPower == -1 {
		reg.errorCounter++
		reg.logger.Warn("[Surplus I] solar panel power is not available")
		return requestedPower
	}
	reg.solarPower = solarPower

	if voltageMV, ok := reg.charger.BatteryVoltage(); ok {
		reg.avgCellVolt.Add(voltageMV / 1000.0)
	}

	now := reg.now()

	if reg.state == domain.StateIdle {
		// episode entry. Withhold everything until the first reserve
		// forecast is computed.
		reg.batteryReserve = reservePowerMax
		reg.lastReserveCalcAt = time.Time{}
		reg.surplusPower = 0
		reg.errorCounter = 0
	}
	reg.state = domain.StateBulkPower

	if now.Sub(reg.lastReserveCalcAt) > reserveCalcInterval {
		duration := reg.timeToSunsetMinutes() - reg.settings.AbsorptionToSunsetMinutes
		if duration > 0 {
			// energy still missing in the battery, spread over the
			// remaining bulk charging time, padded by the safety margin
			missingWh := float64(reg.settings.BatteryCapacityWh) * (0.998 - soc/100.0)
			reserve := missingWh / float64(duration) * 60.0 * (1.0 + reg.settings.BatterySafetyPercent/100.0)
			reg.batteryReserve = int(reserve)
			if reg.batteryReserve < 0 {
				reg.batteryReserve = 0
			}
			reg.durationNowToAbsorption = duration
		} else {
			reg.batteryReserve = reservePowerMax
			reg.durationNowToAbsorption = 0
		}
		reg.lastReserveCalcAt = now
	}

	surplus := int(math.Round((float64(solarPower)*efficiencyMPPT - float64(reg.batteryReserve)) * efficiencyInverter))
	if surplus < 0 {
		surplus = 0
	}
	if surplus > reg.settings.UpperPowerLimit {
		surplus = reg.settings.UpperPowerLimit
	}
	reg.surplusPower = surplus

	if reg.verboseLogging {
		reg.logger.Sugar().Debugf("[Surplus I] State: %s, Surplus power: %dW, Requested power: %dW, Solar power: %dW, Battery reserve: %dW, SoC: %.1f%%, Time to absorption: %dmin",
			reg.state, reg.surplusPower, requestedPower, solarPower, reg.batteryReserve, soc, reg.durationNowToAbsorption)
	}

	if requestedPower > reg.surplusPower {
		return requestedPower
	}
	return reg.surplusPower
}

// batterySoC returns the state of charge if the battery monitor is enabled
// and the reading is fresh.
func (reg *SurplusPowerRegulator) batterySoC() (float64, bool) {
	if !reg.battery.Enabled() {
		return 0, false
	}
	stats := reg.battery.Stats()
	if !stats.SoCValid || reg.now().Sub(stats.SoCUpdatedAt) >= socMaxAge {
		return 0, false
	}
	return stats.SoC, true
}

// timeToSunsetMinutes returns the minutes from now until sunset, floored at
// zero. Missing time information counts as an error and yields zero, which
// makes stage I withhold everything.
func (reg *SurplusPowerRegulator) timeToSunsetMinutes() int {
	local, ok := reg.sun.LocalTime()
	if !ok {
		reg.errorCounter++
		return 0
	}
	sunset, ok := reg.sun.SunsetTime(local)
	if !ok {
		reg.errorCounter++
		return 0
	}
	minutes := (sunset.Hour()-local.Hour())*60 + (sunset.Minute() - local.Minute())
	if minutes < 0 {
		return 0
	}
	return minutes
}
