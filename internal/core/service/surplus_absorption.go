package service

import (
	"surplus2mqtt/internal/core/domain"
)

// calcAbsorptionFloatMode is the stage II loop. The charger caps the battery
// voltage at the absorption/float target; as long as the measured voltage
// holds near that target the panels still have headroom, so the inverter
// power is stepped up. When the voltage drops below the target the panels
// are maxed out and the power is stepped back down.
func (reg *SurplusPowerRegulator) calcAbsorptionFloatMode(requestedPower int, mode domain.ChargerMode) int {
	absorptionMV, okAbs := reg.charger.AbsorptionVoltage()
	floatMV, okFloat := reg.charger.FloatVoltage()
	if !okAbs || !okFloat {
		reg.errorCounter++
		reg.logger.Warn("[Surplus II] charger target voltages are not available")
		return requestedPower
	}

	targetMV := absorptionMV
	if mode == domain.ChargerModeFloat {
		targetMV = floatMV
	}
	targetVoltage := targetMV/1000.0 - targetVoltageMargin

	batteryMV, okBatt := reg.charger.BatteryVoltage()
	if !okBatt {
		reg.errorCounter++
		reg.logger.Warn("[Surplus II] battery voltage is not available")
		return requestedPower
	}
	voltage := batteryMV / 1000.0
	reg.avgVoltage.Add(voltage)

	now := reg.now()
	addPower := 0

	switch reg.state {
	case domain.StateIdle:
		reg.errorCounter = 0
		fallthrough

	case domain.StateBulkPower:
		// regulation episode entry. When stage I hands over, the inverter
		// already runs at the bulk surplus level, so start there instead of
		// from zero.
		if requestedPower > reg.surplusPower {
			reg.surplusPower = requestedPower
		}
		reg.state = domain.StateTryMore
		reg.qualityCounter = 0
		reg.overruleCounter = 0
		reg.avgQuality.Reset()

	case domain.StateKeepLastPower:
		if voltage >= targetVoltage {
			addPower = reg.powerStepSize
			reg.state = domain.StateTryMore
		} else {
			reg.state = domain.StateReducePower
		}

	case domain.StateTryMore:
		if voltage >= targetVoltage {
			// charger is still limiting, we have not found the edge yet
			addPower = 2 * reg.powerStepSize
		} else {
			addPower = -reg.powerStepSize
			reg.state = domain.StateReducePower
		}

	case domain.StateReducePower:
		if voltage >= targetVoltage {
			reg.lastInTargetAt = now
			reg.state = domain.StateInTarget
		} else {
			addPower = -reg.powerStepSize
		}

	case domain.StateInTarget, domain.StateMaximumPower:
		if reg.avgVoltage.Average() >= targetVoltage || voltage >= targetVoltage {
			if now.Sub(reg.lastInTargetAt) > inTargetHoldTime {
				// in target long enough, check whether more power is possible
				addPower = reg.powerStepSize
				reg.state = domain.StateTryMore
			}
			if reg.qualityCounter != 0 {
				reg.avgQuality.Add(float64(reg.qualityCounter))
			}
			reg.qualityCounter = 0
		} else {
			addPower = -reg.powerStepSize
			reg.state = domain.StateReducePower
		}

	default:
		reg.state = domain.StateIdle
	}

	// battery discharge overrules any step up. Only trusted while the
	// current reading is fresh.
	if addPower >= 0 && reg.surplusPower > 0 && reg.battery.Enabled() {
		stats := reg.battery.Stats()
		if stats.CurrentValid && now.Sub(stats.CurrentUpdatedAt) < currentMaxAge &&
			stats.ChargeCurrentAmps < 0.0 {
			addPower = -reg.powerStepSize
			reg.state = domain.StateReducePower
			reg.overruleCounter++
		}
	}

	reg.surplusPower += addPower
	if reg.surplusPower < 0 {
		reg.surplusPower = 0
	}
	if reg.surplusPower > reg.settings.UpperPowerLimit {
		reg.surplusPower = reg.settings.UpperPowerLimit
		reg.state = domain.StateMaximumPower
	}

	if reg.verboseLogging {
		reg.logger.Sugar().Debugf("[Surplus II] State: %s, Surplus power: %dW, Requested power: %dW, Battery voltage: %.2fV (avg: %.2fV), Target voltage: %.2fV",
			reg.state, reg.surplusPower, requestedPower, voltage, reg.avgVoltage.Average(), targetVoltage)
	}

	if requestedPower > reg.surplusPower {
		// baseline demand exceeds the surplus, keep the level and resume
		// regulation once demand drops again
		reg.qualityCounter = 0
		reg.state = domain.StateKeepLastPower
		return requestedPower
	}

	// a polarity reversal of the power step indicates a completed approach
	// to the target. More than one reversal per episode means oscillation.
	if (reg.lastAddPower < 0 && addPower > 0) || (reg.lastAddPower > 0 && addPower < 0) {
		reg.qualityCounter++
	}
	reg.lastAddPower = addPower
	return reg.surplusPower
}
