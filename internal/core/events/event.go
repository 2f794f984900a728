package events

import (
	. "surplus2mqtt/internal/core/domain"
)

// ChargerStatusToUpdateEvents maps a charger telemetry snapshot to sensor
// update events.
func ChargerStatusToUpdateEvents(status *ChargerStatus) []any {
	var events []any

	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CHARGER_OPERATING_STATE,
		},
		Value: status.Mode.String(),
	})
	if status.SolarPowerWatts >= 0 {
		events = append(events, IntSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_SOLAR_POWER,
			},
			Value: status.SolarPowerWatts,
		})
	}
	if status.BatteryVoltageMV > 0 {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_VOLTAGE,
			},
			Value:    status.BatteryVoltageMV / 1000.0,
			Decimals: 2,
		})
	}

	return events
}

// BatteryStatsToUpdateEvents maps a battery monitor snapshot to sensor
// update events. Invalid readings produce no event so the last published
// value stays visible.
func BatteryStatsToUpdateEvents(stats *BatteryStats) []any {
	var events []any

	if stats.SoCValid {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_SOC,
			},
			Value:    stats.SoC,
			Decimals: 1,
		})
	}
	if stats.CurrentValid {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_CURRENT,
			},
			Value:    stats.ChargeCurrentAmps,
			Decimals: 1,
		})
	}

	return events
}

// SurplusStatusToUpdateEvents maps an engine snapshot to sensor update
// events, including the stage switch states.
func SurplusStatusToUpdateEvents(status SurplusStatus) []any {
	var events []any

	events = append(events, IntSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SURPLUS_POWER,
		},
		Value: status.SurplusPowerWatts,
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SURPLUS_STATE,
		},
		Value: status.StateText,
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SURPLUS_QUALITY,
		},
		Value: status.QualityText,
	})
	events = append(events, IntSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_RESERVE_POWER,
		},
		Value: status.BatteryReserveWatts,
	})
	events = append(events, IntSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_TIME_TO_ABSORPTION,
		},
		Value: status.MinutesToAbsorption,
	})
	events = append(events, SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_SURPLUS_STAGE1,
		},
		Value: status.StageIOn,
	})
	events = append(events, SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_SURPLUS_STAGE2,
		},
		Value: status.StageIIOn,
	})

	return events
}

func InverterPowerLimitToUpdateEvent(limitWatts int) any {
	return IntSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_POWER_LIMIT,
		},
		Value: limitWatts,
	}
}

func GridPowerToUpdateEvent(powerWatts float64) any {
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_GRID_POWER_FLOW,
		},
		Value:    powerWatts,
		Decimals: 1,
	}
}

func SurplusSwitchToUpdateEvent(stage SurplusStage, on bool) any {
	id := SWITCH_ID_SURPLUS_STAGE1
	if stage == SurplusStageII {
		id = SWITCH_ID_SURPLUS_STAGE2
	}
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value: on,
	}
}

func AbsorptionMinutesToUpdateEvent(minutes int) any {
	return InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_ABSORPTION_MINUTES,
		},
		Value:    float64(minutes),
		Decimals: 0,
	}
}
