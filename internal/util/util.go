package util

import (
	"surplus2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		ChargerModbusTcp: config.ChargerModbusTCPConfig{
			Host:               "-.-.-.-",
			Port:               502,
			ChargerUnitId:      245,
			BatteryUnitId:      225,
			PollIntervalMillis: 5000,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "surplus",
		},
		PowerMeterConfig: config.PowerMeterConfig{
			Topics:        []string{"tele/meter/power"},
			MaxAgeSeconds: 30,
		},
		PowerLimiterConfig: config.PowerLimiterConfig{
			TotalUpperPowerLimit:             2000,
			TargetPowerConsumption:           50,
			TargetPowerConsumptionHysteresis: 25,
			IntervalMillis:                   5000,
			InverterLimitTopic:               "inverter/limit/cmd",
		},
		SurplusConfig: config.SurplusConfig{
			StageIEnabled:             true,
			StageIIEnabled:            true,
			StartSoC:                  70,
			BatteryCapacityWh:         2500,
			BatterySafetyPercent:      20,
			AbsorptionToSunsetMinutes: 60,
			UpperPowerLimit:           1500,
		},
		BatteryConfig: config.BatteryConfig{
			Enabled: true,
		},
		LocationConfig: config.LocationConfig{
			Latitude:  40.4168,
			Longitude: -3.7038,
		},
		Port: 8080,
	}
}
