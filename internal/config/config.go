package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel         zapcore.Level
	ChargerModbusTcp ChargerModbusTCPConfig `mapstructure:"charger_modbus_tcp"`
	MQTT             MQTTConfig             `mapstructure:"mqtt"`

	PowerMeterConfig   PowerMeterConfig   `mapstructure:"power_meter"`
	PowerLimiterConfig PowerLimiterConfig `mapstructure:"power_limiter"`
	SurplusConfig      SurplusConfig      `mapstructure:"surplus"`
	BatteryConfig      BatteryConfig      `mapstructure:"battery"`
	LocationConfig     LocationConfig     `mapstructure:"location"`
	Port               uint               `mapstructure:"port"`
	HttpLog            bool               `mapstructure:"http_log"`
}

type ChargerModbusTCPConfig struct {
	Host               string
	Port               uint
	ChargerUnitId      uint   `mapstructure:"charger_unit_id"`
	BatteryUnitId      uint   `mapstructure:"battery_unit_id"`
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
}

type PowerMeterConfig struct {
	// topics holding grid meter power values [W], summed to a single reading
	Topics          []string `mapstructure:"topics"`
	MaxAgeSeconds   uint     `mapstructure:"max_age_seconds"`
	InvertDirection bool     `mapstructure:"invert_direction"`
}

type PowerLimiterConfig struct {
	TotalUpperPowerLimit             int    `mapstructure:"total_upper_power_limit"`
	TargetPowerConsumption           int    `mapstructure:"target_power_consumption"`
	TargetPowerConsumptionHysteresis int    `mapstructure:"target_power_consumption_hysteresis"`
	IntervalMillis                   uint32 `mapstructure:"interval_millis"`
	InverterLimitTopic               string `mapstructure:"inverter_limit_topic"`
	VerboseLogging                   bool   `mapstructure:"verbose_logging"`
}

type SurplusConfig struct {
	StageIEnabled             bool    `mapstructure:"stage1_enabled"`
	StageIIEnabled            bool    `mapstructure:"stage2_enabled"`
	StartSoC                  float64 `mapstructure:"start_soc"`
	BatteryCapacityWh         int     `mapstructure:"battery_capacity_wh"`
	BatterySafetyPercent      float64 `mapstructure:"battery_safety_percent"`
	AbsorptionToSunsetMinutes int     `mapstructure:"absorption_to_sunset_minutes"`
	UpperPowerLimit           int     `mapstructure:"upper_power_limit"`
}

type BatteryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LocationConfig struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
