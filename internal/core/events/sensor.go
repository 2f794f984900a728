package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"surplus2mqtt/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE              = "bridge"
	SENSOR_ID_SURPLUS_POWER             = "surplus_power"
	SENSOR_ID_SURPLUS_STATE             = "surplus_state"
	SENSOR_ID_SURPLUS_QUALITY           = "surplus_quality"
	SENSOR_ID_BATTERY_RESERVE_POWER     = "battery_reserve_power"
	SENSOR_ID_TIME_TO_ABSORPTION        = "time_to_absorption"
	SENSOR_ID_SOLAR_POWER               = "solar_power"
	SENSOR_ID_BATTERY_SOC               = "battery_soc"
	SENSOR_ID_BATTERY_VOLTAGE           = "battery_voltage"
	SENSOR_ID_BATTERY_CURRENT           = "battery_current"
	SENSOR_ID_CHARGER_OPERATING_STATE   = "charger_operating_state"
	SENSOR_ID_INVERTER_POWER_LIMIT      = "inverter_power_limit"
	SENSOR_ID_GRID_POWER_FLOW           = "grid_power_flow"
	SWITCH_ID_SURPLUS_STAGE1            = "surplus_stage1"
	SWITCH_ID_SURPLUS_STAGE2            = "surplus_stage2"
	INPUT_NUMBER_ID_ABSORPTION_MINUTES  = "absorption_to_sunset_minutes"
	STATE_CLASS_DURATION                = "duration"
	STATE_CLASS_MEASUREMENT             = "measurement"
	DEVICE_CLASS_BATTERY                = "battery"
	DEVICE_CLASS_CURRENT                = "current"
	DEVICE_CLASS_DURATION               = "duration"
	DEVICE_CLASS_POWER                  = "power"
	DEVICE_CLASS_VOLTAGE                = "voltage"
	DEVICE_CLASS_CONNECTIVITY           = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC             = "diagnostic"
	ENTITY_CLASS_CONFIG                 = "config"
	SENSOR_TYPE_SENSOR                  = "sensor"
	SENSOR_TYPE_BINARY                  = "binary_sensor"
	INPUT_NUMBER_MODE_BOX               = "box"
	INPUT_NUMBER_MODE_SLIDER            = "slider"
)

func BridgeDevice(baseTopic string) domain.Device {
	return domain.Device{
		Id:           fmt.Sprintf("surplus_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Surplus2MQTT",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Surplus2MQTT %s", md5HashShort(baseTopic)),
	}
}

func ChargerDevice(host string, unitId uint) domain.Device {
	serial := fmt.Sprintf("%s#%d", host, unitId)
	return domain.Device{
		Id:           fmt.Sprintf("sur_charger_%s", md5HashShort(serial)),
		Manufacturer: "Victron Energy",
		Model:        "Solar Charger",
		Name:         fmt.Sprintf("Solar Charger %s", md5HashShort(serial)),
	}
}

func IdDevice(device domain.Device) domain.Device {
	return domain.Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	sensors = append(sensors, domain.GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func ChargerSensors(chargerDevice domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Charger operating state
	sensors = append(sensors, domain.GenericSensor{
		Device:     chargerDevice,
		Id:         SENSOR_ID_CHARGER_OPERATING_STATE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Charger operating state",
		UniqueId:   uniqueId(chargerDevice.Id, SENSOR_ID_CHARGER_OPERATING_STATE),
	})

	// Solar panel power
	sensors = append(sensors, domain.GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_SOLAR_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Solar power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:solar-power",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_SOLAR_POWER),
	})

	// Battery SoC
	sensors = append(sensors, domain.GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_BATTERY_SOC),
	})

	// Battery voltage
	sensors = append(sensors, domain.GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_BATTERY_VOLTAGE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery voltage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: "V",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_BATTERY_VOLTAGE),
	})

	// Battery current
	sensors = append(sensors, domain.GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_BATTERY_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		EnabledByDefault:  optionalBool(false),
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_BATTERY_CURRENT),
	})

	return sensors
}

func SurplusSensors(bridgeDevice domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Surplus power
	sensors = append(sensors, domain.GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_SURPLUS_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Surplus power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:transmission-tower-export",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_SURPLUS_POWER),
	})

	// Regulation state
	sensors = append(sensors, domain.GenericSensor{
		Device:     bridgeDevice,
		Id:         SENSOR_ID_SURPLUS_STATE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Surplus regulation state",
		UniqueId:   uniqueId(bridgeDevice.Id, SENSOR_ID_SURPLUS_STATE),
	})

	// Regulation quality
	sensors = append(sensors, domain.GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_SURPLUS_QUALITY,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Surplus regulation quality",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_SURPLUS_QUALITY),
	})

	// Battery reserve power
	sensors = append(sensors, domain.GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_BATTERY_RESERVE_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery reserve power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:battery-arrow-down",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_BATTERY_RESERVE_POWER),
	})

	// Time until the charger should reach absorption mode
	sensors = append(sensors, domain.GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_TIME_TO_ABSORPTION,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Time to absorption",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_DURATION,
		UnitOfMeasurement: "min",
		EnabledByDefault:  optionalBool(false),
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_TIME_TO_ABSORPTION),
	})

	// Published inverter power limit
	sensors = append(sensors, domain.GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_INVERTER_POWER_LIMIT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Inverter power limit",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_INVERTER_POWER_LIMIT),
	})

	// Grid power flow seen by the meter
	sensors = append(sensors, domain.GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_GRID_POWER_FLOW,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Grid power flow",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:transmission-tower",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_GRID_POWER_FLOW),
	})

	return sensors
}

func SurplusSwitches(bridgeDevice domain.Device) []domain.GenericSwitch {

	var switches []domain.GenericSwitch

	// Stage I (bulk reserve)
	switches = append(switches, domain.GenericSwitch{
		Device:   bridgeDevice,
		Id:       SWITCH_ID_SURPLUS_STAGE1,
		Name:     "Surplus stage 1",
		UniqueId: uniqueId(bridgeDevice.Id, SWITCH_ID_SURPLUS_STAGE1),
		Icon:     "mdi:battery-charging-60",
	})
	// Stage II (voltage regulation)
	switches = append(switches, domain.GenericSwitch{
		Device:   bridgeDevice,
		Id:       SWITCH_ID_SURPLUS_STAGE2,
		Name:     "Surplus stage 2",
		UniqueId: uniqueId(bridgeDevice.Id, SWITCH_ID_SURPLUS_STAGE2),
		Icon:     "mdi:battery-charging-100",
	})

	return switches
}

func SurplusInputNumbers(bridgeDevice domain.Device) []domain.GenericInputNumber {

	var inputNumbers []domain.GenericInputNumber

	// Stage I deadline margin before sunset
	inputNumbers = append(inputNumbers, domain.GenericInputNumber{
		Device:       bridgeDevice,
		Id:           INPUT_NUMBER_ID_ABSORPTION_MINUTES,
		Name:         "Absorption to sunset margin",
		UniqueId:     uniqueId(bridgeDevice.Id, INPUT_NUMBER_ID_ABSORPTION_MINUTES),
		Icon:         "mdi:weather-sunset-down",
		Max:          240,
		Min:          0,
		Step:         5,
		Mode:         INPUT_NUMBER_MODE_BOX,
		InitialValue: 60,
	})

	return inputNumbers
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
