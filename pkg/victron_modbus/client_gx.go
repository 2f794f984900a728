package victron_modbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	log "github.com/sirupsen/logrus"
)

// solar charger service registers
const (
	regChargerBatteryVoltage    = 771 // scale 100
	regChargerBatteryCurrent    = 772 // scale 10
	regChargerState             = 775
	regChargerAbsorptionVoltage = 776 // scale 100
	regChargerFloatVoltage      = 777 // scale 100
	regChargerSolarPower        = 789 // scale 10
)

// battery monitor service registers
const (
	regBatteryVoltage = 259 // scale 100
	regBatteryCurrent = 261 // scale 10, signed
	regBatterySoC     = 266 // scale 10
)

type SolarChargerGXModbusReader struct {
	ModbusClient

	logger *log.Logger
}

func (reader *SolarChargerGXModbusReader) Open() error {
	return reader.client.Open()
}

func (reader SolarChargerGXModbusReader) Close() error {
	return reader.client.Close()
}

func (reader SolarChargerGXModbusReader) GetState() (*SolarChargerState, error) {
	state, err := reader.readRegister(regChargerState, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	voltage, err := reader.readRegister(regChargerBatteryVoltage, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	absorption, err := reader.readRegister(regChargerAbsorptionVoltage, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	float, err := reader.readRegister(regChargerFloatVoltage, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	solar, err := reader.readRegister(regChargerSolarPower, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}

	return &SolarChargerState{
		OperatingState:             state,
		OperatingStateStr:          ChargerStateToString(state),
		BatteryVoltageMilliVolt:    reader.applySF(voltage, 2) * 1000,
		AbsorptionVoltageMilliVolt: reader.applySF(absorption, 2) * 1000,
		FloatVoltageMilliVolt:      reader.applySF(float, 2) * 1000,
		SolarPowerWatt:             reader.applySF(solar, 1),
	}, nil
}

type BatteryMonitorGXModbusReader struct {
	ModbusClient

	logger *log.Logger
}

func (reader *BatteryMonitorGXModbusReader) Open() error {
	return reader.client.Open()
}

func (reader BatteryMonitorGXModbusReader) Close() error {
	return reader.client.Close()
}

func (reader BatteryMonitorGXModbusReader) GetState() (*BatteryMonitorState, error) {
	soc, err := reader.readRegister(regBatterySoC, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	voltage, err := reader.readRegister(regBatteryVoltage, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	current, err := reader.readRegister(regBatteryCurrent, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}

	return &BatteryMonitorState{
		StateOfCharge:  reader.applySF(soc, 1),
		BatteryVoltage: reader.applySF(voltage, 2),
		CurrentAmp:     reader.applySFint16(int16(current), 1),
	}, nil
}

func traceLoggerInstrumentation(logger *log.Entry) *ModbusInstrument {
	if logger == nil || !logger.Logger.IsLevelEnabled(log.TraceLevel) {
		return nil
	}
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Tracef("modbus [%s]: %d millis", fnName, readTime.Milliseconds())
		},
	}
}

func CreateSolarChargerGXModbusReader(ip string, port uint, unitId uint8, timeout time.Duration,
	logger *log.Logger, instrumentation *ModbusInstrument) (SolarChargerModbusReader, error) {
	client, err := newGXClient(ip, port, unitId, timeout)
	if err != nil {
		return nil, err
	}

	// instrumentation
	var inst []ModbusInstrument
	logInst := traceLoggerInstrumentation(logger.WithField("target", "charger").WithField("unit", unitId))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	reader := SolarChargerGXModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		logger: logger,
	}
	return &reader, nil
}

func CreateBatteryMonitorGXModbusReader(ip string, port uint, unitId uint8, timeout time.Duration,
	logger *log.Logger, instrumentation *ModbusInstrument) (BatteryMonitorModbusReader, error) {
	client, err := newGXClient(ip, port, unitId, timeout)
	if err != nil {
		return nil, err
	}

	// instrumentation
	var inst []ModbusInstrument
	logInst := traceLoggerInstrumentation(logger.WithField("target", "battery").WithField("unit", unitId))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	reader := BatteryMonitorGXModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		logger: logger,
	}
	return &reader, nil
}

func newGXClient(ip string, port uint, unitId uint8, timeout time.Duration) (*modbus.ModbusClient, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if unitId > 0 {
		if err := client.SetUnitId(unitId); err != nil {
			return nil, err
		}
	}
	return client, nil
}
