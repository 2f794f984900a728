package victron_modbus

func CreateTestSolarChargerModbusReader() (SolarChargerModbusReader, error) {
	return TestSolarChargerModbusReader{}, nil
}

func CreateTestBatteryMonitorModbusReader() (BatteryMonitorModbusReader, error) {
	return TestBatteryMonitorModbusReader{}, nil
}

// Solar charger

type TestSolarChargerModbusReader struct {
}

func (reader TestSolarChargerModbusReader) Open() error {
	return nil
}

func (reader TestSolarChargerModbusReader) Close() error {
	return nil
}

func (reader TestSolarChargerModbusReader) GetState() (*SolarChargerState, error) {
	return &SolarChargerState{
		OperatingState:             ChargerStateBulk,
		OperatingStateStr:          ChargerStateBulkStr,
		BatteryVoltageMilliVolt:    13820,
		AbsorptionVoltageMilliVolt: 14400,
		FloatVoltageMilliVolt:      13800,
		SolarPowerWatt:             1174.5,
	}, nil
}

// Battery monitor

type TestBatteryMonitorModbusReader struct {
}

func (reader TestBatteryMonitorModbusReader) Open() error {
	return nil
}

func (reader TestBatteryMonitorModbusReader) Close() error {
	return nil
}

func (reader TestBatteryMonitorModbusReader) GetState() (*BatteryMonitorState, error) {
	return &BatteryMonitorState{
		StateOfCharge:  84.3,
		BatteryVoltage: 13.82,
		CurrentAmp:     12.4,
	}, nil
}
