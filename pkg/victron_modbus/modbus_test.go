package victron_modbus

import (
	"fmt"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	USE_MOCKED_READER = true
)

func TestChargerState(t *testing.T) {

	reader := ChargerReader()

	err := reader.Open()
	if err != nil {
		t.Error(err)
	}

	state, err := reader.GetState()
	if err != nil {
		t.Error(err)
	}
	fmt.Printf("Charger state: %+v\n", state)

	if state.OperatingStateStr == ChargerStateUnknownStr {
		t.Errorf("unexpected charger state %d", state.OperatingState)
	}
	if state.BatteryVoltageMilliVolt <= 0 {
		t.Errorf("battery voltage should be positive, got %f", state.BatteryVoltageMilliVolt)
	}
}

func TestBatteryMonitorState(t *testing.T) {

	reader := BatteryReader()

	err := reader.Open()
	if err != nil {
		t.Error(err)
	}

	state, err := reader.GetState()
	if err != nil {
		t.Error(err)
	}
	fmt.Printf("Battery state: %+v\n", state)

	if state.StateOfCharge < 0 || state.StateOfCharge > 100 {
		t.Errorf("SoC out of range: %f", state.StateOfCharge)
	}
}

func TestChargerStateToString(t *testing.T) {

	cases := map[uint16]string{
		ChargerStateOff:        ChargerStateOffStr,
		ChargerStateBulk:       ChargerStateBulkStr,
		ChargerStateAbsorption: ChargerStateAbsorptionStr,
		ChargerStateFloat:      ChargerStateFloatStr,
	}
	for state, expected := range cases {
		if s := ChargerStateToString(state); s != expected {
			t.Errorf("state %d: expected %s, got %s", state, expected, s)
		}
	}
	if s := ChargerStateToString(99); s != fmt.Sprintf("%s(99)", ChargerStateUnknownStr) {
		t.Errorf("unexpected unknown state string %s", s)
	}
}

func ChargerReader() SolarChargerModbusReader {
	if USE_MOCKED_READER {
		reader, _ := CreateTestSolarChargerModbusReader()
		return reader
	}
	reader, err := CreateSolarChargerGXModbusReader("192.168.1.100", 502, 245, 5*time.Second, log.StandardLogger(), nil)
	if err != nil {
		panic(err)
	}
	return reader
}

func BatteryReader() BatteryMonitorModbusReader {
	if USE_MOCKED_READER {
		reader, _ := CreateTestBatteryMonitorModbusReader()
		return reader
	}
	reader, err := CreateBatteryMonitorGXModbusReader("192.168.1.100", 502, 225, 5*time.Second, log.StandardLogger(), nil)
	if err != nil {
		panic(err)
	}
	return reader
}
