package service

import (
	"testing"
	"time"

	"surplus2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// step size resolves to upper/20 + 1 = 50 with these settings
const (
	TEST_UPPER_LIMIT = 980
	TEST_STEP        = 50
)

func TestStageIIEntrySequence(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeAbsorption)

	// entry tick: episode starts at the requested baseline
	p := rig.tick(0)
	require.EqualValues(0, p)
	require.Equal(domain.StateTryMore, rig.reg.state)

	// voltage holds at target, probe with a double step
	p = rig.tick(0)
	require.EqualValues(2*TEST_STEP, p)
	require.Equal(domain.StateTryMore, rig.reg.state)
}

func TestStageIIStepTable(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeAbsorption)

	rig.tick(0)
	rig.tick(0) // surplus = 100, TryMore

	// voltage drops: step back down
	rig.charger.battMV = 14000
	p := rig.tick(0)
	require.EqualValues(100-TEST_STEP, p)
	require.Equal(domain.StateReducePower, rig.reg.state)

	// still below target: keep reducing
	p = rig.tick(0)
	require.EqualValues(0, p)
	require.Equal(domain.StateReducePower, rig.reg.state)

	// recovers: hold the level
	rig.charger.battMV = 14350
	p = rig.tick(0)
	require.EqualValues(0, p)
	require.Equal(domain.StateInTarget, rig.reg.state)

	// inside the hold window nothing changes
	p = rig.tick(0)
	require.EqualValues(0, p)
	require.Equal(domain.StateInTarget, rig.reg.state)

	// hold window expired: probe again
	rig.now = rig.now.Add(61 * time.Second)
	p = rig.tick(0)
	require.EqualValues(TEST_STEP, p)
	require.Equal(domain.StateTryMore, rig.reg.state)
}

func TestStageIIFloatTargetVoltage(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeFloat)

	// float target is 13.8V - 0.1V margin; 13.75V is inside
	rig.charger.battMV = 13750
	rig.tick(0)
	p := rig.tick(0)
	require.EqualValues(2*TEST_STEP, p)
}

func TestStageIIUpperLimitClamp(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeAbsorption)

	rig.tick(0)
	for i := 0; i < 30; i++ {
		rig.tick(0)
	}
	require.EqualValues(TEST_UPPER_LIMIT, rig.reg.surplusPower)
	require.Equal(domain.StateMaximumPower, rig.reg.state)
}

func TestStageIIKeepLastPowerOnHighDemand(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeAbsorption)

	rig.tick(0)
	rig.tick(0) // surplus = 100

	// demand above the surplus wins and freezes regulation
	p := rig.tick(500)
	require.EqualValues(500, p)
	require.Equal(domain.StateKeepLastPower, rig.reg.state)
	require.EqualValues(0, rig.reg.qualityCounter)

	// demand drops, voltage at target: resume with a single step up
	p = rig.tick(0)
	require.EqualValues(rig.reg.surplusPower, p)
	require.Equal(domain.StateTryMore, rig.reg.state)
}

func TestOverruleOnBatteryDischarge(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeAbsorption)

	rig.tick(0)
	rig.tick(0) // surplus = 100, TryMore

	// battery starts discharging: step down even though the voltage says
	// there is headroom
	rig.battery.stats.CurrentValid = true
	rig.battery.stats.ChargeCurrentAmps = -3.5
	rig.battery.stats.CurrentUpdatedAt = rig.now.Add(5 * time.Second)
	p := rig.tick(0)
	require.EqualValues(100-TEST_STEP, p)
	require.Equal(domain.StateReducePower, rig.reg.state)
	require.EqualValues(1, rig.reg.overruleCounter)
}

func TestOverruleInertWhenStale(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeAbsorption)

	rig.tick(0)
	rig.tick(0) // surplus = 100, TryMore

	// discharge reading too old to be trusted
	rig.battery.stats.CurrentValid = true
	rig.battery.stats.ChargeCurrentAmps = -3.5
	rig.battery.stats.CurrentUpdatedAt = rig.now.Add(1 * time.Second) // next tick is +6s
	p := rig.tick(0)
	require.EqualValues(100+2*TEST_STEP, p)
	require.Equal(domain.StateTryMore, rig.reg.state)
	require.EqualValues(0, rig.reg.overruleCounter)
}

func TestBulkReserveForecast(t *testing.T) {

	require := require.New(t)
	rig := newStageIRig()
	rig.battery.stats.SoC = 85.0

	// 120 min to sunset, 30 min margin => 90 min of bulk charging left.
	// reserve = 2500 * (0.998 - 0.85) / 90 * 60 * 1.3 => 320W
	p := rig.tick(0)
	require.EqualValues(611, p)
	require.Equal(domain.StateBulkPower, rig.reg.state)
	require.EqualValues(320, rig.reg.batteryReserve)
	require.EqualValues(90, rig.reg.durationNowToAbsorption)
}

func TestBulkWithholdsAllAfterDeadline(t *testing.T) {

	require := require.New(t)
	rig := newStageIRig()
	rig.battery.stats.SoC = 85.0

	// past the absorption deadline: reserve everything
	rig.sun.sunset = rig.sun.local.Add(10 * time.Minute)
	p := rig.tick(0)
	require.EqualValues(0, p)
	require.EqualValues(reservePowerMax, rig.reg.batteryReserve)
	require.Equal(domain.StateBulkPower, rig.reg.state)
}

func TestBulkBelowStopThreshold(t *testing.T) {

	require := require.New(t)
	rig := newStageIRig()
	rig.battery.stats.SoC = 77.0 // stop threshold is startSoC - 2 = 78

	p := rig.tick(250)
	require.EqualValues(250, p)
	require.Equal(domain.StateIdle, rig.reg.state)
	require.EqualValues(0, rig.reg.surplusPower)
}

func TestBulkHysteresisBand(t *testing.T) {

	require := require.New(t)
	rig := newStageIRig()

	// 79% is inside the band: no start from idle
	rig.battery.stats.SoC = 79.0
	rig.tick(0)
	require.Equal(domain.StateIdle, rig.reg.state)

	// once running, the band keeps the episode alive down to the stop value
	rig.battery.stats.SoC = 85.0
	rig.tick(0)
	require.Equal(domain.StateBulkPower, rig.reg.state)
	rig.battery.stats.SoC = 79.0
	rig.battery.stats.SoCUpdatedAt = rig.now.Add(6 * time.Second)
	rig.tick(0)
	require.Equal(domain.StateBulkPower, rig.reg.state)
}

func TestBulkToStageIIHandOff(t *testing.T) {

	require := require.New(t)
	rig := newStageIRig()
	rig.reg.settings.StageIIEnabled = true
	rig.battery.stats.SoC = 85.0

	rig.tick(0)
	require.EqualValues(611, rig.reg.surplusPower)

	// charger reaches absorption: stage II takes over at the stage I level
	rig.charger.mode = domain.ChargerModeAbsorption
	rig.charger.absMV, rig.charger.absOK = 14400, true
	rig.charger.floatMV, rig.charger.floatOK = 13800, true
	rig.charger.battMV, rig.charger.battOK = 14350, true
	p := rig.tick(0)
	require.EqualValues(611, p)
	require.Equal(domain.StateTryMore, rig.reg.state)
}

func TestMissingChargerMode(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeAbsorption)
	rig.charger.modeOK = false

	p := rig.tick(300)
	require.EqualValues(300, p)
	require.EqualValues(1, rig.reg.errorCounter)
	require.Equal(domain.StateIdle, rig.reg.state)
}

func TestMissingTargetVoltages(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeAbsorption)
	rig.charger.floatOK = false

	p := rig.tick(300)
	require.EqualValues(300, p)
	require.EqualValues(1, rig.reg.errorCounter)
}

func TestThrottleReusesLastValue(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeAbsorption)

	rig.tick(0)
	rig.tick(0) // surplus = 100

	// inside the throttle window nothing is recomputed, even though the
	// voltage collapsed in the meantime
	rig.charger.battMV = 12000
	rig.now = rig.now.Add(2 * time.Second)
	p := rig.reg.CalculateSurplusPower(0)
	require.EqualValues(100, p)
	require.Equal(domain.StateTryMore, rig.reg.state)

	// higher demand passes through untouched
	p = rig.reg.CalculateSurplusPower(150)
	require.EqualValues(150, p)
}

func TestReturnedPowerNeverBelowRequested(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeAbsorption)

	for _, requested := range []int{0, 50, 120, 500, 2000} {
		p := rig.tick(requested)
		require.GreaterOrEqual(p, requested)
		require.GreaterOrEqual(rig.reg.surplusPower, 0)
		require.LessOrEqual(rig.reg.surplusPower, TEST_UPPER_LIMIT)
	}
}

func TestSwitchSurplus(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeAbsorption)

	rig.tick(0)
	rig.tick(0) // surplus = 100

	require.True(rig.reg.SwitchSurplus(domain.SurplusStageII, domain.SurplusSwitchAsk))
	require.False(rig.reg.SwitchSurplus(domain.SurplusStageII, domain.SurplusSwitchOff))
	require.EqualValues(0, rig.reg.surplusPower)
	require.Equal(domain.StateIdle, rig.reg.state)
	require.False(rig.reg.SwitchSurplus(domain.SurplusStageII, domain.SurplusSwitchAsk))

	// switched off: stage II is skipped entirely
	p := rig.tick(100)
	require.EqualValues(100, p)
	require.Equal(domain.StateIdle, rig.reg.state)

	require.True(rig.reg.SwitchSurplus(domain.SurplusStageII, domain.SurplusSwitchOn))
	require.True(rig.reg.SwitchSurplus(domain.SurplusStageII, domain.SurplusSwitchAsk))
}

func TestQualityCounterOnPolarityReversal(t *testing.T) {

	require := require.New(t)
	rig := newStageIIRig(domain.ChargerModeAbsorption)

	rig.tick(0) // episode entry
	rig.tick(0) // voltage at target: step up
	require.EqualValues(0, rig.reg.qualityCounter)

	// voltage collapses: the power step flips sign, one reversal
	rig.charger.battMV = 14000
	rig.tick(0)
	require.Equal(domain.StateReducePower, rig.reg.state)
	require.EqualValues(1, rig.reg.qualityCounter)

	// recovers into the target band
	rig.charger.battMV = 14350
	rig.tick(0)
	require.Equal(domain.StateInTarget, rig.reg.state)

	// the next in-target tick folds the episode counter into the average
	rig.tick(0)
	require.EqualValues(0, rig.reg.qualityCounter)
	st := rig.reg.Status()
	require.EqualValues(1.0, st.QualityAverage)
	require.Equal("Excellent", st.QualityText)
}

func TestQualityClassification(t *testing.T) {

	assert.Equal(t, domain.QualityNoData, classifyQuality(0))
	assert.Equal(t, domain.QualityExcellent, classifyQuality(0.5))
	assert.Equal(t, domain.QualityExcellent, classifyQuality(1.1))
	assert.Equal(t, domain.QualityGood, classifyQuality(1.5))
	assert.Equal(t, domain.QualityGood, classifyQuality(1.8))
	assert.Equal(t, domain.QualityBad, classifyQuality(1.81))
}

func TestSettingsBounds(t *testing.T) {

	require := require.New(t)

	rig := newRig(SurplusSettings{
		StageIIEnabled:            true,
		StartSoC:                  150,
		BatteryCapacityWh:         50,
		BatterySafetyPercent:      -1,
		AbsorptionToSunsetMinutes: 500,
		UpperPowerLimit:           0,
		TotalUpperPowerLimit:      2000,
		PowerHysteresis:           120,
	})

	require.EqualValues(70.0, rig.reg.settings.StartSoC)
	require.EqualValues(2500, rig.reg.settings.BatteryCapacityWh)
	require.EqualValues(20.0, rig.reg.settings.BatterySafetyPercent)
	require.EqualValues(60, rig.reg.settings.AbsorptionToSunsetMinutes)
	require.EqualValues(2000, rig.reg.settings.UpperPowerLimit)
	// hysteresis exceeds upper/20
	require.EqualValues(121, rig.reg.powerStepSize)

	require.EqualValues(45, rig.reg.SetAbsorptionToSunsetMinutes(45))
	require.EqualValues(60, rig.reg.SetAbsorptionToSunsetMinutes(999))
}

func TestIsSurplusEnabled(t *testing.T) {

	rig := newRig(SurplusSettings{TotalUpperPowerLimit: 1000})
	assert.False(t, rig.reg.IsSurplusEnabled())

	rig = newRig(SurplusSettings{StageIEnabled: true, TotalUpperPowerLimit: 1000})
	assert.True(t, rig.reg.IsSurplusEnabled())
}

func TestStatusSnapshot(t *testing.T) {

	require := require.New(t)
	rig := newStageIRig()
	rig.battery.stats.SoC = 85.0
	rig.tick(0)

	st := rig.reg.Status()
	require.Equal("Reserve battery power", st.StateText)
	require.EqualValues(611, st.SurplusPowerWatts)
	require.EqualValues(320, st.BatteryReserveWatts)
	require.EqualValues(1000, st.SolarPowerWatts)
	require.EqualValues(90, st.MinutesToAbsorption)
	require.Equal("Insufficient data", st.QualityText)
	require.True(st.StageIOn)
	require.False(st.StageIIOn)
}

// test doubles

type fakeCharger struct {
	mode    domain.ChargerMode
	modeOK  bool
	absMV   float64
	absOK   bool
	floatMV float64
	floatOK bool
	battMV  float64
	battOK  bool
	solar   int
}

func (f *fakeCharger) OperatingMode() (domain.ChargerMode, bool) {
	return f.mode, f.modeOK
}

func (f *fakeCharger) AbsorptionVoltage() (float64, bool) {
	return f.absMV, f.absOK
}

func (f *fakeCharger) FloatVoltage() (float64, bool) {
	return f.floatMV, f.floatOK
}

func (f *fakeCharger) BatteryVoltage() (float64, bool) {
	return f.battMV, f.battOK
}

func (f *fakeCharger) SolarPowerWatts() int {
	return f.solar
}

type fakeBattery struct {
	enabled bool
	stats   domain.BatteryStats
}

func (f *fakeBattery) Enabled() bool {
	return f.enabled
}

func (f *fakeBattery) Stats() domain.BatteryStats {
	return f.stats
}

type fakeSun struct {
	local    time.Time
	localOK  bool
	sunset   time.Time
	sunsetOK bool
}

func (f *fakeSun) LocalTime() (time.Time, bool) {
	return f.local, f.localOK
}

func (f *fakeSun) SunsetTime(day time.Time) (time.Time, bool) {
	return f.sunset, f.sunsetOK
}

type testRig struct {
	reg     *SurplusPowerRegulator
	charger *fakeCharger
	battery *fakeBattery
	sun     *fakeSun
	now     time.Time
}

// tick advances past the recomputation throttle and runs one cycle
func (r *testRig) tick(requestedPower int) int {
	r.now = r.now.Add(6 * time.Second)
	return r.reg.CalculateSurplusPower(requestedPower)
}

func newRig(settings SurplusSettings) *testRig {
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	rig := &testRig{
		charger: &fakeCharger{solar: -1},
		battery: &fakeBattery{},
		sun: &fakeSun{
			local:    base,
			localOK:  true,
			sunset:   base.Add(2 * time.Hour),
			sunsetOK: true,
		},
		now: base,
	}
	rig.reg = NewSurplusPowerRegulator(settings, rig.charger, rig.battery, rig.sun, zap.NewNop())
	rig.reg.now = func() time.Time { return rig.now }
	return rig
}

// charger in constant-voltage mode, voltage pinned just above the target
func newStageIIRig(mode domain.ChargerMode) *testRig {
	rig := newRig(SurplusSettings{
		StageIIEnabled:       true,
		StartSoC:             80,
		BatteryCapacityWh:    2500,
		BatterySafetyPercent: 30,
		UpperPowerLimit:      TEST_UPPER_LIMIT,
		TotalUpperPowerLimit: TEST_UPPER_LIMIT,
	})
	rig.charger.mode = mode
	rig.charger.modeOK = true
	rig.charger.absMV, rig.charger.absOK = 14400, true
	rig.charger.floatMV, rig.charger.floatOK = 13800, true
	rig.charger.battMV, rig.charger.battOK = 14350, true
	rig.battery.enabled = true
	return rig
}

// charger in bulk mode with fresh battery telemetry
func newStageIRig() *testRig {
	rig := newRig(SurplusSettings{
		StageIEnabled:             true,
		StartSoC:                  80,
		BatteryCapacityWh:         2500,
		BatterySafetyPercent:      30,
		AbsorptionToSunsetMinutes: 30,
		UpperPowerLimit:           TEST_UPPER_LIMIT,
		TotalUpperPowerLimit:      TEST_UPPER_LIMIT,
	})
	rig.charger.mode = domain.ChargerModeBulk
	rig.charger.modeOK = true
	rig.charger.solar = 1000
	rig.battery.enabled = true
	rig.battery.stats.SoCValid = true
	rig.battery.stats.SoCUpdatedAt = rig.now
	return rig
}
