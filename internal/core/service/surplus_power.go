package service

import (
	"time"

	"surplus2mqtt/internal/core/domain"
	"surplus2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const (
	// the regulation loop "inverter -> charger -> panel -> measurement"
	// needs time, so recomputation is throttled
	calcInterval = 5 * time.Second

	// once in target range, wait before probing for more power
	inTargetHoldTime = time.Minute

	// the battery reserve forecast changes slowly
	reserveCalcInterval = 5 * time.Minute

	// freshness windows for battery telemetry
	socMaxAge     = 60 * time.Second
	currentMaxAge = 5 * time.Second

	reservePowerMax    = 99999 // withhold-everything battery reserve [W]
	efficiencyMPPT     = 0.97
	efficiencyInverter = 0.94

	// allowed distance between charger voltage target and regulation target [V]
	targetVoltageMargin = 0.1

	voltageWindowSize     = 5
	qualityWindowSize     = 20
	cellVoltageWindowSize = 20
)

// SurplusSettings is the raw engine configuration before bounds checking.
type SurplusSettings struct {
	StageIEnabled             bool
	StageIIEnabled            bool
	StartSoC                  float64 // [%]
	BatteryCapacityWh         int
	BatterySafetyPercent      float64 // [%]
	AbsorptionToSunsetMinutes int
	UpperPowerLimit           int // [W], 0 means use TotalUpperPowerLimit
	TotalUpperPowerLimit      int // [W]
	PowerHysteresis           int // [W]
	VerboseLogging            bool
}

// SurplusPowerRegulator is the two-stage surplus regulation engine.
//
// Stage I (charger in bulk mode) withholds enough solar power for the
// battery to reach absorption mode before sunset. Stage II (charger in
// absorption or float mode) seeks the charger's current limit by stepping
// the inverter power up and down, using the charger-side battery voltage as
// the only observable proxy.
//
// All state is owned by the single caller of CalculateSurplusPower; the
// engine never blocks and never spawns goroutines. Telemetry reads are
// treated as atomic snapshots supplied by the adapters.
type SurplusPowerRegulator struct {
	charger port.SolarCharger
	battery port.BatteryProvider
	sun     port.SunClock
	logger  *zap.Logger
	now     func() time.Time

	settings       SurplusSettings
	powerStepSize  int
	verboseLogging bool

	state        domain.RegulationState
	surplusPower int
	lastAddPower int

	lastCalcAt     time.Time
	lastInTargetAt time.Time

	avgVoltage  *WeightedAverage
	avgQuality  *WeightedAverage
	avgCellVolt *WeightedAverage

	qualityCounter  int
	overruleCounter int
	errorCounter    int

	stageITempOff  bool
	stageIITempOff bool

	batteryReserve          int
	durationNowToAbsorption int
	solarPower              int
	lastReserveCalcAt       time.Time
}

func NewSurplusPowerRegulator(settings SurplusSettings, charger port.SolarCharger,
	battery port.BatteryProvider, sun port.SunClock, logger *zap.Logger) *SurplusPowerRegulator {
	reg := &SurplusPowerRegulator{
		charger:     charger,
		battery:     battery,
		sun:         sun,
		logger:      logger.With(zap.String("service", "surplus")),
		now:         time.Now,
		avgVoltage:  NewWeightedAverage(voltageWindowSize),
		avgQuality:  NewWeightedAverage(qualityWindowSize),
		avgCellVolt: NewWeightedAverage(cellVoltageWindowSize),
	}
	reg.ApplySettings(settings)
	return reg
}

// ApplySettings bounds-checks the raw settings and derives the power step
// size. Safe to call at any time, regulation state is left untouched.
func (reg *SurplusPowerRegulator) ApplySettings(s SurplusSettings) {
	if s.StartSoC < 40.0 || s.StartSoC > 100.0 {
		s.StartSoC = 70.0
	}
	if s.BatteryCapacityWh < 100 || s.BatteryCapacityWh > 40000 {
		s.BatteryCapacityWh = 2500
	}
	if s.BatterySafetyPercent < 0.0 || s.BatterySafetyPercent > 100.0 {
		s.BatterySafetyPercent = 20.0
	}
	if s.AbsorptionToSunsetMinutes < 0 || s.AbsorptionToSunsetMinutes > 4*60 {
		s.AbsorptionToSunsetMinutes = 60
	}
	if s.UpperPowerLimit == 0 {
		s.UpperPowerLimit = s.TotalUpperPowerLimit
	}

	// the step size must exceed the power hysteresis, otherwise a single
	// step has no observable effect
	step := s.UpperPowerLimit / 20
	if step < s.PowerHysteresis {
		step = s.PowerHysteresis
	}
	reg.powerStepSize = step + 1

	reg.settings = s
	reg.verboseLogging = s.VerboseLogging
}

// UpdateSettings re-applies the current settings, recomputing derived
// values. Exists so callers holding the port interface can refresh after an
// external configuration change.
func (reg *SurplusPowerRegulator) UpdateSettings() {
	reg.ApplySettings(reg.settings)
}

// SetAbsorptionToSunsetMinutes adjusts the stage I deadline margin at
// runtime. Out-of-range values fall back to the default like any other
// settings refresh.
func (reg *SurplusPowerRegulator) SetAbsorptionToSunsetMinutes(minutes int) int {
	s := reg.settings
	s.AbsorptionToSunsetMinutes = minutes
	reg.ApplySettings(s)
	return reg.settings.AbsorptionToSunsetMinutes
}

func (reg *SurplusPowerRegulator) IsSurplusEnabled() bool {
	return reg.settings.StageIEnabled || reg.settings.StageIIEnabled
}

// CalculateSurplusPower returns the surplus power or the requested power,
// whichever is higher. requestedPower is the baseline computed by the
// zero-export loop.
func (reg *SurplusPowerRegulator) CalculateSurplusPower(requestedPower int) int {
	now := reg.now()

	// between computations the cached value is reused
	if now.Sub(reg.lastCalcAt) < calcInterval {
		if reg.surplusPower <= requestedPower {
			return requestedPower
		}
		if reg.verboseLogging {
			reg.logger.Sugar().Debugf("[Surplus] State: %s, Surplus power: %dW, Requested power: %dW, Returned power: %dW",
				reg.state, reg.surplusPower, requestedPower, reg.surplusPower)
		}
		return reg.surplusPower
	}
	reg.lastCalcAt = now

	mode, ok := reg.charger.OperatingMode()
	if !ok {
		reg.errorCounter++
		reg.logger.Warn("[Surplus] charger operating mode is not available")
		return requestedPower
	}

	if reg.settings.StageIEnabled && !reg.stageITempOff && mode == domain.ChargerModeBulk {
		return reg.calcBulkMode(requestedPower)
	}

	if reg.settings.StageIIEnabled && !reg.stageIITempOff &&
		(mode == domain.ChargerModeAbsorption || mode == domain.ChargerModeFloat) {
		return reg.calcAbsorptionFloatMode(requestedPower, mode)
	}

	// nothing to do
	reg.state = domain.StateIdle
	reg.surplusPower = 0

	if reg.verboseLogging {
		reg.logger.Sugar().Debugf("[Surplus] State: %s, Stage-I: %s, Stage-II: %s, charger mode: %s",
			reg.state, onOff(reg.settings.StageIEnabled && !reg.stageITempOff),
			onOff(reg.settings.StageIIEnabled && !reg.stageIITempOff), mode)
	}
	return requestedPower
}

// SwitchSurplus temporarily switches a stage on or off, or queries it.
// Switching a stage off zeroes the surplus power and resets the state.
func (reg *SurplusPowerRegulator) SwitchSurplus(stage domain.SurplusStage, mode domain.SurplusSwitchMode) bool {
	switch mode {
	case domain.SurplusSwitchOn:
		if stage == domain.SurplusStageI {
			reg.stageITempOff = false
		} else {
			reg.stageIITempOff = false
		}
		return true
	case domain.SurplusSwitchOff:
		if stage == domain.SurplusStageI {
			reg.stageITempOff = true
		} else {
			reg.stageIITempOff = true
		}
		reg.surplusPower = 0
		reg.state = domain.StateIdle
		return false
	default:
		if stage == domain.SurplusStageI {
			return !reg.stageITempOff
		}
		return !reg.stageIITempOff
	}
}

// Status returns a diagnostic snapshot for sensors and the HTTP API.
func (reg *SurplusPowerRegulator) Status() domain.SurplusStatus {
	qualityAvg := reg.avgQuality.Average()
	quality := classifyQuality(qualityAvg)
	return domain.SurplusStatus{
		State:                reg.state,
		StateText:            reg.state.String(),
		Quality:              quality,
		QualityText:          quality.String(),
		QualityAverage:       qualityAvg,
		SurplusPowerWatts:    reg.surplusPower,
		BatteryReserveWatts:  reg.batteryReserve,
		SolarPowerWatts:      reg.solarPower,
		MinutesToAbsorption:  reg.durationNowToAbsorption,
		AverageCellVoltage:   reg.avgCellVolt.Average(),
		StageIOn:             reg.settings.StageIEnabled && !reg.stageITempOff,
		StageIIOn:            reg.settings.StageIIEnabled && !reg.stageIITempOff,
		QualityCounter:       reg.qualityCounter,
		OverruleCounter:      reg.overruleCounter,
		ErrorCounter:         reg.errorCounter,
		UpperPowerLimitWatts: reg.settings.UpperPowerLimit,
		PowerStepSizeWatts:   reg.powerStepSize,
	}
}

// classifyQuality maps the averaged polarity reversal count to a class.
// One reversal per episode is the expected approach pattern.
func classifyQuality(avg float64) domain.RegulationQuality {
	switch {
	case avg == 0.0:
		return domain.QualityNoData
	case avg <= 1.1:
		return domain.QualityExcellent
	case avg <= 1.8:
		return domain.QualityGood
	default:
		return domain.QualityBad
	}
}

func onOff(value bool) string {
	if value {
		return "On"
	}
	return "Off"
}

// ensure interface compliance
var _ port.SurplusPowerRegulator = (*SurplusPowerRegulator)(nil)
