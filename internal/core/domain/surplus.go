package domain

// RegulationState is the single state variable shared by both regulation
// stages. Stage I only ever sets Idle or BulkPower; every other value
// belongs to the stage II approximation loop. The shared variable is what
// makes the BulkPower -> TryMore hand-off carry the accumulated surplus
// power into stage II.
type RegulationState uint8

const (
	StateIdle RegulationState = iota
	StateTryMore
	StateReducePower
	StateInTarget
	StateMaximumPower
	StateKeepLastPower
	StateBulkPower
)

var regulationStateText = map[RegulationState]string{
	StateIdle:          "Idle",
	StateTryMore:       "Try more power",
	StateReducePower:   "Reduce power",
	StateInTarget:      "In target range",
	StateMaximumPower:  "Maximum power",
	StateKeepLastPower: "Keep last power",
	StateBulkPower:     "Reserve battery power",
}

func (s RegulationState) String() string {
	if t, ok := regulationStateText[s]; ok {
		return t
	}
	return "unknown"
}

// RegulationQuality classifies the health of the stage II control loop from
// the averaged count of power step polarity reversals per episode.
type RegulationQuality uint8

const (
	QualityNoData RegulationQuality = iota
	QualityExcellent
	QualityGood
	QualityBad
)

var regulationQualityText = map[RegulationQuality]string{
	QualityNoData:    "Insufficient data",
	QualityExcellent: "Excellent",
	QualityGood:      "Good",
	QualityBad:       "Bad",
}

func (q RegulationQuality) String() string {
	if t, ok := regulationQualityText[q]; ok {
		return t
	}
	return "unknown"
}

// SurplusStatus is a diagnostic snapshot of the regulation engine.
type SurplusStatus struct {
	State                RegulationState   `json:"-"`
	StateText            string            `json:"state"`
	Quality              RegulationQuality `json:"-"`
	QualityText          string            `json:"quality"`
	QualityAverage       float64           `json:"quality_average"`
	SurplusPowerWatts    int               `json:"surplus_power_watts"`
	BatteryReserveWatts  int               `json:"battery_reserve_watts"`
	SolarPowerWatts      int               `json:"solar_power_watts"`
	MinutesToAbsorption  int               `json:"minutes_to_absorption"`
	AverageCellVoltage   float64           `json:"average_cell_voltage"`
	StageIOn             bool              `json:"stage1_on"`
	StageIIOn            bool              `json:"stage2_on"`
	QualityCounter       int               `json:"quality_counter"`
	OverruleCounter      int               `json:"overrule_counter"`
	ErrorCounter         int               `json:"error_counter"`
	UpperPowerLimitWatts int               `json:"upper_power_limit_watts"`
	PowerStepSizeWatts   int               `json:"power_step_size_watts"`
}
