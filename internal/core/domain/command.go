package domain

import "fmt"

// SurplusStage identifies one of the two regulation stages.
type SurplusStage uint8

const (
	SurplusStageI  SurplusStage = 1
	SurplusStageII SurplusStage = 2
)

// SurplusSwitchMode is the action carried by a stage switch command.
type SurplusSwitchMode uint8

const (
	SurplusSwitchOn SurplusSwitchMode = iota
	SurplusSwitchOff
	SurplusSwitchAsk
)

// SurplusRequest

type SurplusRequest interface {
	ActorRequest
	SurplusCommand() string
}

type SurplusRequestMixIn struct {
	ActorRequestMixIn
}

func (r SurplusRequestMixIn) SurplusCommand() string {
	return fmt.Sprintf("%T", r)
}

// Surplus commands

type SurplusSwitchRequest struct {
	SurplusRequestMixIn
	Stage SurplusStage
	Mode  SurplusSwitchMode
}

type SurplusSwitchResponse struct {
	ActorResponseMixIn
	Stage SurplusStage
	On    bool
}

type SurplusSetAbsorptionToSunsetRequest struct {
	SurplusRequestMixIn
	Minutes int
}

type SurplusSetAbsorptionToSunsetResponse struct {
	ActorResponseMixIn
	Minutes int
}

type GetSurplusStatusRequest struct {
	SurplusRequestMixIn
}

type GetSurplusStatusResponse struct {
	ActorResponseMixIn
	Status SurplusStatus
}

// ensure interface compliance
var _ SurplusRequest = (*SurplusSwitchRequest)(nil)
var _ SurplusRequest = (*GetSurplusStatusRequest)(nil)
