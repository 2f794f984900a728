package actor

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"surplus2mqtt/internal/config"
	"surplus2mqtt/internal/core/domain"
	"surplus2mqtt/internal/core/events"
	"surplus2mqtt/internal/core/port"
	. "surplus2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const DEFAULT_METER_MAX_AGE_SECONDS = 30

// PowerLimiterActor runs the closed control loop that keeps grid import at
// the configured target: every tick it folds the latest grid meter readings
// into a new inverter power limit, lets the surplus regulator raise it when
// the battery can spare power, and publishes the result over MQTT when it
// moved beyond the hysteresis band.
type PowerLimiterActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	mqttActor   *actor.PID
	regulator   port.SurplusPowerRegulator
	config      *config.Config
	eventStream *eventstream.EventStream

	meterSamples map[string]domain.PowerMeterSample
	// limit currently in force at the inverter, feedback term of the loop
	lastLimit          int
	lastPublishedLimit int
	published          bool

	logger *zap.Logger
}

type powerLimiterTick struct {
}

func NewPowerLimiterActor(config *config.Config, mqttActor *actor.PID, regulator port.SurplusPowerRegulator,
	eventStream *eventstream.EventStream, logger *zap.Logger) *PowerLimiterActor {
	act := &PowerLimiterActor{
		config:       config,
		mqttActor:    mqttActor,
		regulator:    regulator,
		eventStream:  eventStream,
		behavior:     actor.NewBehavior(),
		stash:        &Stash{},
		meterSamples: make(map[string]domain.PowerMeterSample),
		logger:       ActorLogger(domain.ACTOR_ID_POWER_LIMITER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PowerLimiterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PowerLimiterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("power_limiter@starting started")

		if state.config.PowerLimiterConfig.IntervalMillis > 0 {
			state.scheduler = scheduler.NewTimerScheduler(ctx)
			state.scheduler.RequestOnce(time.Duration(state.config.PowerLimiterConfig.IntervalMillis)*time.Millisecond, ctx.Self(), powerLimiterTick{})
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("power_limiter@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PowerLimiterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("power_limiter@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POWER_LIMITER,
			Healthy: true,
			State:   "idle",
		})
	case domain.PowerMeterSample:
		if state.config.PowerMeterConfig.InvertDirection {
			msg.PowerWatts = -msg.PowerWatts
		}
		state.meterSamples[msg.Topic] = msg
	case powerLimiterTick:
		state.logger.Debug("power_limiter@default tick")
		state.runControlCycle(ctx)
		state.scheduler.RequestOnce(time.Duration(state.config.PowerLimiterConfig.IntervalMillis)*time.Millisecond, ctx.Self(), powerLimiterTick{})
	case domain.SurplusSwitchRequest:
		state.logger.Debug("power_limiter@default SurplusSwitchRequest",
			zap.Uint8("stage", uint8(msg.Stage)), zap.Uint8("mode", uint8(msg.Mode)))
		on := state.regulator.SwitchSurplus(msg.Stage, msg.Mode)
		ForRequest(msg).Respond(ctx, domain.SurplusSwitchResponse{
			Stage: msg.Stage,
			On:    on,
		})
		state.eventStream.Publish(events.SurplusSwitchToUpdateEvent(msg.Stage, on))
	case domain.SurplusSetAbsorptionToSunsetRequest:
		state.logger.Debug("power_limiter@default SurplusSetAbsorptionToSunsetRequest", zap.Int("minutes", msg.Minutes))
		effective := state.regulator.SetAbsorptionToSunsetMinutes(msg.Minutes)
		ForRequest(msg).Respond(ctx, domain.SurplusSetAbsorptionToSunsetResponse{
			Minutes: effective,
		})
		state.eventStream.Publish(events.AbsorptionMinutesToUpdateEvent(effective))
	case domain.GetSurplusStatusRequest:
		state.logger.Debug("power_limiter@default GetSurplusStatusRequest")
		ForRequest(msg).Respond(ctx, domain.GetSurplusStatusResponse{
			Status: state.regulator.Status(),
		})
	case domain.PublishMessageResponse:
		if msg.HasResponseError() {
			state.logger.Error("power_limiter@default inverter limit publish failed", zap.Error(msg.GetResponseError()))
		}
	default:
		state.logger.Debug("power_limiter@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// runControlCycle computes the next inverter power limit. Stale meter data
// keeps the last limit in force instead of chasing a reading that no longer
// reflects the grid.
func (state *PowerLimiterActor) runControlCycle(ctx actor.Context) {
	cfg := state.config.PowerLimiterConfig

	newLimit := state.lastLimit
	gridPower, fresh := state.meterPowerSum(time.Now())
	if fresh {
		newLimit = state.lastLimit + int(math.Round(gridPower)) - cfg.TargetPowerConsumption
		state.eventStream.Publish(events.GridPowerToUpdateEvent(gridPower))
	}
	if newLimit < 0 {
		newLimit = 0
	}
	if newLimit > cfg.TotalUpperPowerLimit {
		newLimit = cfg.TotalUpperPowerLimit
	}

	limit := state.regulator.CalculateSurplusPower(newLimit)
	if cfg.VerboseLogging {
		state.logger.Sugar().Debugf("power_limiter: grid %.1f W, base limit %d W, with surplus %d W", gridPower, newLimit, limit)
	}
	state.lastLimit = limit

	diff := limit - state.lastPublishedLimit
	if diff < 0 {
		diff = -diff
	}
	if !state.published || diff > cfg.TargetPowerConsumptionHysteresis {
		state.publishLimit(ctx, limit)
	}

	for _, ev := range events.SurplusStatusToUpdateEvents(state.regulator.Status()) {
		state.eventStream.Publish(ev)
	}
}

func (state *PowerLimiterActor) publishLimit(ctx actor.Context, limit int) {
	state.logger.Info("power_limiter: publishing inverter power limit", zap.Int("watts", limit))
	ctx.Request(state.mqttActor, domain.PublishMessageRequest{
		Topic:   state.config.PowerLimiterConfig.InverterLimitTopic,
		Payload: strconv.Itoa(limit),
	})
	state.published = true
	state.lastPublishedLimit = limit
	state.eventStream.Publish(events.InverterPowerLimitToUpdateEvent(limit))
}

// meterPowerSum adds up the configured meter readings, skipping stale ones.
// It reports false when none of the configured topics has a fresh sample.
func (state *PowerLimiterActor) meterPowerSum(now time.Time) (float64, bool) {
	maxAge := time.Duration(state.config.PowerMeterConfig.MaxAgeSeconds) * time.Second
	if maxAge <= 0 {
		maxAge = DEFAULT_METER_MAX_AGE_SECONDS * time.Second
	}

	var sum float64
	var fresh bool
	for _, sample := range state.meterSamples {
		if now.Sub(sample.ReceivedAt) <= maxAge {
			sum += sample.PowerWatts
			fresh = true
		}
	}
	return sum, fresh
}
