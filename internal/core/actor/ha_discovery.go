package actor

import (
	"errors"
	"fmt"
	"time"

	"surplus2mqtt/internal/config"
	"surplus2mqtt/internal/core/domain"
	"surplus2mqtt/internal/core/events"
	"surplus2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor publishes the Home Assistant discovery documents once,
// after the charger and MQTT actors report healthy, then goes dormant.
type HADiscoveryActor struct {
	config              *config.Config
	behavior            actor.Behavior
	stash               *actorutil.Stash
	chargerActor        *actor.PID
	mqttActor           *actor.PID
	chargerActorHealthy bool
	mqttActorHealthy    bool
	healthyRecv         int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, chargerActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:       config,
		chargerActor: chargerActor,
		mqttActor:    mqttActor,
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// Check charger and MQTT actor healthy
		state.healthyRecv = 0
		state.chargerActorHealthy = false
		state.mqttActorHealthy = false
		// charger actor request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.chargerActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_CHARGER,
				Healthy: false,
			}
		})
		// MQTT actor request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_CHARGER:
				state.chargerActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {
			if state.chargerActorHealthy && state.mqttActorHealthy {
				state.publishDiscovery(ctx)
				state.behavior.Become(state.Done)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT Actor or Charger Actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) publishDiscovery(ctx actor.Context) {
	var sensors []domain.GenericSensor
	var switches []domain.GenericSwitch
	var inputNumbers []domain.GenericInputNumber

	bridgeDevice := events.BridgeDevice(state.config.MQTT.BaseTopic)
	sensors = append(sensors, events.BridgeSensors(bridgeDevice)...)

	chargerDevice := events.ChargerDevice(state.config.ChargerModbusTcp.Host, state.config.ChargerModbusTcp.ChargerUnitId)
	chargerDevice.ViaDevice = bridgeDevice.Id
	chargerSensors := events.ChargerSensors(chargerDevice)
	for i := range chargerSensors {
		if i > 0 {
			chargerSensors[i].Device = events.IdDevice(chargerDevice)
		}
		sensors = append(sensors, chargerSensors[i])
	}

	sensors = append(sensors, events.SurplusSensors(events.IdDevice(bridgeDevice))...)
	switches = append(switches, events.SurplusSwitches(events.IdDevice(bridgeDevice))...)
	inputNumbers = append(inputNumbers, events.SurplusInputNumbers(events.IdDevice(bridgeDevice))...)

	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
		Sensors:      sensors,
		Switches:     switches,
		InputNumbers: inputNumbers,
	})
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}
