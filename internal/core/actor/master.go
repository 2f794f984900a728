package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "surplus2mqtt/internal/adapter/actor"
	"surplus2mqtt/internal/config"
	"surplus2mqtt/internal/core/domain"
	"surplus2mqtt/internal/core/port"
	. "surplus2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type ChargerActorProvider func(*eventstream.EventStream) *adactor.ChargerActor

type RegulatorProvider func() port.SurplusPowerRegulator

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream

	chargerActor      *actor.PID
	mqttActor         *actor.PID
	powerLimiterActor *actor.PID

	chargerActorProvider ChargerActorProvider
	mqttActorProvider    MQTTActorProvider
	regulatorProvider    RegulatorProvider

	logger *zap.Logger
}

type healthCheckResult struct {
	chargerActorHealthy      bool
	mqttActorHealthy         bool
	powerLimiterActorHealthy bool
	checksReceived           int
	respondTo                *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, chargerActorProvider ChargerActorProvider,
	mqttActorProvider MQTTActorProvider, regulatorProvider RegulatorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:               config,
		behavior:             actor.NewBehavior(),
		stash:                &Stash{},
		logger:               ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:          &eventstream.EventStream{},
		chargerActorProvider: chargerActorProvider,
		mqttActorProvider:    mqttActorProvider,
		regulatorProvider:    regulatorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start charger child
		chargerActorPID, err := state.startChargerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.chargerActor = chargerActorPID

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start power limiter child
		powerLimiterActorPID, err := state.startPowerLimiterActor(ctx)
		if err != nil {
			panic(err)
		}
		state.powerLimiterActor = powerLimiterActorPID

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		// charger actor request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.chargerActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_CHARGER,
				Healthy: false,
			}
		})
		// MQTT actor request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		// power limiter actor request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.powerLimiterActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_POWER_LIMITER,
				Healthy: false,
			}
		})

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err == nil && cmd != nil {
				switch pcmd := cmd.(type) {
				case domain.SurplusRequest:
					ctx.Send(state.powerLimiterActor, pcmd)
				}
			}
		}
	case domain.PowerMeterSample:
		// grid meter samples feed the control loop
		ctx.Send(state.powerLimiterActor, msg)
	case domain.SurplusRequest:
		// surplus commands from the HTTP API keep their reply path
		ctx.RequestWithCustomSender(state.powerLimiterActor, msg, ctx.Sender())
	case domain.GetChargerStatusRequest:
		ctx.RequestWithCustomSender(state.chargerActor, msg, ctx.Sender())
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_CHARGER) {
			state.logger.Error("master@default charger error")
			panic(errors.New("charger terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			if msg.Id == domain.ACTOR_ID_CHARGER {
				state.currentHealthCheck.chargerActorHealthy = true
			} else if msg.Id == domain.ACTOR_ID_MQTT {
				state.currentHealthCheck.mqttActorHealthy = true
			} else if msg.Id == domain.ACTOR_ID_POWER_LIMITER {
				state.currentHealthCheck.powerLimiterActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {

			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startChargerActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	chargerProps := actor.PropsFromProducer(func() actor.Actor {
		return state.chargerActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	chargerActorPID, err := ctx.SpawnNamed(chargerProps, domain.ACTOR_ID_CHARGER)
	if err != nil {
		return nil, err
	}

	return chargerActorPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startPowerLimiterActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	powerLimiterProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPowerLimiterActor(&state.config, state.mqttActor, state.regulatorProvider(), state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	powerLimiterPID, err := ctx.SpawnNamed(powerLimiterProps, domain.ACTOR_ID_POWER_LIMITER)
	if err != nil {
		return nil, err
	}

	return powerLimiterPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.chargerActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *healthCheckResult) reset() {
	state.chargerActorHealthy = false
	state.mqttActorHealthy = false
	state.powerLimiterActorHealthy = false
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 3
}

func (state *healthCheckResult) allHealthy() bool {
	return state.chargerActorHealthy && state.mqttActorHealthy && state.powerLimiterActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
