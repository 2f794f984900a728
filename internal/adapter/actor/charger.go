package actor

import (
	"fmt"
	"time"

	"surplus2mqtt/internal/adapter/telemetry"
	"surplus2mqtt/internal/config"
	"surplus2mqtt/internal/core/domain"
	"surplus2mqtt/internal/core/events"
	"surplus2mqtt/internal/util/actorutil"
	"surplus2mqtt/pkg/victron_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

// after this many consecutive poll failures the cached telemetry is dropped
const maxPollFailures = 3

// ChargerActor polls the GX device over Modbus TCP and feeds the telemetry
// cache the regulation engine reads from. Snapshots are also published on
// the event stream for the MQTT sensors.
type ChargerActor struct {
	behavior  actor.Behavior
	stash     *actorutil.Stash
	scheduler *scheduler.TimerScheduler

	charger victron_modbus.SolarChargerModbusReader
	battery victron_modbus.BatteryMonitorModbusReader
	cache   *telemetry.Cache

	config      *config.Config
	eventStream *eventstream.EventStream
	failures    uint

	logger *zap.Logger
}

type chargerPollTick struct {
}

type chargerPollResult struct {
	charger *victron_modbus.SolarChargerState
	battery *victron_modbus.BatteryMonitorState
	err     error
}

func NewChargerActor(config *config.Config, charger victron_modbus.SolarChargerModbusReader,
	battery victron_modbus.BatteryMonitorModbusReader, cache *telemetry.Cache,
	eventStream *eventstream.EventStream, logger *zap.Logger) *ChargerActor {
	act := &ChargerActor{
		config:      config,
		charger:     charger,
		battery:     battery,
		cache:       cache,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_CHARGER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ChargerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ChargerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("charger@starting started")
		if err := state.charger.Open(); err != nil {
			panic(err)
		}
		if state.battery != nil {
			if err := state.battery.Open(); err != nil {
				panic(err)
			}
		}
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.scheduler.RequestOnce(0, ctx.Self(), chargerPollTick{})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.closeReaders()
	default:
		state.logger.Debug("charger@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ChargerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("charger@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CHARGER,
			Healthy: state.failures < maxPollFailures,
			State:   "idle",
		})
	case chargerPollTick:
		state.logger.Debug("charger@default tick")
		actorutil.NewBackgroundTask(ctx, state.poll).
			Recover(func(err error) chargerPollResult {
				return chargerPollResult{err: err}
			}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingPoll)
	case domain.GetChargerStatusRequest:
		state.logger.Debug("charger@default: GetChargerStatusRequest")
		state.respondChargerStatus(ctx, msg)
	case *actor.Stopping:
		state.closeReaders()
	default:
		state.logger.Debug("charger@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ChargerActor) WaitingPoll(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case chargerPollResult:
		if msg.err != nil {
			state.failures++
			state.logger.Error("charger@waiting poll failed", zap.Error(msg.err), zap.Uint("failures", state.failures))
			if state.failures >= maxPollFailures {
				state.cache.Invalidate()
			}
		} else {
			state.failures = 0
			state.applyPollResult(msg)
		}
		state.scheduler.RequestOnce(time.Duration(state.config.ChargerModbusTcp.PollIntervalMillis)*time.Millisecond,
			ctx.Self(), chargerPollTick{})
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.closeReaders()
	default:
		state.logger.Debug("charger@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ChargerActor) poll() (*chargerPollResult, error) {
	chargerState, err := state.charger.GetState()
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	var batteryState *victron_modbus.BatteryMonitorState
	if state.battery != nil {
		batteryState, err = state.battery.GetState()
		if err != nil {
			logger.Error(err)
			return nil, err
		}
	}
	return &chargerPollResult{
		charger: chargerState,
		battery: batteryState,
	}, nil
}

func (state *ChargerActor) applyPollResult(result chargerPollResult) {
	now := time.Now()

	status := domain.ChargerStatus{
		Mode:                chargerModeFromState(result.charger.OperatingState),
		AbsorptionVoltageMV: result.charger.AbsorptionVoltageMilliVolt,
		FloatVoltageMV:      result.charger.FloatVoltageMilliVolt,
		BatteryVoltageMV:    result.charger.BatteryVoltageMilliVolt,
		SolarPowerWatts:     int(result.charger.SolarPowerWatt),
		UpdatedAt:           now,
	}
	state.cache.SetChargerStatus(status)
	for _, ev := range events.ChargerStatusToUpdateEvents(&status) {
		state.eventStream.Publish(ev)
	}

	if result.battery != nil {
		stats := domain.BatteryStats{
			SoC:               result.battery.StateOfCharge,
			SoCValid:          true,
			SoCUpdatedAt:      now,
			ChargeCurrentAmps: result.battery.CurrentAmp,
			CurrentValid:      true,
			CurrentUpdatedAt:  now,
			BatteryVoltage:    result.battery.BatteryVoltage,
		}
		state.cache.SetBatteryStats(stats)
		for _, ev := range events.BatteryStatsToUpdateEvents(&stats) {
			state.eventStream.Publish(ev)
		}
	}
}

func (state *ChargerActor) respondChargerStatus(ctx actor.Context, msg domain.GetChargerStatusRequest) {
	var charger *domain.ChargerStatus
	if snap, ok := state.cache.ChargerStatus(); ok {
		charger = &snap
	}
	stats := state.cache.Stats()
	actorutil.ForRequest(msg).Respond(ctx, domain.GetChargerStatusResponse{
		Charger: charger,
		Battery: &stats,
	})
}

func (state *ChargerActor) closeReaders() {
	state.charger.Close()
	if state.battery != nil {
		state.battery.Close()
	}
}

func chargerModeFromState(chargerState uint16) domain.ChargerMode {
	switch chargerState {
	case victron_modbus.ChargerStateBulk:
		return domain.ChargerModeBulk
	case victron_modbus.ChargerStateAbsorption:
		return domain.ChargerModeAbsorption
	case victron_modbus.ChargerStateFloat:
		return domain.ChargerModeFloat
	default:
		return domain.ChargerModeOff
	}
}
