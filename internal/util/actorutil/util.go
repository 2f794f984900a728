package actorutil

import (
	"log/slog"
	"strconv"
	"time"

	"surplus2mqtt/internal/core/domain"
	"surplus2mqtt/internal/core/events"
	"surplus2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

// PipeToSelfWithRecover re-enters the actor with the future result, or with
// mapFn(err) when the request failed or timed out.
func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps an inbound MQTT command to the actor
// request it drives. Unknown device ids map to (nil, nil).
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	switch cmd.DeviceId {
	case events.SWITCH_ID_SURPLUS_STAGE1:
		return domain.SurplusSwitchRequest{
			Stage: domain.SurplusStageI,
			Mode:  switchModeFromPayload(cmd.Payload),
		}, nil
	case events.SWITCH_ID_SURPLUS_STAGE2:
		return domain.SurplusSwitchRequest{
			Stage: domain.SurplusStageII,
			Mode:  switchModeFromPayload(cmd.Payload),
		}, nil
	case events.INPUT_NUMBER_ID_ABSORPTION_MINUTES:
		value, err := strconv.ParseInt(cmd.Payload, 10, 32)
		if err != nil {
			return nil, err
		}
		return domain.SurplusSetAbsorptionToSunsetRequest{
			Minutes: int(value),
		}, nil
	}
	return nil, nil
}

func switchModeFromPayload(payload string) domain.SurplusSwitchMode {
	if payload == "on" {
		return domain.SurplusSwitchOn
	}
	return domain.SurplusSwitchOff
}
