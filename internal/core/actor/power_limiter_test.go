package actor

import (
	"testing"
	"time"

	adactor "surplus2mqtt/internal/adapter/actor"
	"surplus2mqtt/internal/adapter/suncalc"
	"surplus2mqtt/internal/adapter/telemetry"
	"surplus2mqtt/internal/core/domain"
	"surplus2mqtt/internal/core/service"
	"surplus2mqtt/internal/util"
	"surplus2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPowerLimiterActorCommands(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	cfg.PowerLimiterConfig.IntervalMillis = 1000

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	es := eventstream.EventStream{}

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewTestMQTTActor(&cfg, &es, logger)
	})
	mqttPID := context.Spawn(mqttProps)

	cache := telemetry.NewCache(true)
	sun := suncalc.NewSunClock(cfg.LocationConfig.Latitude, cfg.LocationConfig.Longitude)
	regulator := service.NewSurplusPowerRegulator(service.SurplusSettings{
		StageIEnabled:        true,
		StageIIEnabled:       true,
		StartSoC:             cfg.SurplusConfig.StartSoC,
		BatteryCapacityWh:    cfg.SurplusConfig.BatteryCapacityWh,
		UpperPowerLimit:      cfg.SurplusConfig.UpperPowerLimit,
		TotalUpperPowerLimit: cfg.PowerLimiterConfig.TotalUpperPowerLimit,
	}, cache, cache, sun, logger)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewPowerLimiterActor(&cfg, mqttPID, regulator, &es, logger)
	})
	pid := context.Spawn(props)

	// feed a grid meter sample and let a control tick run
	context.Send(pid, domain.PowerMeterSample{
		Topic:      cfg.PowerMeterConfig.Topics[0],
		PowerWatts: 320,
		ReceivedAt: time.Now(),
	})

	time.Sleep(1500 * time.Millisecond)

	res, err := context.RequestFuture(pid, domain.GetSurplusStatusRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	statusResp, ok := res.(domain.GetSurplusStatusResponse)
	assert.True(ok)
	assert.True(statusResp.Status.StageIOn)
	assert.True(statusResp.Status.StageIIOn)

	// stage II off via command
	res, err = context.RequestFuture(pid, domain.SurplusSwitchRequest{
		Stage: domain.SurplusStageII,
		Mode:  domain.SurplusSwitchOff,
	}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	switchResp, ok := res.(domain.SurplusSwitchResponse)
	assert.True(ok)
	assert.Equal(domain.SurplusStageII, switchResp.Stage)
	assert.False(switchResp.On)

	// out-of-bounds minutes are replaced with the configured default
	res, err = context.RequestFuture(pid, domain.SurplusSetAbsorptionToSunsetRequest{
		Minutes: 999,
	}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	minutesResp, ok := res.(domain.SurplusSetAbsorptionToSunsetResponse)
	assert.True(ok)
	assert.Equal(60, minutesResp.Minutes)

	context.Stop(pid)
	context.Stop(mqttPID)

	as.Shutdown()
}
