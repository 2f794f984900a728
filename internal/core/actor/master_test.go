package actor

import (
	"fmt"
	"testing"
	"time"

	adactor "surplus2mqtt/internal/adapter/actor"
	"surplus2mqtt/internal/adapter/suncalc"
	"surplus2mqtt/internal/adapter/telemetry"
	"surplus2mqtt/internal/core/domain"
	"surplus2mqtt/internal/core/port"
	"surplus2mqtt/internal/core/service"
	"surplus2mqtt/internal/util"
	"surplus2mqtt/pkg/victron_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	charger, err := victron_modbus.CreateTestSolarChargerModbusReader()
	if err != nil {
		t.Error(err)
		return
	}
	battery, err := victron_modbus.CreateTestBatteryMonitorModbusReader()
	if err != nil {
		t.Error(err)
		return
	}
	cache := telemetry.NewCache(true)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func(es *eventstream.EventStream) *adactor.ChargerActor {
			return adactor.NewChargerActor(&cfg, charger, battery, cache, es, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, func() port.SurplusPowerRegulator {
			sun := suncalc.NewSunClock(cfg.LocationConfig.Latitude, cfg.LocationConfig.Longitude)
			return service.NewSurplusPowerRegulator(service.SurplusSettings{
				StageIEnabled:        cfg.SurplusConfig.StageIEnabled,
				StageIIEnabled:       cfg.SurplusConfig.StageIIEnabled,
				StartSoC:             cfg.SurplusConfig.StartSoC,
				BatteryCapacityWh:    cfg.SurplusConfig.BatteryCapacityWh,
				UpperPowerLimit:      cfg.SurplusConfig.UpperPowerLimit,
				TotalUpperPowerLimit: cfg.PowerLimiterConfig.TotalUpperPowerLimit,
			}, cache, cache, sun, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		//return
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	// surplus status request is routed to the power limiter
	res, err = context.RequestFuture(pid, domain.GetSurplusStatusRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	statusResp, ok := res.(domain.GetSurplusStatusResponse)
	assert.True(t, ok)
	assert.Equal(t, "Idle", statusResp.Status.StateText)

	context.Stop(pid)

	as.Shutdown()
}
