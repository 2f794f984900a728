package actor

import (
	"errors"
	"testing"
	"time"

	"surplus2mqtt/internal/adapter/telemetry"
	"surplus2mqtt/internal/core/domain"
	"surplus2mqtt/internal/util"
	"surplus2mqtt/internal/util/actorutil"
	"surplus2mqtt/pkg/victron_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestChargerActorPollsIntoCache(t *testing.T) {

	assert := assert.New(t)

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

	cfg := util.LoadTestConfig()
	cache := telemetry.NewCache(true)
	es := eventstream.EventStream{}

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewChargerActor(&cfg, charger, battery, cache, &es, logger)
	})
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	result, err := context.RequestFuture(pid, domain.GetChargerStatusRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.GetChargerStatusResponse)
	assert.True(ok)
	assert.NotNil(resp.Charger, "charger snapshot available after first poll")
	assert.Equal(domain.ChargerModeBulk, resp.Charger.Mode, "charger mode")
	assert.Equal(1174, resp.Charger.SolarPowerWatts, "solar power")
	assert.NotNil(resp.Battery)
	assert.InDelta(84.3, resp.Battery.SoC, 0.001, "battery SoC")

	// the shared cache serves the same snapshot to the regulation engine
	mode, modeOk := cache.OperatingMode()
	assert.True(modeOk)
	assert.Equal(domain.ChargerModeBulk, mode)
	assert.Equal(1174, cache.SolarPowerWatts())

	context.Stop(pid)

	as.Shutdown()
}

type brokenChargerReader struct {
}

func (brokenChargerReader) Open() error {
	return nil
}

func (brokenChargerReader) Close() error {
	return nil
}

func (brokenChargerReader) GetState() (*victron_modbus.SolarChargerState, error) {
	return nil, errors.New("read timeout")
}

func TestChargerActorSurvivesPollFailures(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	cfg.ChargerModbusTcp.PollIntervalMillis = 1000

	cache := telemetry.NewCache(true)
	es := eventstream.EventStream{}

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewChargerActor(&cfg, brokenChargerReader{}, nil, cache, &es, logger)
	})
	pid := context.Spawn(props)

	// enough ticks for the failure counter to pass the threshold
	time.Sleep(3500 * time.Millisecond)

	// failing polls keep the actor alive but mark it unhealthy
	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	health, ok := res.(domain.ActorHealthResponse)
	assert.True(ok)
	assert.False(health.Healthy, "health reflects repeated poll failures")

	// no snapshot ever made it into the cache
	res, err = context.RequestFuture(pid, domain.GetChargerStatusRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	status, ok := res.(domain.GetChargerStatusResponse)
	assert.True(ok)
	assert.Nil(status.Charger)
	_, modeOk := cache.OperatingMode()
	assert.False(modeOk)

	context.Stop(pid)

	as.Shutdown()
}
