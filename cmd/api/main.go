package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "surplus2mqtt/internal/adapter/actor"
	"surplus2mqtt/internal/adapter/suncalc"
	"surplus2mqtt/internal/adapter/telemetry"
	"surplus2mqtt/internal/config"
	"surplus2mqtt/internal/core/actor"
	"surplus2mqtt/internal/core/port"
	"surplus2mqtt/internal/core/service"
	"surplus2mqtt/internal/server"
	"surplus2mqtt/internal/util/actorutil"
	"surplus2mqtt/pkg/victron_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// telemetry cache shared by the charger actor and the regulation engine
	cache := telemetry.NewCache(cfg.BatteryConfig.Enabled)

	// init charger actor provider
	chargerProv, err := chargerActorProvider(cfg, cache, logger)
	if err != nil {
		panic(err)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, chargerProv, mqttActorProvider(cfg, logger), regulatorProvider(cfg, cache, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => SURPLUS_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SURPLUS_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("surplus")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if cfg.ChargerModbusTcp.PollIntervalMillis < 1000 {
		return nil, errors.New("config param charger_modbus_tcp.poll_interval_millis should be >= 1000")
	}
	if cfg.PowerLimiterConfig.IntervalMillis < 1000 {
		return nil, errors.New("config param power_limiter.interval_millis should be >= 1000")
	}
	if cfg.PowerLimiterConfig.TotalUpperPowerLimit <= 0 {
		return nil, errors.New("config param power_limiter.total_upper_power_limit should be > 0")
	}
	if cfg.SurplusConfig.UpperPowerLimit > cfg.PowerLimiterConfig.TotalUpperPowerLimit {
		return nil, errors.New("config param surplus.upper_power_limit must be <= power_limiter.total_upper_power_limit")
	}
	if len(cfg.PowerMeterConfig.Topics) == 0 {
		return nil, errors.New("config param power_meter.topics should hold at least one topic")
	}

	return &cfg, nil
}

func chargerActorProvider(cfg *config.Config, cache *telemetry.Cache, logger *zap.Logger) (actor.ChargerActorProvider, error) {

	modbusLogger := logrus.StandardLogger()
	if cfg.LogLevel == zap.DebugLevel {
		modbusLogger.SetLevel(logrus.TraceLevel)
	}

	var charger victron_modbus.SolarChargerModbusReader
	var battery victron_modbus.BatteryMonitorModbusReader
	var err error

	if cfg.ChargerModbusTcp.Host == "test" {
		charger, err = victron_modbus.CreateTestSolarChargerModbusReader()
		if err != nil {
			return nil, err
		}
		battery, err = victron_modbus.CreateTestBatteryMonitorModbusReader()
		if err != nil {
			return nil, err
		}
	} else {
		charger, err = victron_modbus.CreateSolarChargerGXModbusReader(cfg.ChargerModbusTcp.Host,
			cfg.ChargerModbusTcp.Port, uint8(cfg.ChargerModbusTcp.ChargerUnitId), 1*time.Second,
			modbusLogger, nil)
		if err != nil {
			return nil, err
		}
		if cfg.BatteryConfig.Enabled && cfg.ChargerModbusTcp.BatteryUnitId > 0 {
			battery, err = victron_modbus.CreateBatteryMonitorGXModbusReader(cfg.ChargerModbusTcp.Host,
				cfg.ChargerModbusTcp.Port, uint8(cfg.ChargerModbusTcp.BatteryUnitId), 1*time.Second,
				modbusLogger, nil)
			if err != nil {
				return nil, err
			}
		}
	}

	return func(es *eventstream.EventStream) *adactor.ChargerActor {
		return adactor.NewChargerActor(cfg, charger, battery, cache, es, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func regulatorProvider(cfg *config.Config, cache *telemetry.Cache, logger *zap.Logger) actor.RegulatorProvider {
	return func() port.SurplusPowerRegulator {
		sun := suncalc.NewSunClock(cfg.LocationConfig.Latitude, cfg.LocationConfig.Longitude)
		return service.NewSurplusPowerRegulator(service.SurplusSettings{
			StageIEnabled:             cfg.SurplusConfig.StageIEnabled,
			StageIIEnabled:            cfg.SurplusConfig.StageIIEnabled,
			StartSoC:                  cfg.SurplusConfig.StartSoC,
			BatteryCapacityWh:         cfg.SurplusConfig.BatteryCapacityWh,
			BatterySafetyPercent:      cfg.SurplusConfig.BatterySafetyPercent,
			AbsorptionToSunsetMinutes: cfg.SurplusConfig.AbsorptionToSunsetMinutes,
			UpperPowerLimit:           cfg.SurplusConfig.UpperPowerLimit,
			TotalUpperPowerLimit:      cfg.PowerLimiterConfig.TotalUpperPowerLimit,
			PowerHysteresis:           cfg.PowerLimiterConfig.TargetPowerConsumptionHysteresis,
			VerboseLogging:            cfg.PowerLimiterConfig.VerboseLogging,
		}, cache, cache, sun, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "surplus")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("charger_modbus_tcp.port", 502)
	viper.SetDefault("charger_modbus_tcp.poll_interval_millis", 5000)
	viper.SetDefault("power_meter.max_age_seconds", 30)
	viper.SetDefault("power_limiter.interval_millis", 5000)
	viper.SetDefault("power_limiter.target_power_consumption", 0)
	viper.SetDefault("power_limiter.target_power_consumption_hysteresis", 25)
	viper.SetDefault("surplus.start_soc", 70)
	viper.SetDefault("surplus.battery_capacity_wh", 2500)
	viper.SetDefault("surplus.battery_safety_percent", 20)
	viper.SetDefault("surplus.absorption_to_sunset_minutes", 60)
	viper.SetDefault("battery.enabled", true)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
