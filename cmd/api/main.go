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
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/energyopt2mqtt/internal/adapter/actor"
	"github.com/berfenger/energyopt2mqtt/internal/adapter/provider"
	"github.com/berfenger/energyopt2mqtt/internal/config"
	"github.com/berfenger/energyopt2mqtt/internal/core/actor"
	"github.com/berfenger/energyopt2mqtt/internal/core/service"
	"github.com/berfenger/energyopt2mqtt/internal/server"
	"github.com/berfenger/energyopt2mqtt/internal/util/actorutil"
	"github.com/berfenger/energyopt2mqtt/pkg/sunspec_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
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

	// init Modbus actor provider
	modbusProv, err := modbusActorProvider(cfg, logger)
	if err != nil {
		panic(err)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, modbusProv, mqttActorProvider(cfg, logger), optimizerActorProvider(cfg, logger), logger)
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

	// alias PORT => ENERGYOPT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("ENERGYOPT_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("energyopt")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
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

	// statestream is a multi level topic, wildcards are added by the subscriber
	cfg.MQTT.StatestreamBaseTopic = strings.TrimSuffix(cfg.MQTT.StatestreamBaseTopic, "/")
	if strings.ContainsAny(cfg.MQTT.StatestreamBaseTopic, "+#") {
		return nil, errors.New("config param mqtt.statestream_base_topic cannot contain wildcards")
	}

	// check bounds
	if _, err := cfg.Optimizer.Controls(); err != nil {
		return nil, fmt.Errorf("invalid optimizer config: %w", err)
	}
	if cfg.Optimizer.UpdateIntervalSeconds < 10 {
		return nil, errors.New("config param optimizer.update_interval_seconds should be >= 10")
	}
	if cfg.Optimizer.CycleTimeoutMillis < 100 {
		return nil, errors.New("config param optimizer.cycle_timeout_millis should be >= 100")
	}
	if cfg.Modbus.Enable {
		if cfg.Modbus.Host == "" {
			return nil, errors.New("config param modbus.host is required when modbus is enabled")
		}
		if cfg.Modbus.PollIntervalMillis < 1000 {
			return nil, errors.New("config param modbus.poll_interval_millis should be >= 1000")
		}
		if cfg.Modbus.UnitId > 247 {
			return nil, errors.New("config param modbus.unit_id should be <= 247")
		}
	}

	return &cfg, nil
}

// modbusActorProvider returns nil when the SunSpec poller is disabled.
func modbusActorProvider(cfg *config.Config, logger *zap.Logger) (actor.ModbusActorProvider, error) {
	if !cfg.Modbus.Enable {
		return nil, nil
	}

	storage, err := sunspec_modbus.CreateStorageIntSFModbusReader(cfg.Modbus.Host, cfg.Modbus.Port,
		uint8(cfg.Modbus.UnitId), 1*time.Second, logger, nil)

	if err != nil {
		return nil, err
	}

	pollInterval := time.Duration(cfg.Modbus.PollIntervalMillis) * time.Millisecond
	return func() *adactor.ModbusActor {
		return adactor.NewModbusActor(storage, cfg.Modbus.SocEntity, pollInterval, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func optimizerActorProvider(cfg *config.Config, logger *zap.Logger) actor.OptimizerActorProvider {
	return func(es *eventstream.EventStream) *actor.OptimizerActor {
		adapters := provider.BuildAdapters(cfg.Providers)
		logger.Info("providers",
			zap.String("soc_entity", adapters.Soc.SourceEntityId()),
			zap.String("forecast_entity", adapters.Forecast.SourceEntityId()),
			zap.String("prices_entity", adapters.Prices.SourceEntityId()))
		cycle := service.NewUpdateCycle(adapters.Soc, adapters.Forecast, adapters.Prices,
			service.NewDecisionEngine(), cfg.Optimizer.UpdateInterval(), logger.With(zap.String("component", "update_cycle")))
		return actor.NewOptimizerActor(cfg, cycle, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "energyopt")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("mqtt.statestream_base_topic", "homeassistant/statestream")
	viper.SetDefault("optimizer.battery_capacity", 10)
	viper.SetDefault("optimizer.max_charge_rate", 5)
	viper.SetDefault("optimizer.max_discharge_rate", 5)
	viper.SetDefault("optimizer.min_soc", 20)
	viper.SetDefault("optimizer.max_soc", 95)
	viper.SetDefault("optimizer.strategy", "minimize_cost")
	viper.SetDefault("optimizer.dry_run", true)
	viper.SetDefault("optimizer.automation_enabled", true)
	viper.SetDefault("optimizer.update_interval_seconds", 300)
	viper.SetDefault("optimizer.cycle_timeout_millis", 10000)
	viper.SetDefault("providers.inverter_type", provider.INVERTER_TYPE_SOLAX_MODBUS)
	viper.SetDefault("providers.inverter_entity", "")
	viper.SetDefault("providers.forecast_type", provider.FORECAST_TYPE_SOLCAST)
	viper.SetDefault("providers.forecast_entity", "")
	viper.SetDefault("providers.prices_type", provider.PRICES_TYPE_FRANK_ENERGIE)
	viper.SetDefault("providers.prices_entity", "")
	viper.SetDefault("modbus.enable", false)
	viper.SetDefault("modbus.port", 502)
	viper.SetDefault("modbus.unit_id", 1)
	viper.SetDefault("modbus.poll_interval_millis", 5000)
	viper.SetDefault("modbus.soc_entity", adactor.DEFAULT_SOC_ENTITY)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
