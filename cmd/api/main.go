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

	adactor "github.com/berfenger/effcurve2mqtt/internal/adapter/actor"
	"github.com/berfenger/effcurve2mqtt/internal/config"
	"github.com/berfenger/effcurve2mqtt/internal/core/actor"
	"github.com/berfenger/effcurve2mqtt/internal/core/service"
	"github.com/berfenger/effcurve2mqtt/internal/metrics"
	"github.com/berfenger/effcurve2mqtt/internal/server"
	"github.com/berfenger/effcurve2mqtt/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/afero"
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
	cfg, warnings, err := initConfig()
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

	for _, w := range warnings {
		logger.Warn("config: " + w)
	}

	m := metrics.NewMetrics()
	storage := service.NewFileCurveStorage(afero.NewOsFs(), cfg.Storage.Path, logger)

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, storage, mqttActorProvider(cfg, m, logger), m, logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		logger.Error("could not spawn master actor", zap.Error(err))
		return
	}

	server := server.NewServer(*cfg, ctx, pid, m)
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

	// stopping the master stops the curve actor, which saves the aggregate
	if err := ctx.StopFuture(pid).Wait(); err != nil {
		logger.Warn("master stop", zap.Error(err))
	}
	as.Shutdown()
}

func initConfig() (*config.Config, []string, error) {

	// alias PORT => EFFCURVE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("EFFCURVE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("effcurve")
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
		return nil, nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace", "debug":
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
		return nil, nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check and fix statestream topic
	stateStreamTopic, err := config.CheckMQTTTopic(cfg.MQTT.StateStreamTopic)
	if err != nil {
		return nil, nil, errors.New("invalid statestream topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.StateStreamTopic = stateStreamTopic

	// check bounds and resolve dependent fields
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, nil, err
	}

	return &cfg, warnings, nil
}

func mqttActorProvider(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, m, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.ha_discovery_enable", true)
	viper.SetDefault("mqtt.base_topic", "effcurve")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("mqtt.statestream_topic", "homeassistant")
	viper.SetDefault("channels.primary.label", "L2")
	viper.SetDefault("channels.primary.mode_entity", "")
	viper.SetDefault("channels.primary.plug_entity", "")
	viper.SetDefault("channels.primary.pack_p1_entity", "")
	viper.SetDefault("channels.primary.pack_p2_entity", "")
	viper.SetDefault("channels.secondary.enable", false)
	viper.SetDefault("channels.secondary.label", "L3")
	viper.SetDefault("channels.secondary.mode_entity", "")
	viper.SetDefault("channels.secondary.plug_entity", "")
	viper.SetDefault("channels.secondary.pack_p1_entity", "")
	viper.SetDefault("channels.secondary.pack_p2_entity", "")
	viper.SetDefault("curve.deadband_w", 80)
	viper.SetDefault("curve.x_source", config.X_SOURCE_PLUG)
	viper.SetDefault("curve.out_base", "sensor.l2_wirkungsgradkurve")
	viper.SetDefault("curve.bin_w", 50)
	viper.SetDefault("curve.max_w", 2400)
	viper.SetDefault("curve.sample_s", 10)
	viper.SetDefault("curve.min_x_w", 50)
	viper.SetDefault("curve.min_n_plot", 10)
	viper.SetDefault("curve.y_min", 0)
	viper.SetDefault("curve.y_max", 200)
	viper.SetDefault("curve.max_state_age_s", 0)
	viper.SetDefault("storage.path", config.DEFAULT_STORAGE_FILE)
	viper.SetDefault("storage.save_every_s", 120)
	viper.SetDefault("storage.save_timeout_millis", 2000)
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
