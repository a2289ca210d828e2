package util

import (
	"github.com/berfenger/effcurve2mqtt/internal/config"

	"go.uber.org/zap"
)

// LoadTestConfig returns a validated configuration with a single channel
// and a fast sampling period.
func LoadTestConfig() config.Config {
	cfg := config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "effcurve",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
			StateStreamTopic:  "homeassistant",
		},
		Channels: config.ChannelsConfig{
			Primary: config.ChannelConfig{
				ModeEntity:   "sensor.l2_mode",
				PlugEntity:   "sensor.l2_plug_power",
				PackP1Entity: "sensor.l2_pack_p1",
				PackP2Entity: "sensor.l2_pack_p2",
			},
		},
		Curve: config.CurveConfig{
			DeadbandWatt:  80,
			XSource:       config.X_SOURCE_PLUG,
			OutBase:       "sensor.l2_wirkungsgradkurve",
			BinWidthWatt:  50,
			MaxWatt:       2400,
			SampleSeconds: 1,
			MinXWatt:      50,
			MinNPlot:      10,
			YMin:          0,
			YMax:          200,
		},
		Storage: config.StorageConfig{
			Path:              "/data/wg_curve_all.json",
			SaveEverySeconds:  120,
			SaveTimeoutMillis: 2000,
		},
		Port: 8080,
	}
	if _, err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}
