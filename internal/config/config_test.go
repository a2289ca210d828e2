package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Channels: ChannelsConfig{
			Primary: ChannelConfig{
				ModeEntity:   "sensor.mode",
				PlugEntity:   "sensor.plug",
				PackP1Entity: "sensor.p1",
				PackP2Entity: "sensor.p2",
			},
		},
		Curve: CurveConfig{
			DeadbandWatt:  80,
			XSource:       " Plug ",
			OutBase:       "sensor.curve",
			BinWidthWatt:  50,
			MaxWatt:       2400,
			SampleSeconds: 10,
			MinXWatt:      50,
			YMax:          200,
		},
		Storage: StorageConfig{
			SaveEverySeconds: 120,
		},
	}
}

func TestValidateNormalizes(t *testing.T) {

	cfg := validConfig()
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, X_SOURCE_PLUG, cfg.Curve.XSource)
	assert.Equal(t, "L2", cfg.Channels.Primary.Label)
	assert.Equal(t, "L3", cfg.Channels.Secondary.Label)
	assert.Equal(t, "sensor.mode", cfg.Channels.Secondary.ModeEntity, "secondary mode defaults to primary")
	assert.Equal(t, DEFAULT_STORAGE_FILE, cfg.Storage.Path)
	assert.Len(t, cfg.ActiveChannels(), 1)
}

func TestValidateDisablesIncompleteSecondary(t *testing.T) {

	cfg := validConfig()
	cfg.Channels.Secondary = ChannelConfig{
		Enable:       true,
		PlugEntity:   "sensor.l3_plug",
		PackP1Entity: "sensor.l3_p1",
	}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.False(t, cfg.Channels.Secondary.Enable)
	assert.Len(t, cfg.ActiveChannels(), 1)
	assert.NotContains(t, cfg.EntityIds(), "sensor.l3_plug")
}

func TestValidateKeepsCompleteSecondary(t *testing.T) {

	cfg := validConfig()
	cfg.Channels.Secondary = ChannelConfig{
		Enable:       true,
		PlugEntity:   "sensor.l3_plug",
		PackP1Entity: "sensor.l3_p1",
		PackP2Entity: "sensor.l3_p2",
	}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, cfg.Channels.Secondary.Enable)

	channels := cfg.ActiveChannels()
	require.Len(t, channels, 2)
	assert.Equal(t, "L3", channels[1].Label)

	// the shared mode entity is listed once
	assert.Equal(t, []string{"sensor.mode", "sensor.plug", "sensor.p1", "sensor.p2",
		"sensor.l3_plug", "sensor.l3_p1", "sensor.l3_p2"}, cfg.EntityIds())
}

func TestValidateRejectsBadBounds(t *testing.T) {

	cases := map[string]func(c *Config){
		"x_source":      func(c *Config) { c.Curve.XSource = "grid" },
		"bin_w":         func(c *Config) { c.Curve.BinWidthWatt = 0 },
		"max_w":         func(c *Config) { c.Curve.MaxWatt = -1 },
		"sample_s":      func(c *Config) { c.Curve.SampleSeconds = 0 },
		"y range":       func(c *Config) { c.Curve.YMin = 150; c.Curve.YMax = 100 },
		"deadband":      func(c *Config) { c.Curve.DeadbandWatt = -5 },
		"out_base":      func(c *Config) { c.Curve.OutBase = "" },
		"primary":       func(c *Config) { c.Channels.Primary.PlugEntity = "" },
		"save interval": func(c *Config) { c.Storage.SaveEverySeconds = -1 },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(&cfg)
		_, err := cfg.Validate()
		assert.Error(t, err, name)
	}
}

func TestResolveStoragePath(t *testing.T) {

	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, DEFAULT_STORAGE_FILE), ResolveStoragePath(dir))

	file := filepath.Join(dir, "curve.json")
	assert.Equal(t, file, ResolveStoragePath(file))

	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o644))
	assert.Equal(t, file, ResolveStoragePath(file), "existing file kept")
}

func TestOutputEntities(t *testing.T) {

	c := CurveConfig{OutBase: "sensor.l2_wirkungsgradkurve"}
	assert.Equal(t, "sensor.l2_wirkungsgradkurve_entladen", c.DischargeEntity())
	assert.Equal(t, "sensor.l2_wirkungsgradkurve_laden", c.ChargeEntity())
}

func TestCheckMQTTTopic(t *testing.T) {

	topic, err := CheckMQTTTopic("EffCurve_1")
	require.NoError(t, err)
	assert.Equal(t, "effcurve_1", topic)

	_, err = CheckMQTTTopic("bad/topic")
	assert.Error(t, err)
}
