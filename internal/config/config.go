package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

const (
	X_SOURCE_PLUG = "plug"
	X_SOURCE_PACK = "pack"

	DEFAULT_STORAGE_FILE = "wg_curve_all.json"
)

type Config struct {
	LogLevel zapcore.Level
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Curve    CurveConfig    `mapstructure:"curve"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Port     uint           `mapstructure:"port"`
	HttpLog  bool           `mapstructure:"http_log"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
	StateStreamTopic  string `mapstructure:"statestream_topic"`
}

type ChannelsConfig struct {
	Primary   ChannelConfig `mapstructure:"primary"`
	Secondary ChannelConfig `mapstructure:"secondary"`
}

// ChannelConfig names the four entities of one measurement group.
type ChannelConfig struct {
	Enable       bool   `mapstructure:"enable"`
	Label        string `mapstructure:"label"`
	ModeEntity   string `mapstructure:"mode_entity"`
	PlugEntity   string `mapstructure:"plug_entity"`
	PackP1Entity string `mapstructure:"pack_p1_entity"`
	PackP2Entity string `mapstructure:"pack_p2_entity"`
}

type CurveConfig struct {
	DeadbandWatt   float64 `mapstructure:"deadband_w"`
	XSource        string  `mapstructure:"x_source"`
	OutBase        string  `mapstructure:"out_base"`
	BinWidthWatt   int     `mapstructure:"bin_w"`
	MaxWatt        int     `mapstructure:"max_w"`
	SampleSeconds  int     `mapstructure:"sample_s"`
	MinXWatt       float64 `mapstructure:"min_x_w"`
	MinNPlot       int     `mapstructure:"min_n_plot"`
	YMin           float64 `mapstructure:"y_min"`
	YMax           float64 `mapstructure:"y_max"`
	MaxStateAgeSec int     `mapstructure:"max_state_age_s"`
}

type StorageConfig struct {
	Path              string `mapstructure:"path"`
	SaveEverySeconds  int    `mapstructure:"save_every_s"`
	SaveTimeoutMillis uint32 `mapstructure:"save_timeout_millis"`
}

// Entities returns the entity ids of the channel in mode, plug, p1, p2 order.
func (c ChannelConfig) Entities() []string {
	return []string{c.ModeEntity, c.PlugEntity, c.PackP1Entity, c.PackP2Entity}
}

func (c ChannelConfig) Complete() bool {
	for _, id := range c.Entities() {
		if strings.TrimSpace(id) == "" {
			return false
		}
	}
	return true
}

// ActiveChannels returns the primary channel followed by the secondary one when enabled.
func (c *Config) ActiveChannels() []ChannelConfig {
	channels := []ChannelConfig{c.Channels.Primary}
	if c.Channels.Secondary.Enable {
		channels = append(channels, c.Channels.Secondary)
	}
	return channels
}

// EntityIds returns the distinct entity ids read by all active channels.
func (c *Config) EntityIds() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, ch := range c.ActiveChannels() {
		for _, id := range ch.Entities() {
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (c CurveConfig) DischargeEntity() string {
	return c.OutBase + "_entladen"
}

func (c CurveConfig) ChargeEntity() string {
	return c.OutBase + "_laden"
}

// Validate normalizes dependent fields and checks bounds. Problems that only
// disable an optional feature are returned as warnings.
func (c *Config) Validate() ([]string, error) {
	var warnings []string

	c.Curve.XSource = strings.ToLower(strings.TrimSpace(c.Curve.XSource))
	if c.Curve.XSource != X_SOURCE_PLUG && c.Curve.XSource != X_SOURCE_PACK {
		return nil, fmt.Errorf("config param curve.x_source must be %q or %q", X_SOURCE_PLUG, X_SOURCE_PACK)
	}
	if c.Curve.BinWidthWatt <= 0 {
		return nil, errors.New("config param curve.bin_w should be > 0")
	}
	if c.Curve.MaxWatt <= 0 {
		return nil, errors.New("config param curve.max_w should be > 0")
	}
	if c.Curve.SampleSeconds <= 0 {
		return nil, errors.New("config param curve.sample_s should be > 0")
	}
	if c.Curve.YMin > c.Curve.YMax {
		return nil, errors.New("config param curve.y_min must be <= curve.y_max")
	}
	if c.Curve.DeadbandWatt < 0 {
		return nil, errors.New("config param curve.deadband_w should be >= 0")
	}
	if c.Curve.OutBase == "" {
		return nil, errors.New("config param curve.out_base is required")
	}
	if c.Storage.SaveEverySeconds < 0 {
		return nil, errors.New("config param storage.save_every_s should be >= 0")
	}

	c.Channels.Primary.Enable = true
	if c.Channels.Primary.Label == "" {
		c.Channels.Primary.Label = "L2"
	}
	if !c.Channels.Primary.Complete() {
		return nil, errors.New("config params channels.primary.* entities are required")
	}

	sec := &c.Channels.Secondary
	if sec.Label == "" {
		sec.Label = "L3"
	}
	if sec.ModeEntity == "" {
		sec.ModeEntity = c.Channels.Primary.ModeEntity
	}
	if sec.Enable && !sec.Complete() {
		warnings = append(warnings, "channels.secondary.enable=true but some channels.secondary entities are missing. secondary channel disabled")
		sec.Enable = false
	}

	c.Storage.Path = ResolveStoragePath(c.Storage.Path)

	return warnings, nil
}

// ResolveStoragePath appends the default file name when path is empty or an
// existing directory.
func ResolveStoragePath(path string) string {
	if path == "" {
		return DEFAULT_STORAGE_FILE
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, DEFAULT_STORAGE_FILE)
	}
	return path
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
