package mqtt

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/effcurve2mqtt/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
)

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("effcurve_%d", rand.IntN(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:            mqtt.NewClient(opts),
		cfg:               cfg.MQTT,
		stateStreamRegexp: stateStreamExtractor(cfg.MQTT.StateStreamTopic),
	}
}

type MQTTClient struct {
	client            mqtt.Client
	cfg               config.MQTTConfig
	stateStreamRegexp *regexp.Regexp
}

// ParsedEntityState is a state message forwarded by Home Assistant's mqtt_statestream.
type ParsedEntityState struct {
	EntityId string
	State    string
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) SensorAttributesTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/attributes", c.baseTopic(), sensorId)
}

func (c *MQTTClient) DiscoveryPrefix() string {
	if c.cfg.HADiscoveryTopic == "" {
		return "homeassistant"
	}
	return c.cfg.HADiscoveryTopic
}

// EntityStateTopic is the statestream topic carrying the state of entityId.
func (c *MQTTClient) EntityStateTopic(entityId string) string {
	return entityStateTopic(c.cfg.StateStreamTopic, entityId)
}

func (c *MQTTClient) ParseEntityState(msg mqtt.Message) (*ParsedEntityState, error) {
	matches := c.stateStreamRegexp.FindStringSubmatch(msg.Topic())
	if len(matches) != 3 {
		return nil, errors.New("not a statestream state topic")
	}
	return &ParsedEntityState{
		EntityId: matches[1] + "." + matches[2],
		State:    unquote(string(msg.Payload())),
	}, nil
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	waitAsync(token, "publish", continuation, timeout)
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	waitAsync(token, "subscribe", continuation, timeout)
}

// SubscribeToEntityStates subscribes to the statestream topics of all entityIds.
func (c *MQTTClient) SubscribeToEntityStates(entityIds []string, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	filters := make(map[string]byte, len(entityIds))
	for _, id := range entityIds {
		filters[c.EntityStateTopic(id)] = 1
	}
	token := c.client.SubscribeMultiple(filters, handler)
	waitAsync(token, "subscribe", continuation, timeout)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	waitAsync(token, "connect", continuation, timeout)
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func waitAsync(token mqtt.Token, op string, continuation func(error), timeout time.Duration) {
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(fmt.Errorf("MQTT %s timed out", op))
		} else {
			continuation(token.Error())
		}
	}()
}

func entityStateTopic(stateStreamTopic, entityId string) string {
	domain, objectId, ok := strings.Cut(entityId, ".")
	if !ok {
		domain, objectId = "sensor", entityId
	}
	return fmt.Sprintf("%s/%s/%s/state", stateStreamTopic, domain, objectId)
}

func stateStreamExtractor(stateStreamTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/([a-z0-9_]+)/([a-zA-Z0-9_]+)/state$", regexp.QuoteMeta(stateStreamTopic)))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}

// statestream may publish JSON encoded strings
func unquote(payload string) string {
	s := strings.TrimSpace(payload)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
