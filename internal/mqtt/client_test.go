package mqtt

import (
	"testing"

	"github.com/berfenger/effcurve2mqtt/internal/config"
	"github.com/berfenger/effcurve2mqtt/internal/core/domain"

	pmqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMessage struct {
	pmqtt.Message
	topic   string
	payload string
}

func (m testMessage) Topic() string {
	return m.topic
}

func (m testMessage) Payload() []byte {
	return []byte(m.payload)
}

func testClient() *MQTTClient {
	cfg := &config.Config{
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "effcurve",
			HADiscoveryTopic: "homeassistant",
			StateStreamTopic: "homeassistant",
		},
	}
	return CreateMQTTClient(cfg, OptsFromConfig(cfg), nil, nil)
}

func TestEntityStateTopic(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	assert.Equal("homeassistant/sensor/l2_plug_power/state", c.EntityStateTopic("sensor.l2_plug_power"))
	assert.Equal("homeassistant/input_number/mode/state", c.EntityStateTopic("input_number.mode"))
	assert.Equal("homeassistant/sensor/bare/state", c.EntityStateTopic("bare"))
}

func TestParseEntityState(t *testing.T) {

	c := testClient()

	parsed, err := c.ParseEntityState(testMessage{topic: "homeassistant/sensor/l2_plug_power/state", payload: "123.4"})
	require.NoError(t, err)
	assert.Equal(t, "sensor.l2_plug_power", parsed.EntityId)
	assert.Equal(t, "123.4", parsed.State)

	parsed, err = c.ParseEntityState(testMessage{topic: "homeassistant/sensor/mode/state", payload: `"unavailable"`})
	require.NoError(t, err)
	assert.Equal(t, "unavailable", parsed.State)
}

func TestParseEntityStateFail(t *testing.T) {

	c := testClient()

	for _, topic := range []string{
		"homeassistant/sensor/l2_plug_power/attributes",
		"homeassistant/sensor/l2_plug_power/config",
		"other/sensor/l2_plug_power/state",
		"homeassistant/sensor/dev/l2/config",
	} {
		_, err := c.ParseEntityState(testMessage{topic: topic, payload: "1"})
		assert.Error(t, err, topic)
	}
}

func TestSensorTopics(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	assert.Equal("effcurve/bridge/state", c.BridgeStateTopic())
	assert.Equal("effcurve/sensor/curve_laden/state", c.SensorStateTopic("curve_laden"))
	assert.Equal("effcurve/sensor/curve_laden/attributes", c.SensorAttributesTopic("curve_laden"))
}

func TestCurveSensorDiscovery(t *testing.T) {

	c := testClient()
	dev := domain.BridgeDevice("effcurve")
	sensors := domain.CurveSensors(dev, "sensor.l2_curve_entladen", "sensor.l2_curve_laden")
	require.Len(t, sensors, 2)

	msg := GenericSensorToHADiscoveryMessage(c, sensors[0])
	assert.Equal(t, "effcurve/sensor/l2_curve_entladen/state", msg.StateTopic)
	assert.Equal(t, "effcurve/sensor/l2_curve_entladen/attributes", msg.JsonAttributesTopic)
	assert.Equal(t, "effcurve/bridge/state", msg.AvTopic)
	assert.Equal(t, "%", msg.UnitOfMeasurement)
	assert.Equal(t, "mqtt", msg.Platform)
	assert.Empty(t, msg.PayloadOn)

	assert.Equal(t, "homeassistant/sensor/"+dev.Id+"/l2_curve_entladen/config", c.HADiscoverySensorTopic(sensors[0]))
}

func TestBridgeSensorDiscovery(t *testing.T) {

	c := testClient()
	sensors := domain.BridgeSensors(domain.BridgeDevice("effcurve"))
	require.Len(t, sensors, 1)

	msg := GenericSensorToHADiscoveryMessage(c, sensors[0])
	assert.Equal(t, "effcurve/bridge/state", msg.StateTopic)
	assert.Equal(t, MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
	assert.Equal(t, MQTT_PAYLOAD_OFFLINE, msg.PayloadOff)
	assert.Empty(t, msg.JsonAttributesTopic)

	// the bridge is the only binary sensor and reports on the availability topic
	assert.Equal(t, domain.SENSOR_TYPE_BINARY, sensors[0].SensorType)
	assert.Equal(t, msg.AvTopic, msg.StateTopic)
	assert.Equal(t, "homeassistant/binary_sensor/"+sensors[0].Device.Id+"/bridge/config", c.HADiscoverySensorTopic(sensors[0]))
}
