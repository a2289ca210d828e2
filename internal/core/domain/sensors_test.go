package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectId(t *testing.T) {

	assert.Equal(t, "l2_wirkungsgradkurve_laden", ObjectId("sensor.l2_wirkungsgradkurve_laden"))
	assert.Equal(t, "plain", ObjectId("plain"))
}

func TestCurveSensors(t *testing.T) {

	dev := BridgeDevice("effcurve")
	sensors := CurveSensors(dev, "sensor.curve_entladen", "sensor.curve_laden")
	require.Len(t, sensors, 2)

	assert.Equal(t, "curve_entladen", sensors[0].Id)
	assert.Equal(t, FRIENDLY_NAME_DISCHARGE, sensors[0].Name)
	assert.Equal(t, "curve_laden", sensors[1].Id)
	assert.Equal(t, FRIENDLY_NAME_CHARGE, sensors[1].Name)
	for _, s := range sensors {
		assert.True(t, s.HasAttributes)
		assert.Equal(t, UNIT_PERCENT, s.UnitOfMeasurement)
		assert.Contains(t, s.UniqueId, dev.Id)
	}
	assert.NotEqual(t, sensors[0].UniqueId, sensors[1].UniqueId)
}

func TestBridgeDeviceIsStable(t *testing.T) {

	a := BridgeDevice("effcurve")
	b := BridgeDevice("effcurve")
	c := BridgeDevice("other")
	assert.Equal(t, a.Id, b.Id)
	assert.NotEqual(t, a.Id, c.Id)
	assert.Equal(t, SENSOR_ID_BRIDGE_STATE, BridgeSensors(a)[0].Id)
}
