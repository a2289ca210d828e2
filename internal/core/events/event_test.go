package events

import (
	"testing"

	"github.com/berfenger/effcurve2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurveStatesToUpdateEvents(t *testing.T) {

	discharge := domain.CurveState{
		SensorId:   "l2_wirkungsgradkurve_entladen",
		Summary:    91,
		Attributes: map[string]any{"bin_w": 50},
	}
	charge := domain.CurveState{SensorId: "l2_wirkungsgradkurve_laden"}

	evs := CurveStatesToUpdateEvents(discharge, charge)
	require.Len(t, evs, 2)

	ev, ok := evs[0].(domain.CurveSensorUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, "l2_wirkungsgradkurve_entladen", ev.SensorId())
	assert.Equal(t, 91.0, ev.Value)
	assert.Equal(t, uint(2), ev.Decimals)
	assert.Equal(t, 50, ev.Attributes["bin_w"])

	ev, ok = evs[1].(domain.CurveSensorUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, 0.0, ev.Value)
}

func TestBridgeStateUpdateEvents(t *testing.T) {

	evs := BridgeStateUpdateEvents(true)
	require.Len(t, evs, 1)
	ev := evs[0].(domain.BridgeStateUpdateEvent)
	assert.Equal(t, domain.SENSOR_ID_BRIDGE_STATE, ev.SensorId())
	assert.True(t, ev.Value)
}
