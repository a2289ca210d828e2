package events

import (
	. "github.com/berfenger/effcurve2mqtt/internal/core/domain"
)

// CurveStateToUpdateEvent maps a published curve view to the sensor event
// delivered to the MQTT actor.
func CurveStateToUpdateEvent(cs CurveState) CurveSensorUpdateEvent {
	return CurveSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: cs.SensorId,
		},
		Value:      cs.Summary,
		Decimals:   2,
		Attributes: cs.Attributes,
	}
}

func CurveStatesToUpdateEvents(states ...CurveState) []any {
	var events []any
	for _, cs := range states {
		events = append(events, CurveStateToUpdateEvent(cs))
	}
	return events
}

func BridgeStateUpdateEvents(online bool) []any {
	var events []any
	events = append(events, BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	})
	return events
}
