package domain

import (
	"fmt"
	"time"
)

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// CurveSensorUpdateEvent carries a curve summary plus its attribute bundle.
type CurveSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value      float64
	Decimals   uint
	Attributes map[string]any
}

// EntityStateEvent is a raw state change of an upstream Home Assistant entity.
type EntityStateEvent struct {
	EntityId string
	State    string
	Time     time.Time
}

// ensure interface compliance
var _ SensorUpdateEvent = (*CurveSensorUpdateEvent)(nil)
