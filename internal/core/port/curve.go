package port

import (
	"time"

	"github.com/berfenger/effcurve2mqtt/internal/config"
	"github.com/berfenger/effcurve2mqtt/internal/core/curve"
	"github.com/berfenger/effcurve2mqtt/internal/core/domain"
)

// StateSource yields the current numeric reading of an entity. ok is false
// when the entity is unknown, unavailable, unparsable or stale.
type StateSource interface {
	Reading(entityId string, now time.Time) (value float64, ok bool)
}

// CurveStorage is the durable home of the aggregate.
type CurveStorage interface {
	// Load never fails: missing or corrupt content yields an empty aggregate.
	Load() *curve.Aggregate
	Save(agg *curve.Aggregate) error
	Info() domain.StorageInfo
}

// EfficiencySampler turns one channel's readings into at most one observation.
type EfficiencySampler interface {
	Sample(channel config.ChannelConfig, source StateSource, agg *curve.Aggregate, now time.Time) domain.SampleResult
}
