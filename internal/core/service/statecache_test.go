package service

import (
	"testing"
	"time"

	"github.com/berfenger/effcurve2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {

	v, err := ParseState(" 123.5 ")
	require.NoError(t, err)
	assert.Equal(t, 123.5, v)

	v, err = ParseState("-40")
	require.NoError(t, err)
	assert.Equal(t, -40.0, v)

	for _, raw := range []string{"", "unknown", "Unavailable", "None", "null", "abc", "NaN", "inf"} {
		_, err := ParseState(raw)
		assert.ErrorIs(t, err, ErrUnavailable, raw)
	}
}

func TestEntityStateCache(t *testing.T) {

	now := time.Unix(1_700_000_000, 0)
	cache := NewEntityStateCache(0)

	_, ok := cache.Reading("sensor.plug", now)
	assert.False(t, ok, "unknown entity")

	cache.Update(domain.EntityStateEvent{EntityId: "sensor.plug", State: "250", Time: now})
	v, ok := cache.Reading("sensor.plug", now.Add(time.Hour))
	assert.True(t, ok, "no max age configured")
	assert.Equal(t, 250.0, v)

	cache.Update(domain.EntityStateEvent{EntityId: "sensor.plug", State: "unavailable", Time: now})
	_, ok = cache.Reading("sensor.plug", now)
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Len())
}

func TestEntityStateCacheMaxAge(t *testing.T) {

	now := time.Unix(1_700_000_000, 0)
	cache := NewEntityStateCache(30 * time.Second)
	cache.Update(domain.EntityStateEvent{EntityId: "sensor.mode", State: "200", Time: now})

	v, err := cache.Value("sensor.mode", now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 200.0, v)

	_, err = cache.Value("sensor.mode", now.Add(31*time.Second))
	assert.ErrorIs(t, err, ErrStale)
}
