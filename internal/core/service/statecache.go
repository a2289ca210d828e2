package service

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/effcurve2mqtt/internal/core/domain"
	"github.com/berfenger/effcurve2mqtt/internal/core/port"
)

var (
	ErrUnavailable = errors.New("entity state unavailable")
	ErrStale       = errors.New("entity state is stale")
)

type entityState struct {
	raw     string
	updated time.Time
}

// EntityStateCache keeps the last raw state of every upstream entity.
// It is owned by a single actor and is not safe for concurrent use.
type EntityStateCache struct {
	states map[string]entityState
	maxAge time.Duration
}

// NewEntityStateCache creates a cache. A positive maxAge makes older states
// read as unavailable.
func NewEntityStateCache(maxAge time.Duration) *EntityStateCache {
	return &EntityStateCache{
		states: make(map[string]entityState),
		maxAge: maxAge,
	}
}

func (c *EntityStateCache) Update(ev domain.EntityStateEvent) {
	c.states[ev.EntityId] = entityState{
		raw:     ev.State,
		updated: ev.Time,
	}
}

func (c *EntityStateCache) Len() int {
	return len(c.states)
}

// Value returns the parsed state of entityId.
func (c *EntityStateCache) Value(entityId string, now time.Time) (float64, error) {
	st, ok := c.states[entityId]
	if !ok {
		return 0, ErrUnavailable
	}
	if c.maxAge > 0 && now.Sub(st.updated) > c.maxAge {
		return 0, ErrStale
	}
	return ParseState(st.raw)
}

func (c *EntityStateCache) Reading(entityId string, now time.Time) (float64, bool) {
	v, err := c.Value(entityId, now)
	return v, err == nil
}

// ParseState converts a Home Assistant state string into a number.
func ParseState(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "", "unknown", "unavailable", "none", "null":
		return 0, ErrUnavailable
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrUnavailable
	}
	return v, nil
}

// ensure interface compliance
var _ port.StateSource = (*EntityStateCache)(nil)
