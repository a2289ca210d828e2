package service

import (
	"math"
	"time"

	"github.com/berfenger/effcurve2mqtt/internal/config"
	"github.com/berfenger/effcurve2mqtt/internal/core/curve"
	"github.com/berfenger/effcurve2mqtt/internal/core/domain"
	"github.com/berfenger/effcurve2mqtt/internal/core/port"

	"go.uber.org/zap"
)

type DefaultEfficiencySampler struct {
	XSource      string
	DeadbandWatt float64
	MinXWatt     float64
	BinWidthWatt int
	MaxWatt      int
	ValidRange   curve.Range
	Logger       *zap.Logger
}

func NewDefaultEfficiencySampler(cfg config.CurveConfig, logger *zap.Logger) *DefaultEfficiencySampler {
	return &DefaultEfficiencySampler{
		XSource:      cfg.XSource,
		DeadbandWatt: cfg.DeadbandWatt,
		MinXWatt:     cfg.MinXWatt,
		BinWidthWatt: cfg.BinWidthWatt,
		MaxWatt:      cfg.MaxWatt,
		ValidRange:   curve.Range{Min: cfg.YMin, Max: cfg.YMax},
		Logger:       logger,
	}
}

func (s *DefaultEfficiencySampler) Sample(channel config.ChannelConfig, source port.StateSource,
	agg *curve.Aggregate, now time.Time) domain.SampleResult {

	result := domain.SampleResult{Channel: channel.Label}

	mode, ok := source.Reading(channel.ModeEntity, now)
	if !ok {
		result.Outcome = domain.SAMPLE_NO_MODE
		return result
	}

	plug, okPlug := source.Reading(channel.PlugEntity, now)
	p1, okP1 := source.Reading(channel.PackP1Entity, now)
	p2, okP2 := source.Reading(channel.PackP2Entity, now)
	if !okPlug || !okP1 || !okP2 {
		result.Outcome = domain.SAMPLE_NO_READING
		return result
	}

	pack := p1 + p2

	x := math.Abs(plug)
	if s.XSource == config.X_SOURCE_PACK {
		x = math.Abs(pack)
	}
	result.X = x
	if x < s.MinXWatt || x > float64(s.MaxWatt) {
		result.Outcome = domain.SAMPLE_OUT_OF_RANGE
		return result
	}

	dir, ok := curve.Classify(mode, s.DeadbandWatt)
	if !ok {
		result.Outcome = domain.SAMPLE_DEADBAND
		return result
	}
	result.Direction = dir

	y, ok := curve.Efficiency(dir, plug, pack, s.ValidRange)
	if !ok {
		result.Outcome = domain.SAMPLE_NO_EFFICIENCY
		return result
	}
	result.Y = y

	if !agg.Bins(dir).Add(x, y, s.BinWidthWatt, s.MaxWatt, now) {
		result.Outcome = domain.SAMPLE_NO_BIN
		return result
	}

	result.Outcome = domain.SAMPLE_RECORDED
	if s.Logger != nil {
		s.Logger.Debug("sampler: observation recorded",
			zap.String("channel", channel.Label),
			zap.String("direction", dir.String()),
			zap.Float64("x", x),
			zap.Float64("y", y),
			zap.Float64("mode", mode))
	}
	return result
}

// ensure interface compliance
var _ port.EfficiencySampler = (*DefaultEfficiencySampler)(nil)
