package service

import (
	"testing"
	"time"

	"github.com/berfenger/effcurve2mqtt/internal/core/curve"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCurveStates(t *testing.T) {

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	cfg := testCurveConfig()
	storage := NewFileCurveStorage(afero.NewMemMapFs(), testStoragePath, logger)
	p := NewCurvePublisher(cfg, storage)

	now := time.Unix(1_700_000_000, 0)
	agg := curve.NewAggregate()
	agg.EnsureBins(cfg.BinWidthWatt, cfg.MaxWatt)
	agg.Discharge.Add(120, 90, cfg.BinWidthWatt, cfg.MaxWatt, now)
	agg.Discharge.Add(130, 92, cfg.BinWidthWatt, cfg.MaxWatt, now)

	discharge, charge := p.CurveStates(agg)

	assert.Equal(t, "sensor.l2_wirkungsgradkurve_entladen", discharge.EntityId)
	assert.Equal(t, "l2_wirkungsgradkurve_entladen", discharge.SensorId)
	assert.Equal(t, curve.Discharge, discharge.Direction)
	assert.Equal(t, "91.00", discharge.State)
	require.Len(t, discharge.Points, 1)
	assert.Equal(t, curve.Point{Bin: "100-150", X: 125, Y: 91, N: 2}, discharge.Points[0])

	attrs := discharge.Attributes
	assert.Equal(t, "Kennlinie Entladen", attrs["friendly_name"])
	assert.Equal(t, "%", attrs["unit_of_measurement"])
	assert.Equal(t, 50, attrs["bin_w"])
	assert.Equal(t, 2400, attrs["max_w"])
	assert.Equal(t, 10, attrs["min_n_plot"])
	assert.Equal(t, "plug", attrs["x_source"])
	assert.Equal(t, false, attrs["storage_exists"])
	assert.Nil(t, attrs["storage_mtime"])

	assert.Equal(t, "sensor.l2_wirkungsgradkurve_laden", charge.EntityId)
	assert.Equal(t, "0.00", charge.State)
	assert.Empty(t, charge.Points)
}
