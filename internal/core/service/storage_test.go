package service

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/effcurve2mqtt/internal/core/curve"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testStoragePath = "/data/wg_curve_all.json"

type failingRenameFs struct {
	afero.Fs
}

func (f failingRenameFs) Rename(oldname, newname string) error {
	return errors.New("rename refused")
}

func newTestStorage(t *testing.T, fs afero.Fs) *FileCurveStorage {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	return NewFileCurveStorage(fs, testStoragePath, logger)
}

func sampleAggregate(now time.Time) *curve.Aggregate {
	agg := curve.NewAggregate()
	agg.EnsureBins(50, 2400)
	agg.Discharge.Add(120, 90, 50, 2400, now)
	agg.Discharge.Add(130, 92, 50, 2400, now)
	agg.Charge.Add(1010, 88.5, 50, 2400, now)
	return agg
}

func TestStorageLoadMissing(t *testing.T) {

	s := newTestStorage(t, afero.NewMemMapFs())
	agg := s.Load()
	assert.Empty(t, agg.Discharge)
	assert.Empty(t, agg.Charge)

	info := s.Info()
	assert.False(t, info.Exists)
	assert.Nil(t, info.MTime)
	assert.Equal(t, testStoragePath, info.PathRaw)
}

func TestStorageLoadCorrupt(t *testing.T) {

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testStoragePath, []byte("{not json"), 0o644))

	agg := newTestStorage(t, fs).Load()
	assert.Empty(t, agg.Discharge)
	assert.Empty(t, agg.Charge)
}

func TestStorageRoundTrip(t *testing.T) {

	fs := afero.NewMemMapFs()
	s := newTestStorage(t, fs)
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, s.Save(sampleAggregate(now)))

	exists, err := afero.Exists(fs, testStoragePath+tmpSuffix)
	require.NoError(t, err)
	assert.False(t, exists, "temp file is renamed away")

	loaded := s.Load()
	rec := loaded.Discharge["100-150"]
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.N)
	assert.InDelta(t, 91.0, *rec.Mean, 1e-9)
	assert.Equal(t, now.Unix(), *rec.LastTs)
	assert.Equal(t, 1, loaded.Charge["1000-1050"].N)
	assert.Len(t, loaded.Discharge, 48)

	info := s.Info()
	assert.True(t, info.Exists)
	assert.Positive(t, info.SizeBytes)
	assert.NotNil(t, info.MTime)
}

func TestStorageFailedSaveKeepsPreviousFile(t *testing.T) {

	base := afero.NewMemMapFs()
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, newTestStorage(t, base).Save(sampleAggregate(now)))
	before, err := afero.ReadFile(base, testStoragePath)
	require.NoError(t, err)

	updated := sampleAggregate(now)
	updated.Discharge.Add(140, 50, 50, 2400, now)

	s := newTestStorage(t, failingRenameFs{Fs: base})
	assert.Error(t, s.Save(updated))

	after, err := afero.ReadFile(base, testStoragePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	exists, err := afero.Exists(base, testStoragePath+tmpSuffix)
	require.NoError(t, err)
	assert.False(t, exists, "temp file cleaned up")
}

func TestPersistenceManagerInterval(t *testing.T) {

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	m := NewPersistenceManager(NewFileCurveStorage(fs, testStoragePath, logger), 120*time.Second, logger)
	agg := m.Load(50, 2400)
	assert.Len(t, agg.Charge, 48)

	now := time.Unix(1_700_000_000, 0)
	assert.True(t, m.Due(now), "first save is always due")
	assert.True(t, m.MaybeSave(agg, now))
	assert.Equal(t, now, m.LastSave())

	assert.False(t, m.MaybeSave(agg, now.Add(119*time.Second)))
	assert.True(t, m.MaybeSave(agg, now.Add(120*time.Second)))
}

func TestPersistenceManagerFailureDoesNotAdvance(t *testing.T) {

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	fs := failingRenameFs{Fs: afero.NewMemMapFs()}
	m := NewPersistenceManager(NewFileCurveStorage(fs, testStoragePath, logger), 120*time.Second, logger)
	agg := m.Load(50, 2400)

	now := time.Unix(1_700_000_000, 0)
	assert.False(t, m.MaybeSave(agg, now))
	assert.True(t, m.LastSave().IsZero())
	assert.True(t, m.Due(now.Add(time.Second)))
}

func TestPersistenceManagerKeepsOrphanBins(t *testing.T) {

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	payload := `{"discharge":{"2400-2500":{"n":3,"mean":95.5,"last_ts":1}},"charge":{},"meta":{"v":1}}`
	require.NoError(t, afero.WriteFile(fs, testStoragePath, []byte(payload), 0o644))

	m := NewPersistenceManager(NewFileCurveStorage(fs, testStoragePath, logger), time.Minute, logger)
	agg := m.Load(50, 2400)
	assert.Len(t, agg.Discharge, 49)
	assert.Equal(t, 3, agg.Discharge["2400-2500"].N)

	require.NoError(t, m.Save(agg, time.Unix(1_700_000_000, 0)))
	data, err := afero.ReadFile(fs, testStoragePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"meta"`)
	assert.Contains(t, string(data), `"2400-2500"`)
}
