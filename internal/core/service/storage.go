package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/berfenger/effcurve2mqtt/internal/core/curve"
	"github.com/berfenger/effcurve2mqtt/internal/core/domain"
	"github.com/berfenger/effcurve2mqtt/internal/core/port"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const tmpSuffix = ".tmp"

// FileCurveStorage persists the aggregate as indented JSON. Writes go to a
// sibling temp file which then replaces the target in a single rename.
type FileCurveStorage struct {
	fs     afero.Fs
	path   string
	logger *zap.Logger
}

func NewFileCurveStorage(fs afero.Fs, path string, logger *zap.Logger) *FileCurveStorage {
	return &FileCurveStorage{
		fs:     fs,
		path:   path,
		logger: logger,
	}
}

func (s *FileCurveStorage) Path() string {
	return s.path
}

func (s *FileCurveStorage) Load() *curve.Aggregate {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("storage: failed to read", zap.String("path", s.path), zap.Error(err))
		}
		return curve.NewAggregate()
	}
	agg := &curve.Aggregate{}
	if err := json.Unmarshal(data, agg); err != nil {
		s.logger.Warn("storage: failed to parse", zap.String("path", s.path), zap.Error(err))
		return curve.NewAggregate()
	}
	return agg
}

func (s *FileCurveStorage) Save(agg *curve.Aggregate) error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	payload, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode aggregate: %w", err)
	}

	tmp := s.path + tmpSuffix
	if err := s.writeSynced(tmp, payload); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileCurveStorage) writeSynced(name string, payload []byte) error {
	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *FileCurveStorage) Info() domain.StorageInfo {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		abs = s.path
	}
	info := domain.StorageInfo{
		PathRaw: s.path,
		PathAbs: abs,
	}
	if st, err := s.fs.Stat(s.path); err == nil && !st.IsDir() {
		mtime := st.ModTime().Unix()
		info.Exists = true
		info.SizeBytes = st.Size()
		info.MTime = &mtime
	}
	return info
}

// ensure interface compliance
var _ port.CurveStorage = (*FileCurveStorage)(nil)

// PersistenceManager bounds how often the aggregate reaches the storage.
type PersistenceManager struct {
	storage  port.CurveStorage
	interval time.Duration
	lastSave time.Time
	logger   *zap.Logger
}

func NewPersistenceManager(storage port.CurveStorage, interval time.Duration, logger *zap.Logger) *PersistenceManager {
	return &PersistenceManager{
		storage:  storage,
		interval: interval,
		logger:   logger,
	}
}

func (m *PersistenceManager) Storage() port.CurveStorage {
	return m.storage
}

// Load reads the stored aggregate and fills in the bins of the configured range.
func (m *PersistenceManager) Load(binWidth, maxWatt int) *curve.Aggregate {
	agg := m.storage.Load()
	agg.EnsureBins(binWidth, maxWatt)
	return agg
}

// Due reports whether the minimum interval since the last successful save elapsed.
// The first call is always due.
func (m *PersistenceManager) Due(now time.Time) bool {
	return m.lastSave.IsZero() || now.Sub(m.lastSave) >= m.interval
}

func (m *PersistenceManager) MarkSaved(now time.Time) {
	m.lastSave = now
}

func (m *PersistenceManager) LastSave() time.Time {
	return m.lastSave
}

// Save writes agg unconditionally. Failures are logged and returned; the last
// save time only moves on success.
func (m *PersistenceManager) Save(agg *curve.Aggregate, now time.Time) error {
	if err := m.storage.Save(agg); err != nil {
		m.logger.Warn("storage: save failed", zap.Error(err))
		return err
	}
	m.MarkSaved(now)
	return nil
}

// MaybeSave saves only when Due. It returns true when a save succeeded.
func (m *PersistenceManager) MaybeSave(agg *curve.Aggregate, now time.Time) bool {
	if !m.Due(now) {
		return false
	}
	return m.Save(agg, now) == nil
}
