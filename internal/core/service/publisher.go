package service

import (
	"github.com/berfenger/effcurve2mqtt/internal/config"
	"github.com/berfenger/effcurve2mqtt/internal/core/curve"
	"github.com/berfenger/effcurve2mqtt/internal/core/domain"
	"github.com/berfenger/effcurve2mqtt/internal/core/port"
)

// CurvePublisher renders the aggregate into the published curve views.
type CurvePublisher struct {
	cfg     config.CurveConfig
	storage port.CurveStorage
}

func NewCurvePublisher(cfg config.CurveConfig, storage port.CurveStorage) *CurvePublisher {
	return &CurvePublisher{
		cfg:     cfg,
		storage: storage,
	}
}

// CurveStates returns the discharge and charge views of agg.
func (p *CurvePublisher) CurveStates(agg *curve.Aggregate) (domain.CurveState, domain.CurveState) {
	info := p.storage.Info()
	discharge := p.curveState(p.cfg.DischargeEntity(), domain.FRIENDLY_NAME_DISCHARGE, curve.Discharge, agg.Discharge, info)
	charge := p.curveState(p.cfg.ChargeEntity(), domain.FRIENDLY_NAME_CHARGE, curve.Charge, agg.Charge, info)
	return discharge, charge
}

func (p *CurvePublisher) curveState(entityId, friendly string, dir curve.Direction,
	bins curve.Bins, info domain.StorageInfo) domain.CurveState {

	points := curve.Points(bins)
	summary := curve.Summary(points)

	var mtime any
	if info.MTime != nil {
		mtime = *info.MTime
	}

	return domain.CurveState{
		EntityId:     entityId,
		SensorId:     domain.ObjectId(entityId),
		FriendlyName: friendly,
		Direction:    dir,
		State:        curve.FormatSummary(summary),
		Summary:      summary,
		Points:       points,
		Attributes: map[string]any{
			"friendly_name":       friendly,
			"unit_of_measurement": domain.UNIT_PERCENT,
			"bin_w":               p.cfg.BinWidthWatt,
			"max_w":               p.cfg.MaxWatt,
			"sample_s":            p.cfg.SampleSeconds,
			"min_n_plot":          p.cfg.MinNPlot,
			"deadband_w":          p.cfg.DeadbandWatt,
			"x_source":            p.cfg.XSource,
			"curve_points":        points,

			"storage_path_raw":   info.PathRaw,
			"storage_path_abs":   info.PathAbs,
			"storage_exists":     info.Exists,
			"storage_size_bytes": info.SizeBytes,
			"storage_mtime":      mtime,
		},
	}
}
