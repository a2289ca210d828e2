package domain

import (
	"github.com/berfenger/effcurve2mqtt/internal/core/curve"
)

// StorageInfo describes the persisted file for operators.
type StorageInfo struct {
	PathRaw   string `json:"storage_path_raw"`
	PathAbs   string `json:"storage_path_abs"`
	Exists    bool   `json:"storage_exists"`
	SizeBytes int64  `json:"storage_size_bytes"`
	MTime     *int64 `json:"storage_mtime"`
}

// CurveState is the published view of one direction.
type CurveState struct {
	EntityId     string          `json:"entity_id"`
	SensorId     string          `json:"sensor_id"`
	FriendlyName string          `json:"friendly_name"`
	Direction    curve.Direction `json:"direction"`
	State        string          `json:"state"`
	Summary      float64         `json:"summary"`
	Points       []curve.Point   `json:"curve_points"`
	Attributes   map[string]any  `json:"attributes"`
}

type SampleOutcome string

const (
	SAMPLE_RECORDED      SampleOutcome = "recorded"
	SAMPLE_NO_MODE       SampleOutcome = "no_mode"
	SAMPLE_NO_READING    SampleOutcome = "no_reading"
	SAMPLE_OUT_OF_RANGE  SampleOutcome = "out_of_range"
	SAMPLE_DEADBAND      SampleOutcome = "deadband"
	SAMPLE_NO_EFFICIENCY SampleOutcome = "no_efficiency"
	SAMPLE_NO_BIN        SampleOutcome = "no_bin"
)

// SampleResult reports what one channel contributed during a tick.
type SampleResult struct {
	Outcome   SampleOutcome
	Channel   string
	Direction curve.Direction
	X         float64
	Y         float64
}

func (r SampleResult) Recorded() bool {
	return r.Outcome == SAMPLE_RECORDED
}
