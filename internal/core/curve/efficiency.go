package curve

import "math"

// denominators below this magnitude (W) are treated as "no flow"
const minDenominatorWatt = 1.0

type Direction string

const (
	Discharge Direction = "discharge"
	Charge    Direction = "charge"
)

func (d Direction) String() string {
	return string(d)
}

// Classify maps the signed mode signal to a flow direction. Values inside
// [-deadband, deadband] yield no direction.
func Classify(mode, deadband float64) (Direction, bool) {
	switch {
	case mode > deadband:
		return Discharge, true
	case mode < -deadband:
		return Charge, true
	default:
		return "", false
	}
}

// Range is an inclusive validity window for efficiency percentages.
type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(y float64) bool {
	return y >= r.Min && y <= r.Max
}

// DischargeEfficiency is |plug| / |pack| in percent.
func DischargeEfficiency(plug, pack float64, valid Range) (float64, bool) {
	return ratio(plug, pack, valid)
}

// ChargeEfficiency is |pack| / |plug| in percent.
func ChargeEfficiency(plug, pack float64, valid Range) (float64, bool) {
	return ratio(pack, plug, valid)
}

// Efficiency selects the formula for the given direction.
func Efficiency(dir Direction, plug, pack float64, valid Range) (float64, bool) {
	switch dir {
	case Discharge:
		return DischargeEfficiency(plug, pack, valid)
	case Charge:
		return ChargeEfficiency(plug, pack, valid)
	}
	return 0, false
}

func ratio(num, denom float64, valid Range) (float64, bool) {
	d := math.Abs(denom)
	if d < minDenominatorWatt || math.IsNaN(d) {
		return 0, false
	}
	y := math.Abs(num) / d * 100
	if !valid.Contains(y) {
		return 0, false
	}
	return y, true
}
