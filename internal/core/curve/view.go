package curve

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Point is one plotted bin of a curve.
type Point struct {
	Bin string  `json:"bin"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	N   int     `json:"n"`
}

// Points projects the bins holding data into curve points sorted by x.
// Keys that cannot be parsed are skipped.
func Points(bins Bins) []Point {
	points := make([]Point, 0, len(bins))
	for key, rec := range bins {
		if !rec.HasMean() {
			continue
		}
		mid, err := BinMidpoint(key)
		if err != nil {
			continue
		}
		points = append(points, Point{
			Bin: key,
			X:   round(mid, 1),
			Y:   round(*rec.Mean, 2),
			N:   rec.N,
		})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].X != points[j].X {
			return points[i].X < points[j].X
		}
		return points[i].Bin < points[j].Bin
	})
	return points
}

// Summary is the highest y among points, 0 when there are none.
func Summary(points []Point) float64 {
	best := 0.0
	for i, p := range points {
		if i == 0 || p.Y > best {
			best = p.Y
		}
	}
	return best
}

func FormatSummary(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// round rounds the exact binary value of v to decimals places, ties to even.
func round(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil {
		return v
	}
	return r
}
