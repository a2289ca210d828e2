package curve

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidBinKey = errors.New("invalid bin key")

// BinKey maps x to the key "{start}-{end}" of its fixed-width bin. Bins cover
// [0, max) and the last one is clipped to max. Returns false when x is out of range.
func BinKey(x float64, width, max int) (string, bool) {
	if width <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return "", false
	}
	start := math.Floor(x/float64(width)) * float64(width)
	if start < 0 || start >= float64(max) {
		return "", false
	}
	s := int(start)
	return formatBinKey(s, min(s+width, max)), true
}

// BinKeys returns every key of the [0, max) range in ascending order.
func BinKeys(width, max int) []string {
	if width <= 0 || max <= 0 {
		return nil
	}
	keys := make([]string, 0, (max+width-1)/width)
	for start := 0; start < max; start += width {
		keys = append(keys, formatBinKey(start, min(start+width, max)))
	}
	return keys
}

// ParseBinKey returns the bounds encoded in a bin key.
func ParseBinKey(key string) (float64, float64, error) {
	a, b, ok := strings.Cut(key, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidBinKey, key)
	}
	start, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidBinKey, key)
	}
	end, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidBinKey, key)
	}
	return start, end, nil
}

// BinMidpoint returns the center of the bin identified by key.
func BinMidpoint(key string) (float64, error) {
	start, end, err := ParseBinKey(key)
	if err != nil {
		return 0, err
	}
	return (start + end) / 2, nil
}

func formatBinKey(start, end int) string {
	return fmt.Sprintf("%d-%d", start, end)
}
