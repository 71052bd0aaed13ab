package models

// Plausibility bounds for extracted numeric fields. Values outside a bound
// are discarded at the field level, never clamped.
const (
	MaxPrice = 10_000_000.0
	MaxArea  = 10_000.0
	MaxCount = 20
)

// ValidPrice reports whether a price is inside the accepted range.
func ValidPrice(v float64) bool {
	return v > 0 && v < MaxPrice
}

// ValidArea reports whether an area in m² is inside the accepted range.
func ValidArea(v float64) bool {
	return v > 0 && v < MaxArea
}

// ValidCount reports whether a room/parking count is inside the accepted range.
func ValidCount(v int) bool {
	return v > 0 && v < MaxCount
}

// FloatPtr returns a pointer to v when it passes valid, nil otherwise.
func FloatPtr(v float64, valid func(float64) bool) *float64 {
	if !valid(v) {
		return nil
	}
	return &v
}

// IntPtr returns a pointer to v when it passes ValidCount, nil otherwise.
func IntPtr(v int) *int {
	if !ValidCount(v) {
		return nil
	}
	return &v
}
