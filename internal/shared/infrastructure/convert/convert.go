// Package convert holds checked integer conversions for config values.
package convert

import "math"

// ClampUint32 converts v to uint32, raising it to floor and capping it at
// math.MaxUint32.
func ClampUint32(v int, floor uint32) uint32 {
	switch {
	case v < int(floor):
		return floor
	case uint64(v) > math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(v)
}
