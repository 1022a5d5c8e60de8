// Package progress tracks how much of the keyspace has been covered: per-salt counters, crack rates and the
// percentage and ETA figures derived from them.
package progress

import (
	"fmt"
	"math"
	"time"
)

const percentScale = 100

// Percent returns value as a percentage of total, or 0 when total is zero.
func Percent(value, total uint64) float64 {
	if total == 0 {
		return 0
	}

	return float64(value) / float64(total) * percentScale
}

// FormatPercent renders a percentage with two decimals, e.g. "42.50%".
func FormatPercent(value, total uint64) string {
	return fmt.Sprintf("%.2f%%", Percent(value, total))
}

// ETA returns the time needed to cover left units at speed units per second. It returns 0 when the speed is
// unknown or nothing is left.
func ETA(left uint64, speed float64) time.Duration {
	if left == 0 || speed <= 0 {
		return 0
	}

	secs := float64(left) / speed
	if secs >= math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(secs * float64(time.Second)).Round(time.Second)
}
