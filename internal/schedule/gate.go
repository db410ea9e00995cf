// Package schedule implements the stateless per-hour scheduling gate.
package schedule

import "time"

// ShouldRun decides whether a target with the given checks-per-day
// frequency is due at the given hour of day (0-23). The rule is
// hour mod frequency == 0: stateless and idempotent, so overlapping or
// repeated invocations within the same hour agree. Frequencies below 1
// are clamped to 1 (every hour).
func ShouldRun(frequency, hour int) bool {
	if frequency < 1 {
		frequency = 1
	}
	return hour%frequency == 0
}

// HourIn returns the hour of day for now in the reference timezone.
func HourIn(now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Hour()
}
