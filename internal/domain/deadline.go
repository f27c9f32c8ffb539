package domain

import "math"

// Deadline computes the per-job timeout in whole seconds, following
// spec §4.5:
//
//	deadline_seconds = max(processTimeoutSeconds, ceil(audioDurationMs/1000 * audioTimeoutMultiplier))
//
// audioDurationMs of 0 (no duration hint) yields processTimeoutSeconds.
func Deadline(processTimeoutSeconds int, audioTimeoutMultiplier float64, audioDurationMs int64) int64 {
	fixed := int64(processTimeoutSeconds)
	if audioDurationMs <= 0 {
		return fixed
	}
	audioBased := int64(math.Ceil(float64(audioDurationMs) / 1000 * audioTimeoutMultiplier))
	if audioBased > fixed {
		return audioBased
	}
	return fixed
}
