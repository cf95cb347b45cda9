// Package freezethaw detects ice-forming thaw events in hourly temperature
// series and computes trailing snowfall windows over the same series.
//
// An ice-forming thaw is a period warm enough, for long enough, that the
// surface is assumed to melt and subsequently refreeze, bonding the snowpack.
// Detection scans backward from "now" against a descending ladder of
// (temperature, required consecutive hours) rules; satisfying any rule counts.
package freezethaw

import (
	"time"

	"github.com/powdertrack/snowengine/internal/constants"
	"github.com/powdertrack/snowengine/internal/types"
)

// ThresholdRule is one rung of the detection ladder: the run must stay at or
// above MinTempC for ConsecutiveHours ending at the candidate index.
type ThresholdRule struct {
	MinTempC         float64
	ConsecutiveHours int
}

// DefaultRules is the canonical ladder, most lenient first: a short very-warm
// spell or a longer mildly-warm spell both qualify.
var DefaultRules = []ThresholdRule{
	{MinTempC: 3.0, ConsecutiveHours: 3},
	{MinTempC: 2.0, ConsecutiveHours: 6},
	{MinTempC: 1.0, ConsecutiveHours: 8},
}

// Result describes the most recent detected event, if any. When Found is
// false callers must assume sustained freezing for the entire visible window
// and treat HoursAgo as the full lookback horizon.
type Result struct {
	Found      bool
	EventIndex int
	HoursAgo   int
}

// NowIndex locates the sample whose hour-truncated timestamp matches now.
// Falls back to the last index when no exact hour matches; returns -1 for an
// empty series.
func NowIndex(samples []types.HourlySample, now time.Time) int {
	if len(samples) == 0 {
		return -1
	}
	hour := now.Truncate(time.Hour)
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].Timestamp.Equal(hour) {
			return i
		}
	}
	return len(samples) - 1
}

// Detect finds the most recent ice-forming thaw event at or before nowIndex.
// It never fails: empty, all-nil, or malformed input degrades to "no event".
func Detect(samples []types.HourlySample, nowIndex int, rules []ThresholdRule) Result {
	if len(samples) == 0 || nowIndex < 0 {
		return Result{}
	}
	if nowIndex >= len(samples) {
		nowIndex = len(samples) - 1
	}
	if len(rules) == 0 {
		rules = DefaultRules
	}

	horizon := nowIndex - constants.VisibleHorizonHours
	if horizon < 0 {
		horizon = 0
	}

	// Most recent qualifying index wins, across all rules.
	for i := nowIndex; i >= horizon; i-- {
		for _, rule := range rules {
			if runSatisfies(samples, i, rule) {
				return Result{Found: true, EventIndex: i, HoursAgo: nowIndex - i}
			}
		}
	}
	return Result{}
}

// runSatisfies reports whether the run of rule.ConsecutiveHours samples ending
// at index end stays at or above rule.MinTempC. A nil temperature anywhere in
// the run breaks it.
func runSatisfies(samples []types.HourlySample, end int, rule ThresholdRule) bool {
	start := end - rule.ConsecutiveHours + 1
	if start < 0 {
		return false
	}
	for i := end; i >= start; i-- {
		t := samples[i].TemperatureC
		if t == nil || *t < rule.MinTempC {
			return false
		}
	}
	return true
}

// SnowfallSince sums snowfall from fromIndex through nowIndex inclusive. This
// is the externally recomputed "snowfall since freeze" figure; it is only as
// trustworthy as the window it was computed over.
func SnowfallSince(samples []types.HourlySample, fromIndex, nowIndex int) float64 {
	if len(samples) == 0 || nowIndex < 0 {
		return 0
	}
	if nowIndex >= len(samples) {
		nowIndex = len(samples) - 1
	}
	if fromIndex < 0 {
		fromIndex = 0
	}
	var total float64
	for i := fromIndex; i <= nowIndex; i++ {
		if sf := samples[i].SnowfallCM; sf != nil && *sf > 0 {
			total += *sf
		}
	}
	return total
}

// SnowfallWindow sums snowfall over the trailing window of the given number of
// hours ending at nowIndex. Nil readings contribute nothing.
func SnowfallWindow(samples []types.HourlySample, nowIndex, hours int) float64 {
	if hours <= 0 {
		return 0
	}
	return SnowfallSince(samples, nowIndex-hours+1, nowIndex)
}

// HoursAbove counts the hours within the trailing window whose temperature is
// at or above threshold. Used by the scorer's surface-degradation penalty.
func HoursAbove(samples []types.HourlySample, nowIndex, windowHours int, threshold float64) int {
	if len(samples) == 0 || nowIndex < 0 || windowHours <= 0 {
		return 0
	}
	if nowIndex >= len(samples) {
		nowIndex = len(samples) - 1
	}
	start := nowIndex - windowHours + 1
	if start < 0 {
		start = 0
	}
	count := 0
	for i := start; i <= nowIndex; i++ {
		if t := samples[i].TemperatureC; t != nil && *t >= threshold {
			count++
		}
	}
	return count
}

// HoursSinceSnowfall returns the hours elapsed since the most recent nonzero
// snowfall at or before nowIndex, or false when the window holds none.
func HoursSinceSnowfall(samples []types.HourlySample, nowIndex int) (int, bool) {
	if len(samples) == 0 || nowIndex < 0 {
		return 0, false
	}
	if nowIndex >= len(samples) {
		nowIndex = len(samples) - 1
	}
	for i := nowIndex; i >= 0; i-- {
		if sf := samples[i].SnowfallCM; sf != nil && *sf > 0 {
			return nowIndex - i, true
		}
	}
	return 0, false
}
