package cycle

import (
	"time"

	"github.com/powdertrack/snowengine/internal/constants"
	"github.com/powdertrack/snowengine/internal/freezethaw"
	"github.com/powdertrack/snowengine/internal/summary"
	"github.com/powdertrack/snowengine/internal/types"
)

// iceThresholds are the temperatures the scorer's surface-degradation penalty
// is measured against: ice formation itself plus the detection ladder rungs.
var iceThresholds = []float64{constants.IceFormationTempC, 1.0, 2.0, 3.0}

// buildSnapshot assembles the per-cycle working set for one site from its
// telemetry, the detector result, and the reconciled summary.
func buildSnapshot(locationID, siteID string, tel *types.SiteTelemetry, det freezethaw.Result, sum summary.SnowSummary, now time.Time) types.ConditionSnapshot {
	snap := types.ConditionSnapshot{
		LocationID: locationID,
		SiteID:     siteID,
		Source:     types.SourceModeled,
		ObservedAt: tel.Current.Timestamp,
	}

	hourly := tel.Hourly
	nowIdx := freezethaw.NowIndex(hourly, now)

	snap.CurrentTempC = tel.Current.TemperatureC
	if snap.CurrentTempC == nil && nowIdx >= 0 {
		snap.CurrentTempC = hourly[nowIdx].TemperatureC
	}
	snap.SnowDepthCM = tel.Current.SnowDepthCM
	if snap.SnowDepthCM == nil && nowIdx >= 0 {
		snap.SnowDepthCM = hourly[nowIdx].SnowDepthCM
	}
	snap.HumidityPct = tel.Current.HumidityPct
	snap.WindSpeedKMH = tel.Current.WindSpeedKMH

	if nowIdx >= 0 {
		snap.MinTempC, snap.MaxTempC = tempExtremes(hourly, nowIdx, 24)

		if hasSnowfallData(hourly) {
			w24 := freezethaw.SnowfallWindow(hourly, nowIdx, 24)
			w48 := freezethaw.SnowfallWindow(hourly, nowIdx, 48)
			w72 := freezethaw.SnowfallWindow(hourly, nowIdx, 72)
			snap.Snowfall24CM = &w24
			snap.Snowfall48CM = &w48
			snap.Snowfall72CM = &w72
		}

		snap.HoursAboveIce = make(map[float64]int, len(iceThresholds))
		for _, threshold := range iceThresholds {
			snap.HoursAboveIce[threshold] = freezethaw.HoursAbove(hourly, nowIdx, 24, threshold)
		}

		if hours, ok := freezethaw.HoursSinceSnowfall(hourly, nowIdx); ok {
			h := float64(hours)
			snap.HoursSinceSnowfall = &h
		}

		snap.Warming = isWarming(hourly, nowIdx, snap.CurrentTempC)
	}

	snap.ForecastSnowfall24CM = forecastSnowfall(tel.Forecast, 24)

	snap.FreshSnowCM = sum.SnowfallSinceFreezeCM
	if sum.LastFreezeDate != nil {
		snap.HoursSinceFreeze = now.Sub(*sum.LastFreezeDate).Hours()
	} else {
		// No freeze on record: history shows sustained freezing for the
		// entire visible window.
		snap.HoursSinceFreeze = constants.VisibleHorizonHours
	}
	if det.Found && det.HoursAgo >= 0 {
		snap.HoursSinceFreeze = float64(det.HoursAgo)
	}

	return snap
}

func tempExtremes(samples []types.HourlySample, nowIdx, windowHours int) (*float64, *float64) {
	start := nowIdx - windowHours + 1
	if start < 0 {
		start = 0
	}
	var min, max *float64
	for i := start; i <= nowIdx && i < len(samples); i++ {
		t := samples[i].TemperatureC
		if t == nil {
			continue
		}
		if min == nil || *t < *min {
			v := *t
			min = &v
		}
		if max == nil || *t > *max {
			v := *t
			max = &v
		}
	}
	return min, max
}

func hasSnowfallData(samples []types.HourlySample) bool {
	for _, s := range samples {
		if s.SnowfallCM != nil {
			return true
		}
	}
	return false
}

// forecastSnowfall sums predicted snowfall over the leading hours of the
// forecast tail. Nil when the source supplied no forecast snowfall at all.
func forecastSnowfall(forecast []types.HourlySample, hours int) *float64 {
	if len(forecast) == 0 {
		return nil
	}
	var total float64
	seen := false
	for i, s := range forecast {
		if i >= hours {
			break
		}
		if s.SnowfallCM == nil {
			continue
		}
		seen = true
		if *s.SnowfallCM > 0 {
			total += *s.SnowfallCM
		}
	}
	if !seen {
		return nil
	}
	return &total
}

// isWarming compares the current temperature against the reading three hours
// back.
func isWarming(samples []types.HourlySample, nowIdx int, current *float64) bool {
	if current == nil || nowIdx < 3 {
		return false
	}
	prev := samples[nowIdx-3].TemperatureC
	return prev != nil && *current > *prev
}

// trailingSnowfall extracts the timed hourly snowfall readings for the
// trailing 24 hours, for the reconciler's local-accumulation fallback.
func trailingSnowfall(samples []types.HourlySample, nowIdx int) []summary.TimedSnowfall {
	if nowIdx < 0 || nowIdx >= len(samples) {
		return nil
	}
	start := nowIdx - 23
	if start < 0 {
		start = 0
	}
	var out []summary.TimedSnowfall
	for i := start; i <= nowIdx; i++ {
		if sf := samples[i].SnowfallCM; sf != nil && *sf > 0 {
			out = append(out, summary.TimedSnowfall{Time: samples[i].Timestamp, CM: *sf})
		}
	}
	return out
}
