package cycle

import (
	"testing"
	"time"

	"github.com/powdertrack/snowengine/internal/constants"
	"github.com/powdertrack/snowengine/internal/freezethaw"
	"github.com/powdertrack/snowengine/internal/summary"
	"github.com/powdertrack/snowengine/internal/types"
)

func hourlySeries(now time.Time, temps []float64, snowfall []float64) []types.HourlySample {
	start := now.Add(-time.Duration(len(temps)-1) * time.Hour)
	samples := make([]types.HourlySample, len(temps))
	for i := range temps {
		samples[i] = types.HourlySample{
			Timestamp:    start.Add(time.Duration(i) * time.Hour),
			TemperatureC: f(temps[i]),
		}
		if snowfall != nil {
			samples[i].SnowfallCM = f(snowfall[i])
		}
	}
	return samples
}

func TestBuildSnapshotPrefersCurrentReading(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	temps := make([]float64, 30)
	for i := range temps {
		temps[i] = -4
	}
	tel := &types.SiteTelemetry{
		Hourly: hourlySeries(now, temps, nil),
		Current: types.CurrentReading{
			Timestamp:    now,
			TemperatureC: f(-6),
			SnowDepthCM:  f(120),
		},
	}

	snap := buildSnapshot("loc", "top", tel, freezethaw.Result{}, summary.SnowSummary{}, now)

	if snap.CurrentTempC == nil || *snap.CurrentTempC != -6 {
		t.Errorf("current temp = %v, want -6 from the current reading", snap.CurrentTempC)
	}
	if snap.SnowDepthCM == nil || *snap.SnowDepthCM != 120 {
		t.Errorf("snow depth = %v, want 120", snap.SnowDepthCM)
	}
	if snap.Source != types.SourceModeled {
		t.Errorf("source = %v, want modeled", snap.Source)
	}
}

func TestBuildSnapshotFallsBackToHourly(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	samples := hourlySeries(now, []float64{-3, -4, -5}, nil)
	depth := 90.0
	samples[2].SnowDepthCM = &depth
	tel := &types.SiteTelemetry{
		Hourly:  samples,
		Current: types.CurrentReading{Timestamp: now},
	}

	snap := buildSnapshot("loc", "base", tel, freezethaw.Result{}, summary.SnowSummary{}, now)

	if snap.CurrentTempC == nil || *snap.CurrentTempC != -5 {
		t.Errorf("current temp = %v, want -5 from the matching hourly sample", snap.CurrentTempC)
	}
	if snap.SnowDepthCM == nil || *snap.SnowDepthCM != 90 {
		t.Errorf("snow depth = %v, want 90", snap.SnowDepthCM)
	}
}

func TestBuildSnapshotSnowfallWindows(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	temps := make([]float64, 72)
	snow := make([]float64, 72)
	for i := range temps {
		temps[i] = -5
	}
	// 3 cm in the last 24h, 5 more in the prior 24h, 4 more before that.
	snow[71] = 3
	snow[40] = 5
	snow[10] = 4
	tel := &types.SiteTelemetry{
		Hourly:  hourlySeries(now, temps, snow),
		Current: types.CurrentReading{Timestamp: now},
	}

	snap := buildSnapshot("loc", "mid", tel, freezethaw.Result{}, summary.SnowSummary{}, now)

	if snap.Snowfall24CM == nil || *snap.Snowfall24CM != 3 {
		t.Errorf("24h snowfall = %v, want 3", snap.Snowfall24CM)
	}
	if snap.Snowfall48CM == nil || *snap.Snowfall48CM != 8 {
		t.Errorf("48h snowfall = %v, want 8", snap.Snowfall48CM)
	}
	if snap.Snowfall72CM == nil || *snap.Snowfall72CM != 12 {
		t.Errorf("72h snowfall = %v, want 12", snap.Snowfall72CM)
	}
	if snap.HoursSinceSnowfall == nil || *snap.HoursSinceSnowfall != 0 {
		t.Errorf("hours since snowfall = %v, want 0", snap.HoursSinceSnowfall)
	}
}

func TestBuildSnapshotNoSnowfallSensor(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	tel := &types.SiteTelemetry{
		Hourly:  hourlySeries(now, []float64{-5, -5, -5}, nil),
		Current: types.CurrentReading{Timestamp: now},
	}

	snap := buildSnapshot("loc", "base", tel, freezethaw.Result{}, summary.SnowSummary{}, now)

	if snap.Snowfall24CM != nil {
		t.Errorf("24h snowfall = %v, want nil when no sample carries snowfall", snap.Snowfall24CM)
	}
}

func TestBuildSnapshotHoursAboveIce(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	// Last 24 hours: 20 below freezing, then 4 at +2.5.
	temps := make([]float64, 24)
	for i := range temps {
		temps[i] = -2
	}
	for i := 20; i < 24; i++ {
		temps[i] = 2.5
	}
	tel := &types.SiteTelemetry{
		Hourly:  hourlySeries(now, temps, nil),
		Current: types.CurrentReading{Timestamp: now},
	}

	snap := buildSnapshot("loc", "top", tel, freezethaw.Result{}, summary.SnowSummary{}, now)

	want := map[float64]int{0: 4, 1: 4, 2: 4, 3: 0}
	for threshold, hours := range want {
		if got := snap.HoursAboveIce[threshold]; got != hours {
			t.Errorf("hours above %v = %d, want %d", threshold, got, hours)
		}
	}
}

func TestBuildSnapshotWarmingTrend(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	tel := &types.SiteTelemetry{
		Hourly:  hourlySeries(now, []float64{-10, -9, -8, -7, -6}, nil),
		Current: types.CurrentReading{Timestamp: now, TemperatureC: f(-6)},
	}
	snap := buildSnapshot("loc", "top", tel, freezethaw.Result{}, summary.SnowSummary{}, now)
	if !snap.Warming {
		t.Error("rising series should be flagged warming")
	}

	tel.Current.TemperatureC = f(-12)
	snap = buildSnapshot("loc", "top", tel, freezethaw.Result{}, summary.SnowSummary{}, now)
	if snap.Warming {
		t.Error("falling temperature should not be flagged warming")
	}
}

func TestBuildSnapshotFreezeAges(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	temps := make([]float64, 10)
	for i := range temps {
		temps[i] = -5
	}
	tel := &types.SiteTelemetry{
		Hourly:  hourlySeries(now, temps, nil),
		Current: types.CurrentReading{Timestamp: now},
	}

	// Detected event wins over the stored date.
	stored := now.Add(-100 * time.Hour)
	snap := buildSnapshot("loc", "top", tel,
		freezethaw.Result{Found: true, EventIndex: 5, HoursAgo: 4},
		summary.SnowSummary{LastFreezeDate: &stored, SnowfallSinceFreezeCM: 42}, now)
	if snap.HoursSinceFreeze != 4 {
		t.Errorf("hours since freeze = %v, want 4 from the detector", snap.HoursSinceFreeze)
	}
	if snap.FreshSnowCM != 42 {
		t.Errorf("fresh snow = %v, want the reconciled 42", snap.FreshSnowCM)
	}

	// No detection falls back to the stored date.
	snap = buildSnapshot("loc", "top", tel, freezethaw.Result{},
		summary.SnowSummary{LastFreezeDate: &stored}, now)
	if snap.HoursSinceFreeze != 100 {
		t.Errorf("hours since freeze = %v, want 100 from the stored date", snap.HoursSinceFreeze)
	}

	// Nothing on record means sustained freezing for the whole window.
	snap = buildSnapshot("loc", "top", tel, freezethaw.Result{}, summary.SnowSummary{}, now)
	if snap.HoursSinceFreeze != constants.VisibleHorizonHours {
		t.Errorf("hours since freeze = %v, want the full horizon", snap.HoursSinceFreeze)
	}
}

func TestBuildSnapshotForecastSnowfall(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	tel := &types.SiteTelemetry{
		Hourly:  hourlySeries(now, []float64{-5, -5, -5}, nil),
		Current: types.CurrentReading{Timestamp: now},
	}
	for i := 1; i <= 30; i++ {
		sf := 0.0
		if i <= 6 {
			sf = 1.5
		}
		tel.Forecast = append(tel.Forecast, types.HourlySample{
			Timestamp:  now.Add(time.Duration(i) * time.Hour),
			SnowfallCM: &sf,
		})
	}

	snap := buildSnapshot("loc", "top", tel, freezethaw.Result{}, summary.SnowSummary{}, now)
	if snap.ForecastSnowfall24CM == nil || *snap.ForecastSnowfall24CM != 9 {
		t.Errorf("forecast snowfall = %v, want 9", snap.ForecastSnowfall24CM)
	}

	tel.Forecast = nil
	snap = buildSnapshot("loc", "top", tel, freezethaw.Result{}, summary.SnowSummary{}, now)
	if snap.ForecastSnowfall24CM != nil {
		t.Errorf("forecast snowfall = %v, want nil without a forecast tail", snap.ForecastSnowfall24CM)
	}
}

func TestTrailingSnowfallSkipsZeroAndNil(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	samples := hourlySeries(now, []float64{-5, -5, -5, -5}, []float64{0, 2, 0, 3})
	samples[0].SnowfallCM = nil

	out := trailingSnowfall(samples, len(samples)-1)
	if len(out) != 2 {
		t.Fatalf("got %d entries, want 2", len(out))
	}
	if out[0].CM != 2 || out[1].CM != 3 {
		t.Errorf("entries = %+v, want snowfall 2 then 3", out)
	}
	if !out[1].Time.Equal(now) {
		t.Errorf("last entry time = %v, want %v", out[1].Time, now)
	}

	if trailingSnowfall(samples, -1) != nil {
		t.Error("negative index should yield nil")
	}
}
