package cycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/powdertrack/snowengine/internal/assessment"
	"github.com/powdertrack/snowengine/internal/summary"
	"github.com/powdertrack/snowengine/internal/types"
	"github.com/powdertrack/snowengine/pkg/config"
	"go.uber.org/zap"
)

func f(v float64) *float64 { return &v }

// stubFetcher serves canned telemetry per coordinate and can fail selectively.
type stubFetcher struct {
	mu      sync.Mutex
	calls   int
	maxSeen int
	inUse   int
	failFor map[float64]error // keyed by latitude
	tel     func() *types.SiteTelemetry
}

func (s *stubFetcher) Fetch(ctx context.Context, lat, lon, elevation float64, hint *time.Time) (*types.SiteTelemetry, error) {
	s.mu.Lock()
	s.calls++
	s.inUse++
	if s.inUse > s.maxSeen {
		s.maxSeen = s.inUse
	}
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond) // let workers overlap

	s.mu.Lock()
	s.inUse--
	err := s.failFor[lat]
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return s.tel(), nil
}

// coldPowderTelemetry is 80 hours of cold weather with recent snowfall.
func coldPowderTelemetry() *types.SiteTelemetry {
	now := time.Now().UTC().Truncate(time.Hour)
	start := now.Add(-79 * time.Hour)
	samples := make([]types.HourlySample, 80)
	for i := range samples {
		samples[i] = types.HourlySample{
			Timestamp:    start.Add(time.Duration(i) * time.Hour),
			TemperatureC: f(-7),
			SnowfallCM:   f(0),
		}
	}
	// 20 cm over the last ten hours.
	for i := len(samples) - 10; i < len(samples); i++ {
		samples[i].SnowfallCM = f(2)
	}
	return &types.SiteTelemetry{
		Hourly: samples,
		Current: types.CurrentReading{
			Timestamp:    now,
			TemperatureC: f(-7),
			SnowDepthCM:  f(150),
			HumidityPct:  f(75),
			WindSpeedKMH: f(8),
		},
		FetchedAt: time.Now().UTC(),
	}
}

func testLocations() []config.LocationData {
	return []config.LocationData{
		{
			ID: "loc1",
			Sites: []config.SiteData{
				{ID: "base", Latitude: 1, Longitude: 10, ElevationM: 900},
				{ID: "mid", Latitude: 2, Longitude: 10, ElevationM: 1400},
				{ID: "top", Latitude: 3, Longitude: 10, ElevationM: 1900},
			},
		},
	}
}

func newTestController(t *testing.T, fetcher TelemetryFetcher) *Controller {
	t.Helper()
	var wg sync.WaitGroup
	ctrl, err := NewController(context.Background(), &wg, Options{
		Locations:          testLocations(),
		Fetcher:            fetcher,
		Store:              summary.NewMemoryStore(),
		Scorer:             assessment.NewScorer(assessment.DefaultScorerConfig(), zap.NewNop().Sugar()),
		MaxConcurrentSites: 2,
		InterLocationDelay: 0,
	}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	return ctrl
}

func TestRunCycleProcessesAllSites(t *testing.T) {
	fetcher := &stubFetcher{tel: coldPowderTelemetry}
	ctrl := newTestController(t, fetcher)

	stats := ctrl.RunCycle(context.Background())
	if stats.LocationsProcessed != 1 {
		t.Errorf("locations processed = %d, want 1", stats.LocationsProcessed)
	}
	if stats.SitesProcessed != 3 {
		t.Errorf("sites processed = %d, want 3", stats.SitesProcessed)
	}

	verdict, ok := ctrl.Results().LatestVerdict("loc1")
	if !ok {
		t.Fatal("no verdict recorded for loc1")
	}
	if verdict.Overall == types.QualityUnknown {
		t.Error("cold powder conditions should produce a known verdict")
	}
	if len(verdict.Sites) != 3 {
		t.Errorf("verdict site count = %d, want 3", len(verdict.Sites))
	}
}

func TestRunCycleBoundsConcurrency(t *testing.T) {
	fetcher := &stubFetcher{tel: coldPowderTelemetry}
	ctrl := newTestController(t, fetcher)
	ctrl.RunCycle(context.Background())

	if fetcher.maxSeen > 2 {
		t.Errorf("observed %d concurrent fetches, want at most 2", fetcher.maxSeen)
	}
}

func TestRunCycleIsolatesSiteFailure(t *testing.T) {
	fetcher := &stubFetcher{
		tel:     coldPowderTelemetry,
		failFor: map[float64]error{2: errors.New("upstream unavailable")},
	}
	ctrl := newTestController(t, fetcher)

	stats := ctrl.RunCycle(context.Background())
	if stats.SitesSkipped != 1 {
		t.Errorf("sites skipped = %d, want 1", stats.SitesSkipped)
	}
	if stats.SitesProcessed != 2 {
		t.Errorf("sites processed = %d, want 2", stats.SitesProcessed)
	}
	if stats.LocationsProcessed != 1 {
		t.Errorf("the location must still complete, got %d errored", stats.LocationsErrored)
	}

	verdict, ok := ctrl.Results().LatestVerdict("loc1")
	if !ok || verdict.Overall == types.QualityUnknown {
		t.Error("remaining sites should still yield a verdict")
	}
}

func TestRunCycleAllSitesFailYieldsUnknown(t *testing.T) {
	fetcher := &stubFetcher{
		tel: coldPowderTelemetry,
		failFor: map[float64]error{
			1: errors.New("down"),
			2: errors.New("down"),
			3: errors.New("down"),
		},
	}
	ctrl := newTestController(t, fetcher)

	stats := ctrl.RunCycle(context.Background())
	if stats.SitesSkipped != 3 {
		t.Errorf("sites skipped = %d, want 3", stats.SitesSkipped)
	}
	verdict, ok := ctrl.Results().LatestVerdict("loc1")
	if !ok {
		t.Fatal("expected a verdict even with all sites skipped")
	}
	if verdict.Overall != types.QualityUnknown {
		t.Errorf("overall = %s, want unknown with zero scored sites", verdict.Overall)
	}
}

// thawFreezeTelemetry is 40 warm hours followed by 40 freezing hours with
// snowfall in the last ten.
func thawFreezeTelemetry() *types.SiteTelemetry {
	tel := coldPowderTelemetry()
	for i := 0; i < 40; i++ {
		tel.Hourly[i].TemperatureC = f(5)
	}
	return tel
}

func TestRunCyclePersistsFreezeEvent(t *testing.T) {
	fetcher := &stubFetcher{tel: thawFreezeTelemetry}
	store := summary.NewMemoryStore()
	var wg sync.WaitGroup
	ctrl, err := NewController(context.Background(), &wg, Options{
		Locations: testLocations(),
		Fetcher:   fetcher,
		Store:     store,
		Scorer:    assessment.NewScorer(assessment.DefaultScorerConfig(), zap.NewNop().Sugar()),
	}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	ctrl.RunCycle(context.Background())

	sum, err := store.GetOrCreate(context.Background(), "loc1", "top")
	if err != nil {
		t.Fatal(err)
	}
	if sum.LastFreezeDate == nil {
		t.Fatal("freeze event was not recorded")
	}
	// The warm run ends 40 hours back; everything after it counts.
	if got := time.Since(*sum.LastFreezeDate).Hours(); got < 39 || got > 42 {
		t.Errorf("freeze date %v hours ago, want about 40", got)
	}
	if sum.SnowfallSinceFreezeCM != 20 {
		t.Errorf("since freeze = %v, want 20", sum.SnowfallSinceFreezeCM)
	}
}

func TestRunCycleRespectsCancellation(t *testing.T) {
	fetcher := &stubFetcher{tel: coldPowderTelemetry}
	ctrl := newTestController(t, fetcher)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := ctrl.RunCycle(ctx)
	if stats.LocationsProcessed != 0 {
		t.Errorf("locations processed = %d after cancellation, want 0", stats.LocationsProcessed)
	}
}
