// Package cycle runs the batch assessment cycle: for every configured
// location it fetches telemetry per site, detects freeze-thaw events,
// reconciles durable accumulation, scores each site, and aggregates the
// location verdict.
package cycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/powdertrack/snowengine/internal/assessment"
	"github.com/powdertrack/snowengine/internal/constants"
	"github.com/powdertrack/snowengine/internal/freezethaw"
	"github.com/powdertrack/snowengine/internal/obscache"
	"github.com/powdertrack/snowengine/internal/snowreport"
	"github.com/powdertrack/snowengine/internal/summary"
	"github.com/powdertrack/snowengine/internal/types"
	"github.com/powdertrack/snowengine/pkg/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TelemetryFetcher is the upstream weather source dependency.
type TelemetryFetcher interface {
	Fetch(ctx context.Context, lat, lon, elevation float64, freezeHint *time.Time) (*types.SiteTelemetry, error)
}

// Options wires the controller's collaborators. ReportSource, Cache, and DB
// are optional; a nil DB disables verdict history.
type Options struct {
	Locations    []config.LocationData
	Fetcher      TelemetryFetcher
	Store        summary.Store
	Scorer       *assessment.Scorer
	ReportSource snowreport.Source
	Cache        *obscache.Cache
	DB           *gorm.DB

	Interval           time.Duration
	MaxConcurrentSites int
	InterLocationDelay time.Duration
}

// Controller manages the assessment cycle lifecycle.
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	opts       Options
	reconciler *summary.Reconciler
	scheduler  *gocron.Scheduler
	logger     *zap.SugaredLogger
	results    *ResultSet
	stopChan   chan struct{}
}

// NewController creates the cycle controller.
func NewController(ctx context.Context, wg *sync.WaitGroup, opts Options, logger *zap.SugaredLogger) (*Controller, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("telemetry fetcher required for cycle controller")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("summary store required for cycle controller")
	}
	if opts.Scorer == nil {
		return nil, fmt.Errorf("scorer required for cycle controller")
	}
	if opts.Interval <= 0 {
		opts.Interval = constants.DefaultCycleInterval
	}
	if opts.MaxConcurrentSites <= 0 {
		opts.MaxConcurrentSites = constants.DefaultMaxConcurrentSites
	}
	if opts.InterLocationDelay < 0 {
		opts.InterLocationDelay = constants.DefaultInterLocationDelay
	}
	if opts.DB != nil {
		if err := opts.DB.AutoMigrate(&VerdictRecord{}); err != nil {
			return nil, fmt.Errorf("unable to migrate verdict history table: %v", err)
		}
	}

	return &Controller{
		ctx:        ctx,
		wg:         wg,
		opts:       opts,
		reconciler: summary.NewReconciler(opts.Store, logger),
		scheduler:  gocron.NewScheduler(time.UTC),
		logger:     logger,
		results:    newResultSet(),
		stopChan:   make(chan struct{}),
	}, nil
}

// Results exposes the latest cycle outputs for the REST layer.
func (c *Controller) Results() *ResultSet {
	return c.results
}

// Start runs an immediate cycle and then schedules periodic runs. Blocks
// until the context is cancelled or Stop is called.
func (c *Controller) Start() error {
	c.wg.Add(1)
	defer c.wg.Done()

	// Tickers only begin to fire after the interval has elapsed, so run the
	// first cycle now.
	c.RunCycle(c.ctx)

	if _, err := c.scheduler.Every(c.opts.Interval).Do(func() {
		c.RunCycle(c.ctx)
	}); err != nil {
		return fmt.Errorf("unable to schedule assessment cycle: %v", err)
	}
	c.scheduler.StartAsync()
	c.logger.Infof("assessment cycle scheduled every %v for %d locations",
		c.opts.Interval, len(c.opts.Locations))

	select {
	case <-c.ctx.Done():
	case <-c.stopChan:
	}
	c.scheduler.Stop()
	return nil
}

// Stop halts the scheduler.
func (c *Controller) Stop() {
	close(c.stopChan)
}

// RunCycle processes every configured location once. A failure in one
// location or site is isolated, counted, and never aborts the rest.
func (c *Controller) RunCycle(ctx context.Context) Stats {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("assessment cycle panic recovered: %v", r)
		}
	}()

	stats := Stats{RunID: uuid.New(), Started: time.Now().UTC()}
	c.logger.Infof("starting assessment cycle %s", stats.RunID)

	if c.opts.Cache != nil {
		c.opts.Cache.Purge(ctx)
	}

	for i, loc := range c.opts.Locations {
		if ctx.Err() != nil {
			c.logger.Info("assessment cycle cancelled")
			break
		}
		// Throttle between locations to respect upstream rate limits.
		if i > 0 && c.opts.InterLocationDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.opts.InterLocationDelay):
			}
		}

		if err := c.processLocation(ctx, loc, &stats); err != nil {
			c.logger.Errorf("location %s failed: %v", loc.ID, err)
			stats.LocationsErrored++
			continue
		}
		stats.LocationsProcessed++
	}

	stats.Finished = time.Now().UTC()
	c.results.setStats(stats)
	c.logger.Infof("assessment cycle %s complete: %d locations, %d sites, %d skipped, %d errored",
		stats.RunID, stats.LocationsProcessed, stats.SitesProcessed,
		stats.SitesSkipped, stats.SitesErrored)
	return stats
}

// siteOutcome carries one site's result back from the worker pool.
type siteOutcome struct {
	site    config.SiteData
	verdict types.QualityVerdict
	skipped bool
	err     error
}

// processLocation runs the location's sites through a bounded worker pool and
// aggregates their verdicts.
func (c *Controller) processLocation(ctx context.Context, loc config.LocationData, stats *Stats) error {
	if len(loc.Sites) == 0 {
		return fmt.Errorf("no sites configured")
	}

	var report *snowreport.Report
	if c.opts.ReportSource != nil {
		var err error
		report, err = c.opts.ReportSource.Report(ctx, loc.ID)
		if err != nil {
			// The secondary source is optional; telemetry alone suffices.
			c.logger.Warnf("snow report fetch failed for %s: %v", loc.ID, err)
		}
	}

	sem := make(chan struct{}, c.opts.MaxConcurrentSites)
	outcomes := make(chan siteOutcome, len(loc.Sites))
	var wg sync.WaitGroup

	for _, site := range loc.Sites {
		site := site
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes <- c.processSite(ctx, loc.ID, site, report)
		}()
	}
	wg.Wait()
	close(outcomes)

	var weighted []assessment.SiteWeight
	for outcome := range outcomes {
		switch {
		case outcome.err != nil:
			c.logger.Errorf("site %s/%s failed: %v", loc.ID, outcome.site.ID, outcome.err)
			stats.SitesErrored++
		case outcome.skipped:
			stats.SitesSkipped++
		default:
			stats.SitesProcessed++
			weight := outcome.site.Weight
			if weight <= 0 {
				weight = assessment.WeightForSite(outcome.site.ID)
			}
			weighted = append(weighted, assessment.SiteWeight{
				Verdict: outcome.verdict,
				Weight:  weight,
			})
		}
	}

	verdict := assessment.Aggregate(loc.ID, weighted)
	c.results.setVerdict(verdict)
	c.logger.Infof("location %s assessed: %s (%d sites)", loc.ID, verdict.OverallName, len(weighted))

	if c.opts.DB != nil {
		if err := appendHistory(c.opts.DB, verdict); err != nil {
			c.logger.Errorf("verdict history write failed for %s: %v", loc.ID, err)
		}
	}
	return nil
}

// processSite runs one site's full pipeline: fetch, cache, detect, reconcile,
// blend, score.
func (c *Controller) processSite(ctx context.Context, locationID string, site config.SiteData, report *snowreport.Report) siteOutcome {
	outcome := siteOutcome{site: site}

	stored, err := c.opts.Store.GetOrCreate(ctx, locationID, site.ID)
	var freezeHint *time.Time
	if err == nil {
		freezeHint = stored.LastFreezeDate
	}

	tel, err := c.opts.Fetcher.Fetch(ctx, site.Latitude, site.Longitude, site.ElevationM, freezeHint)
	if err != nil {
		// Fall back to the cached observation before skipping the site.
		if c.opts.Cache != nil {
			if cached, cerr := c.opts.Cache.Latest(ctx, locationID, site.ID); cerr == nil && cached != nil {
				c.logger.Warnf("using cached telemetry for %s/%s after fetch failure: %v",
					locationID, site.ID, err)
				tel = cached
			}
		}
		if tel == nil {
			c.logger.Warnf("skipping site %s/%s: %v", locationID, site.ID, err)
			outcome.skipped = true
			return outcome
		}
	} else if c.opts.Cache != nil {
		if cerr := c.opts.Cache.Put(ctx, locationID, site.ID, tel); cerr != nil {
			c.logger.Errorf("observation cache write failed for %s/%s: %v", locationID, site.ID, cerr)
		}
	}

	now := time.Now().UTC()
	nowIdx := freezethaw.NowIndex(tel.Hourly, now)
	det := freezethaw.Detect(tel.Hourly, nowIdx, freezethaw.DefaultRules)

	obs := summary.CycleObservation{
		Trailing24h: trailingSnowfall(tel.Hourly, nowIdx),
	}
	if det.Found {
		obs.EventDetected = true
		obs.EventDate = tel.Hourly[det.EventIndex].Timestamp
		obs.RecomputedSinceFreezeCM = freezethaw.SnowfallSince(tel.Hourly, det.EventIndex, nowIdx)
	} else {
		// No event inside the window: everything visible counts as since
		// the last freeze.
		obs.RecomputedSinceFreezeCM = freezethaw.SnowfallSince(tel.Hourly, 0, nowIdx)
	}

	sum := c.reconciler.Reconcile(ctx, locationID, site.ID, obs)

	snap := buildSnapshot(locationID, site.ID, tel, det, sum, now)
	snowreport.Blend(&snap, report)

	outcome.verdict = c.opts.Scorer.Assess(snap)
	return outcome
}
