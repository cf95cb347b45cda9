package summary

import (
	"context"
	"time"

	"github.com/powdertrack/snowengine/internal/constants"
	"go.uber.org/zap"
)

// CycleObservation is one cycle's detector output plus the externally
// recomputed figures for a site, handed to the reconciler.
type CycleObservation struct {
	// EventDetected reports whether this cycle's freeze-thaw scan found an
	// event; EventDate is its wall-clock time when it did.
	EventDetected bool
	EventDate     time.Time

	// RecomputedSinceFreezeCM is the source-window recomputation of snowfall
	// since the freeze. Only meaningful while the freeze is inside the
	// source's visible horizon.
	RecomputedSinceFreezeCM float64

	// Trailing24h holds the hourly snowfall readings for the trailing 24
	// hours, used when the stored freeze has scrolled out of the visible
	// horizon. Only hours newer than the record's last update are credited,
	// which keeps re-runs of the same cycle from double-counting.
	Trailing24h []TimedSnowfall
}

// TimedSnowfall is one hour's snowfall reading.
type TimedSnowfall struct {
	Time time.Time
	CM   float64
}

// Reconciler merges each cycle's recomputed accumulation with the stored
// summary. The policy is monotonic and idempotent: re-running a cycle's
// reconciliation with identical observations converges to the same state, so
// at-least-once delivery of a cycle is safe.
type Reconciler struct {
	store        Store
	logger       *zap.SugaredLogger
	horizonHours float64
}

// NewReconciler creates a reconciler writing through the given store.
func NewReconciler(store Store, logger *zap.SugaredLogger) *Reconciler {
	return &Reconciler{
		store:        store,
		logger:       logger,
		horizonHours: constants.VisibleHorizonHours,
	}
}

// Reconcile applies one cycle's observation for a site and returns the
// resulting summary. Storage failures are logged and the best available
// summary is returned so scoring can proceed; they never propagate.
func (r *Reconciler) Reconcile(ctx context.Context, locationID, siteID string, obs CycleObservation) SnowSummary {
	stored, err := r.store.GetOrCreate(ctx, locationID, siteID)
	if err != nil {
		r.logger.Errorf("summary read failed for %s/%s: %v", locationID, siteID, err)
		// Scoring still gets this cycle's recomputed figure.
		return SnowSummary{
			LocationID:            locationID,
			SiteID:                siteID,
			SnowfallSinceFreezeCM: obs.RecomputedSinceFreezeCM,
			TotalSeasonSnowfallCM: obs.RecomputedSinceFreezeCM,
		}
	}

	switch {
	case obs.EventDetected && r.isNewEvent(stored, obs.EventDate):
		return r.applyNewFreeze(ctx, stored, obs)
	case r.beyondHorizon(stored):
		return r.applyLocalAccumulation(ctx, stored, obs)
	default:
		return r.applyExternalMerge(ctx, stored, obs)
	}
}

// isNewEvent reports whether the detected event postdates the stored freeze.
func (r *Reconciler) isNewEvent(stored SnowSummary, eventDate time.Time) bool {
	if stored.LastFreezeDate == nil {
		return true
	}
	return eventDate.After(*stored.LastFreezeDate)
}

// beyondHorizon reports whether the stored freeze is older than the source's
// visible window, making the external recomputation unobservable. A nil
// stored date with no new event means the freeze predates everything the
// source can see.
func (r *Reconciler) beyondHorizon(stored SnowSummary) bool {
	if stored.LastFreezeDate == nil {
		return true
	}
	return time.Since(*stored.LastFreezeDate).Hours() >= r.horizonHours
}

// applyNewFreeze records the freeze (date set + reset, one write) and then
// trusts the external recomputation for the new accumulation.
func (r *Reconciler) applyNewFreeze(ctx context.Context, stored SnowSummary, obs CycleObservation) SnowSummary {
	if err := r.store.RecordFreezeEvent(ctx, stored.LocationID, stored.SiteID, obs.EventDate); err != nil {
		r.logger.Errorf("freeze event write failed for %s/%s: %v", stored.LocationID, stored.SiteID, err)
		stored.SnowfallSinceFreezeCM = obs.RecomputedSinceFreezeCM
		return stored
	}

	eventDate := obs.EventDate
	updated := stored
	updated.LastFreezeDate = &eventDate
	updated.SnowfallSinceFreezeCM = obs.RecomputedSinceFreezeCM
	updated.LastUpdated = time.Now().UTC()
	if err := r.store.UpdateSummary(ctx, updated); err != nil {
		r.logger.Errorf("summary write failed for %s/%s: %v", stored.LocationID, stored.SiteID, err)
		return updated
	}
	return updated
}

// applyLocalAccumulation advances the accumulators purely locally: only the
// newly observed trailing-24h delta is credited, and a zero delta skips the
// write entirely to avoid churn.
func (r *Reconciler) applyLocalAccumulation(ctx context.Context, stored SnowSummary, obs CycleObservation) SnowSummary {
	var delta float64
	for _, h := range obs.Trailing24h {
		if h.CM > 0 && h.Time.After(stored.LastUpdated) {
			delta += h.CM
		}
	}
	if delta <= 0 {
		return stored
	}
	if err := r.store.AddSnowfall(ctx, stored.LocationID, stored.SiteID, delta); err != nil {
		r.logger.Errorf("snowfall increment failed for %s/%s: %v", stored.LocationID, stored.SiteID, err)
		return stored
	}
	stored.SnowfallSinceFreezeCM += delta
	stored.TotalSeasonSnowfallCM += delta
	return stored
}

// applyExternalMerge trusts the external recomputation while the freeze is
// still visible, but never regresses the displayed number, and grows the
// season total only by newly observed snow.
func (r *Reconciler) applyExternalMerge(ctx context.Context, stored SnowSummary, obs CycleObservation) SnowSummary {
	since := obs.RecomputedSinceFreezeCM
	if stored.SnowfallSinceFreezeCM > since {
		since = stored.SnowfallSinceFreezeCM
	}
	gain := obs.RecomputedSinceFreezeCM - stored.SnowfallSinceFreezeCM
	if gain < 0 {
		gain = 0
	}

	updated := stored
	updated.SnowfallSinceFreezeCM = since
	updated.TotalSeasonSnowfallCM = stored.TotalSeasonSnowfallCM + gain
	updated.LastUpdated = time.Now().UTC()
	if err := r.store.UpdateSummary(ctx, updated); err != nil {
		r.logger.Errorf("summary write failed for %s/%s: %v", stored.LocationID, stored.SiteID, err)
		return updated
	}
	return updated
}
