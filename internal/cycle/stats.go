package cycle

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/powdertrack/snowengine/internal/types"
)

// Stats aggregates one cycle's outcome counts for observability. Failures are
// contained to the site or location that caused them and surface here rather
// than aborting the batch.
type Stats struct {
	RunID              uuid.UUID `json:"run_id"`
	Started            time.Time `json:"started"`
	Finished           time.Time `json:"finished"`
	LocationsProcessed int       `json:"locations_processed"`
	LocationsErrored   int       `json:"locations_errored"`
	SitesProcessed     int       `json:"sites_processed"`
	SitesSkipped       int       `json:"sites_skipped"`
	SitesErrored       int       `json:"sites_errored"`
}

// ResultSet holds the latest cycle outputs for the REST layer: the most recent
// stats and the newest verdict per location.
type ResultSet struct {
	mu       sync.RWMutex
	stats    Stats
	verdicts map[string]types.LocationVerdict
}

func newResultSet() *ResultSet {
	return &ResultSet{verdicts: make(map[string]types.LocationVerdict)}
}

func (r *ResultSet) setStats(s Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = s
}

func (r *ResultSet) setVerdict(v types.LocationVerdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verdicts[v.LocationID] = v
}

// LatestStats returns the most recent completed cycle's stats.
func (r *ResultSet) LatestStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// LatestVerdicts returns a copy of the newest verdict per location.
func (r *ResultSet) LatestVerdicts() []types.LocationVerdict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.LocationVerdict, 0, len(r.verdicts))
	for _, v := range r.verdicts {
		out = append(out, v)
	}
	return out
}

// LatestVerdict returns the newest verdict for one location.
func (r *ResultSet) LatestVerdict(locationID string) (types.LocationVerdict, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.verdicts[locationID]
	return v, ok
}
