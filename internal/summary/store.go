// Package summary maintains the durable per-site snow accumulation records
// and reconciles them each cycle against freshly recomputed figures.
//
// The upstream weather source only exposes a bounded lookback window while a
// tracked season runs for months, and raw observations are purged on a short
// retention. SnowSummary records carry the season across both limits.
package summary

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnowSummary is the durable accumulation record for one measurement site.
// snowfall_since_freeze resets to zero whenever a new freeze event is
// recorded; total_season only grows until an explicit season reset.
type SnowSummary struct {
	LocationID            string     `gorm:"primaryKey;column:location_id"`
	SiteID                string     `gorm:"primaryKey;column:site_id"`
	LastFreezeDate        *time.Time `gorm:"column:last_freeze_date"`
	SnowfallSinceFreezeCM float64    `gorm:"column:snowfall_since_freeze_cm"`
	TotalSeasonSnowfallCM float64    `gorm:"column:total_season_snowfall_cm"`
	SeasonStartDate       time.Time  `gorm:"column:season_start_date"`
	LastUpdated           time.Time  `gorm:"column:last_updated"`
}

func (SnowSummary) TableName() string {
	return "snow_summaries"
}

// Store is the persistence contract for SnowSummary records. All mutating
// operations are atomic at the single-record level: no reader may observe a
// freeze date updated without its accumulator reset, or vice versa.
type Store interface {
	// GetOrCreate returns the record for the key, creating and persisting a
	// zero-state default on first observation so concurrent readers see a
	// stable shape rather than a transient absence.
	GetOrCreate(ctx context.Context, locationID, siteID string) (SnowSummary, error)

	// RecordFreezeEvent atomically sets last_freeze_date and resets
	// snowfall_since_freeze_cm to zero in the same write. The season total is
	// untouched.
	RecordFreezeEvent(ctx context.Context, locationID, siteID string, freezeDate time.Time) error

	// AddSnowfall atomically increments both accumulators by deltaCM. A no-op
	// when deltaCM <= 0.
	AddSnowfall(ctx context.Context, locationID, siteID string, deltaCM float64) error

	// UpdateSummary unconditionally overwrites the record with caller-computed
	// final values.
	UpdateSummary(ctx context.Context, s SnowSummary) error

	// ResetSeason deletes the record so the next observation starts a fresh
	// season. The only path that ever shrinks the season total.
	ResetSeason(ctx context.Context, locationID, siteID string) error
}

// GormStore persists SnowSummary records through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store backed by the given database and ensures the
// table exists.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&SnowSummary{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) GetOrCreate(ctx context.Context, locationID, siteID string) (SnowSummary, error) {
	record := SnowSummary{
		LocationID:      locationID,
		SiteID:          siteID,
		SeasonStartDate: time.Now().UTC(),
		LastUpdated:     time.Now().UTC(),
	}
	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error
	if err != nil {
		return SnowSummary{}, err
	}

	var existing SnowSummary
	err = g.db.WithContext(ctx).
		Where("location_id = ? AND site_id = ?", locationID, siteID).
		First(&existing).Error
	if err != nil {
		return SnowSummary{}, err
	}
	return existing, nil
}

func (g *GormStore) RecordFreezeEvent(ctx context.Context, locationID, siteID string, freezeDate time.Time) error {
	// Single UPDATE so the date change and the reset are indivisible.
	return g.db.WithContext(ctx).Model(&SnowSummary{}).
		Where("location_id = ? AND site_id = ?", locationID, siteID).
		Updates(map[string]interface{}{
			"last_freeze_date":         freezeDate,
			"snowfall_since_freeze_cm": 0.0,
			"last_updated":             time.Now().UTC(),
		}).Error
}

func (g *GormStore) AddSnowfall(ctx context.Context, locationID, siteID string, deltaCM float64) error {
	if deltaCM <= 0 {
		return nil
	}
	return g.db.WithContext(ctx).Model(&SnowSummary{}).
		Where("location_id = ? AND site_id = ?", locationID, siteID).
		Updates(map[string]interface{}{
			"snowfall_since_freeze_cm": gorm.Expr("snowfall_since_freeze_cm + ?", deltaCM),
			"total_season_snowfall_cm": gorm.Expr("total_season_snowfall_cm + ?", deltaCM),
			"last_updated":             time.Now().UTC(),
		}).Error
}

func (g *GormStore) UpdateSummary(ctx context.Context, s SnowSummary) error {
	return g.db.WithContext(ctx).Save(&s).Error
}

func (g *GormStore) ResetSeason(ctx context.Context, locationID, siteID string) error {
	return g.db.WithContext(ctx).
		Where("location_id = ? AND site_id = ?", locationID, siteID).
		Delete(&SnowSummary{}).Error
}

// MemoryStore is a mutex-guarded in-memory Store. Used by tests and as the
// degraded mode when no database is configured; accumulation then survives
// the process lifetime only.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]SnowSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]SnowSummary)}
}

func key(locationID, siteID string) string {
	return locationID + "/" + siteID
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, locationID, siteID string) (SnowSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(locationID, siteID)
	if record, ok := m.records[k]; ok {
		return record, nil
	}
	record := SnowSummary{
		LocationID:      locationID,
		SiteID:          siteID,
		SeasonStartDate: time.Now().UTC(),
		LastUpdated:     time.Now().UTC(),
	}
	m.records[k] = record
	return record, nil
}

func (m *MemoryStore) RecordFreezeEvent(ctx context.Context, locationID, siteID string, freezeDate time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := m.records[key(locationID, siteID)]
	record.LocationID = locationID
	record.SiteID = siteID
	record.LastFreezeDate = &freezeDate
	record.SnowfallSinceFreezeCM = 0
	record.LastUpdated = time.Now().UTC()
	m.records[key(locationID, siteID)] = record
	return nil
}

func (m *MemoryStore) AddSnowfall(ctx context.Context, locationID, siteID string, deltaCM float64) error {
	if deltaCM <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record := m.records[key(locationID, siteID)]
	record.LocationID = locationID
	record.SiteID = siteID
	record.SnowfallSinceFreezeCM += deltaCM
	record.TotalSeasonSnowfallCM += deltaCM
	record.LastUpdated = time.Now().UTC()
	m.records[key(locationID, siteID)] = record
	return nil
}

func (m *MemoryStore) UpdateSummary(ctx context.Context, s SnowSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key(s.LocationID, s.SiteID)] = s
	return nil
}

func (m *MemoryStore) ResetSeason(ctx context.Context, locationID, siteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key(locationID, siteID))
	return nil
}
