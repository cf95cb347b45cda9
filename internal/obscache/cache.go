// Package obscache is the short-retention durable cache of raw fetched
// telemetry. It lets a cycle be re-run without refetching and backs the
// local trailing-window bookkeeping. Retention is days, not seasons;
// season-scale state lives in the summary records.
package obscache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/powdertrack/snowengine/internal/types"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Cache stores observations in a local sqlite file, one row per fetch, with
// the hourly series msgpack-encoded.
type Cache struct {
	db        *sql.DB
	logger    *zap.SugaredLogger
	retention time.Duration
}

// observationRow is the msgpack payload schema.
type observationRow struct {
	Hourly   []types.HourlySample `msgpack:"hourly"`
	Current  types.CurrentReading `msgpack:"current"`
	Forecast []types.HourlySample `msgpack:"forecast"`
}

// Open opens (creating if needed) the cache database at path.
func Open(path string, retention time.Duration, logger *zap.SugaredLogger) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open observation cache: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS observations (
			location_id TEXT NOT NULL,
			site_id     TEXT NOT NULL,
			fetched_at  TIMESTAMP NOT NULL,
			payload     BLOB NOT NULL,
			PRIMARY KEY (location_id, site_id, fetched_at)
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create observations table: %w", err)
	}

	return &Cache{db: db, logger: logger, retention: retention}, nil
}

// Put stores one fetch's telemetry for a site.
func (c *Cache) Put(ctx context.Context, locationID, siteID string, tel *types.SiteTelemetry) error {
	payload, err := msgpack.Marshal(observationRow{
		Hourly:   tel.Hourly,
		Current:  tel.Current,
		Forecast: tel.Forecast,
	})
	if err != nil {
		return fmt.Errorf("unable to encode observation: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO observations (location_id, site_id, fetched_at, payload)
		VALUES (?, ?, ?, ?)`,
		locationID, siteID, tel.FetchedAt.UTC(), payload)
	if err != nil {
		return fmt.Errorf("unable to store observation: %w", err)
	}
	return nil
}

// Latest returns the most recent cached telemetry for a site, or nil when
// none is cached.
func (c *Cache) Latest(ctx context.Context, locationID, siteID string) (*types.SiteTelemetry, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT fetched_at, payload FROM observations
		WHERE location_id = ? AND site_id = ?
		ORDER BY fetched_at DESC LIMIT 1`,
		locationID, siteID)

	var fetchedAt time.Time
	var payload []byte
	if err := row.Scan(&fetchedAt, &payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read observation: %w", err)
	}

	var decoded observationRow
	if err := msgpack.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("unable to decode observation: %w", err)
	}
	return &types.SiteTelemetry{
		Hourly:    decoded.Hourly,
		Current:   decoded.Current,
		Forecast:  decoded.Forecast,
		FetchedAt: fetchedAt,
	}, nil
}

// Purge removes rows older than the retention window. Called once per cycle;
// failures are logged, never fatal.
func (c *Cache) Purge(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-c.retention)
	res, err := c.db.ExecContext(ctx, `DELETE FROM observations WHERE fetched_at < ?`, cutoff)
	if err != nil {
		c.logger.Errorf("observation cache purge failed: %v", err)
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		c.logger.Debugf("purged %d expired observations", n)
	}
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
