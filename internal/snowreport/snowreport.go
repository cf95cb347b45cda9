// Package snowreport blends secondary snow-report figures into condition
// snapshots. Reports come from an external scraping collaborator and reflect
// direct site-reported measurement, so they outrank model-inferred telemetry.
package snowreport

import (
	"context"
	"time"

	"github.com/powdertrack/snowengine/internal/types"
)

// Report is one location's scraped snow report, unit-converted upstream.
type Report struct {
	LocationID   string
	BaseDepthCM  *float64
	TopDepthCM   *float64
	Snowfall24CM *float64
	Snowfall48CM *float64
	Snowfall72CM *float64
	FetchedAt    time.Time
}

// Source supplies reports. Implemented by the scraping collaborator; a nil
// Source simply disables blending.
type Source interface {
	Report(ctx context.Context, locationID string) (*Report, error)
}

// StaleAfter is the age past which a report is ignored rather than blended.
const StaleAfter = 24 * time.Hour

// Blend merges a report into the snapshot in place. Depth and snowfall
// figures are promoted when the report provides them, and the snapshot's
// source-confidence tag is raised since the figures are human/site-reported
// rather than model-inferred. A nil or stale report leaves the snapshot
// untouched.
func Blend(snap *types.ConditionSnapshot, report *Report) {
	if snap == nil || report == nil {
		return
	}
	if time.Since(report.FetchedAt) > StaleAfter {
		return
	}

	depth := report.TopDepthCM
	if snap.SiteID == "base" && report.BaseDepthCM != nil {
		depth = report.BaseDepthCM
	}
	if depth != nil {
		snap.SnowDepthCM = depth
	}

	promote(&snap.Snowfall24CM, report.Snowfall24CM)
	promote(&snap.Snowfall48CM, report.Snowfall48CM)
	promote(&snap.Snowfall72CM, report.Snowfall72CM)

	if snap.Source < types.SourceReported {
		if report.Snowfall24CM != nil || depth != nil {
			snap.Source = types.SourceBlended
		}
		if report.Snowfall24CM != nil && depth != nil {
			snap.Source = types.SourceReported
		}
	}
}

// promote replaces dst when the report offers a figure the telemetry lacks,
// or when the reported figure is larger. Site reports count snow the gauge
// misses; they never argue snow away.
func promote(dst **float64, reported *float64) {
	if reported == nil {
		return
	}
	if *dst == nil || **dst < *reported {
		v := *reported
		*dst = &v
	}
}
