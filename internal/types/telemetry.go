// Package types holds the domain data types shared across the assessment
// engine: hourly telemetry samples, per-cycle condition snapshots, and the
// quality/confidence verdict types.
package types

import "time"

// HourlySample is one hour of weather telemetry. Pointer fields are nil when
// the source reported no reading for that hour.
type HourlySample struct {
	Timestamp    time.Time // hour-truncated
	TemperatureC *float64
	SnowfallCM   *float64
	SnowDepthCM  *float64
}

// SiteTelemetry is one fetch's worth of data for a measurement site: an
// ascending hourly history (which may contain gaps), an explicit current
// reading, and an optional forecast tail.
type SiteTelemetry struct {
	Hourly    []HourlySample
	Current   CurrentReading
	Forecast  []HourlySample
	FetchedAt time.Time
}

// CurrentReading is the source's explicit "now" observation.
type CurrentReading struct {
	Timestamp    time.Time
	TemperatureC *float64
	SnowDepthCM  *float64
	HumidityPct  *float64
	WindSpeedKMH *float64
}

// SourceConfidence tags how trustworthy the upstream figures are. Direct
// site-reported measurements outrank model inference.
type SourceConfidence int

const (
	SourceModeled SourceConfidence = iota
	SourceBlended
	SourceReported
)

// ConditionSnapshot is the per-cycle, per-site working set handed to the
// scorer. It is never persisted; only its derived effect on SnowSummary is.
type ConditionSnapshot struct {
	LocationID string
	SiteID     string

	CurrentTempC         *float64
	MinTempC             *float64
	MaxTempC             *float64
	Snowfall24CM         *float64
	Snowfall48CM         *float64
	Snowfall72CM         *float64
	SnowDepthCM          *float64
	HumidityPct          *float64
	WindSpeedKMH         *float64
	HoursAboveIce        map[float64]int // threshold temp -> hours spent at or above it
	HoursSinceSnowfall   *float64
	ForecastSnowfall24CM *float64 // predicted snowfall over the next 24h, when a forecast tail was supplied
	Warming              bool

	FreshSnowCM      float64 // reconciled accumulation since last freeze
	HoursSinceFreeze float64

	Source     SourceConfidence
	ObservedAt time.Time
}

// QualityVerdict is the scorer's output for one site.
type QualityVerdict struct {
	SiteID               string          `json:"site_id"`
	Quality              QualityLevel    `json:"-"`
	QualityName          string          `json:"quality"`
	Score                float64         `json:"score"`
	FreshSnowCM          float64         `json:"fresh_snow_cm"`
	ForecastSnowfall24CM *float64        `json:"forecast_snowfall_24h_cm,omitempty"`
	Confidence           ConfidenceLevel `json:"-"`
	ConfidenceName       string          `json:"confidence"`
}

// LocationVerdict is the aggregated verdict across a location's sites.
type LocationVerdict struct {
	LocationID  string           `json:"location_id"`
	Overall     QualityLevel     `json:"-"`
	OverallName string           `json:"overall_quality"`
	Sites       []QualityVerdict `json:"sites,omitempty"`
	AssessedAt  time.Time        `json:"assessed_at"`
}
