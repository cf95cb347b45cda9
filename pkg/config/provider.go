// Package config defines the configuration model for the assessment engine
// and the providers that load it.
package config

import "time"

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetLocations() ([]LocationData, error)
	GetStorageConfig() (*StorageData, error)
	GetEngineConfig() (*EngineData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Locations []LocationData `json:"locations"`
	Storage   StorageData    `json:"storage,omitempty"`
	Engine    EngineData     `json:"engine,omitempty"`
	REST      *RESTData      `json:"rest,omitempty"`
}

// LocationData describes one tracked location and its measurement sites.
type LocationData struct {
	ID    string     `json:"id"`
	Name  string     `json:"name,omitempty"`
	Sites []SiteData `json:"sites"`
}

// SiteData describes one measurement site (base/mid/top) within a location.
type SiteData struct {
	ID         string  `json:"id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	ElevationM float64 `json:"elevation_m"`
	Weight     float64 `json:"weight,omitempty"`
}

// StorageData holds the configuration for the storage backends.
type StorageData struct {
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
	ObsCache    *ObsCacheData    `json:"obscache,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

type ObsCacheData struct {
	Path          string `json:"path"`
	RetentionDays int    `json:"retention_days,omitempty"`
}

// EngineData holds engine tunables. Zero values fall back to the defaults in
// the constants package.
type EngineData struct {
	CycleInterval      time.Duration `json:"cycle_interval,omitempty"`
	MaxConcurrentSites int           `json:"max_concurrent_sites,omitempty"`
	InterLocationDelay time.Duration `json:"inter_location_delay,omitempty"`
	TelemetryEndpoint  string        `json:"telemetry_endpoint,omitempty"`
	ForecastHours      int           `json:"forecast_hours,omitempty"`
}

// RESTData configures the read-only observability endpoints.
type RESTData struct {
	ListenAddr string `json:"listen_addr"`
}
