package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Locations []struct {
			ID    string `yaml:"id"`
			Name  string `yaml:"name"`
			Sites []struct {
				ID         string  `yaml:"id"`
				Latitude   float64 `yaml:"latitude"`
				Longitude  float64 `yaml:"longitude"`
				ElevationM float64 `yaml:"elevation_m"`
				Weight     float64 `yaml:"weight"`
			} `yaml:"sites"`
		} `yaml:"locations"`
		Storage struct {
			TimescaleDB *struct {
				ConnectionString string `yaml:"connection_string"`
			} `yaml:"timescaledb"`
			ObsCache *struct {
				Path          string `yaml:"path"`
				RetentionDays int    `yaml:"retention_days"`
			} `yaml:"obscache"`
		} `yaml:"storage"`
		Engine struct {
			CycleInterval      string `yaml:"cycle_interval"`
			MaxConcurrentSites int    `yaml:"max_concurrent_sites"`
			InterLocationDelay string `yaml:"inter_location_delay"`
			TelemetryEndpoint  string `yaml:"telemetry_endpoint"`
			ForecastHours      int    `yaml:"forecast_hours"`
		} `yaml:"engine"`
		REST *struct {
			ListenAddr string `yaml:"listen_addr"`
		} `yaml:"rest"`
	}

	if err := yaml.Unmarshal(cfgFile, &yamlConfig); err != nil {
		return nil, err
	}

	cfg := &ConfigData{}
	for _, loc := range yamlConfig.Locations {
		location := LocationData{ID: loc.ID, Name: loc.Name}
		for _, site := range loc.Sites {
			location.Sites = append(location.Sites, SiteData{
				ID:         site.ID,
				Latitude:   site.Latitude,
				Longitude:  site.Longitude,
				ElevationM: site.ElevationM,
				Weight:     site.Weight,
			})
		}
		cfg.Locations = append(cfg.Locations, location)
	}

	if yamlConfig.Storage.TimescaleDB != nil {
		cfg.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString,
		}
	}
	if yamlConfig.Storage.ObsCache != nil {
		cfg.Storage.ObsCache = &ObsCacheData{
			Path:          yamlConfig.Storage.ObsCache.Path,
			RetentionDays: yamlConfig.Storage.ObsCache.RetentionDays,
		}
	}

	cfg.Engine = EngineData{
		MaxConcurrentSites: yamlConfig.Engine.MaxConcurrentSites,
		TelemetryEndpoint:  yamlConfig.Engine.TelemetryEndpoint,
		ForecastHours:      yamlConfig.Engine.ForecastHours,
	}
	if yamlConfig.Engine.CycleInterval != "" {
		interval, err := time.ParseDuration(yamlConfig.Engine.CycleInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid cycle_interval: %w", err)
		}
		cfg.Engine.CycleInterval = interval
	}
	if yamlConfig.Engine.InterLocationDelay != "" {
		delay, err := time.ParseDuration(yamlConfig.Engine.InterLocationDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid inter_location_delay: %w", err)
		}
		cfg.Engine.InterLocationDelay = delay
	}

	if yamlConfig.REST != nil {
		cfg.REST = &RESTData{ListenAddr: yamlConfig.REST.ListenAddr}
	}

	y.config = cfg
	return cfg, nil
}

// GetLocations returns the configured locations
func (y *YAMLProvider) GetLocations() ([]LocationData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return y.config.Locations, nil
}

// GetStorageConfig returns the storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return &y.config.Storage, nil
}

// GetEngineConfig returns the engine tunables
func (y *YAMLProvider) GetEngineConfig() (*EngineData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return &y.config.Engine, nil
}

// IsReadOnly returns true; YAML configs are not writable at runtime
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML providers
func (y *YAMLProvider) Close() error {
	return nil
}

func (y *YAMLProvider) ensureLoaded() error {
	if y.config != nil {
		return nil
	}
	_, err := y.LoadConfig()
	return err
}
