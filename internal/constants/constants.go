// Package constants defines application-wide constants and product-tunable
// thresholds used by the condition assessment engine.
package constants

import (
	"runtime"
	"time"
)

// Version holds the application version information
const Version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

// VisibleHorizonHours is the maximum lookback the upstream weather source can
// report. Recomputed since-freeze figures from the source are unreliable for
// any freeze older than this.
const VisibleHorizonHours = 336 // 14 days

// ObservationValidityHours is the age at which a reading is considered too
// stale to contribute to scoring.
const ObservationValidityHours = 48

// OptimalSnowTempC is the temperature at which snow preservation scores highest.
const OptimalSnowTempC = -5.0

// IceFormationTempC is the temperature at or above which surface melt and
// subsequent refreeze begin to degrade the snowpack.
const IceFormationTempC = 0.0

// HeavySnowfallCM is the trailing-window snowfall at which the snowfall
// sub-score saturates at 1.0.
const HeavySnowfallCM = 30.0

// ObservationRetention is how long raw fetched telemetry is kept in the
// observation cache.
const ObservationRetention = 7 * 24 * time.Hour

// DefaultCycleInterval is how often the batch assessment cycle runs.
const DefaultCycleInterval = time.Hour

// DefaultMaxConcurrentSites bounds in-flight site computations per location.
const DefaultMaxConcurrentSites = 3

// DefaultInterLocationDelay throttles consecutive locations within a cycle to
// respect upstream rate limits.
const DefaultInterLocationDelay = 2 * time.Second

// Quality tier thresholds applied to the combined [0,1] score. Shared by the
// per-site scorer and the location aggregator.
const (
	TierExcellent = 0.9
	TierGood      = 0.7
	TierFair      = 0.5
	TierPoor      = 0.3
	TierBad       = 0.1
)

// Sub-score weights for the combined quality score. Must sum to 1.0.
const (
	WeightTemperature = 0.4
	WeightSnowfall    = 0.4
	WeightFreshness   = 0.2
)
