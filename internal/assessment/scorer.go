// Package assessment converts per-site condition snapshots into quality
// verdicts and combines site verdicts into a single location verdict.
package assessment

import (
	"math"
	"time"

	"github.com/powdertrack/snowengine/internal/constants"
	"github.com/powdertrack/snowengine/internal/types"
	"go.uber.org/zap"
)

// ScorerConfig holds the product-tunable scoring thresholds. Zero values are
// replaced with the defaults from the constants package.
type ScorerConfig struct {
	OptimalTempC      float64
	IceFormationTempC float64
	ValidityHours     float64
	HeavySnowfallCM   float64
	WeightTemperature float64
	WeightSnowfall    float64
	WeightFreshness   float64
}

// DefaultScorerConfig returns the canonical scoring configuration.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		OptimalTempC:      constants.OptimalSnowTempC,
		IceFormationTempC: constants.IceFormationTempC,
		ValidityHours:     constants.ObservationValidityHours,
		HeavySnowfallCM:   constants.HeavySnowfallCM,
		WeightTemperature: constants.WeightTemperature,
		WeightSnowfall:    constants.WeightSnowfall,
		WeightFreshness:   constants.WeightFreshness,
	}
}

// Scorer maps one site's ConditionSnapshot to a QualityVerdict. It never
// fails: missing or invalid inputs degrade the confidence grade and the
// score is derived from whatever sub-scores could be computed.
type Scorer struct {
	cfg    ScorerConfig
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewScorer creates a scorer with explicit configuration. No shared state:
// each caller constructs its own.
func NewScorer(cfg ScorerConfig, logger *zap.SugaredLogger) *Scorer {
	def := DefaultScorerConfig()
	if cfg.ValidityHours <= 0 {
		cfg.ValidityHours = def.ValidityHours
	}
	if cfg.HeavySnowfallCM <= 0 {
		cfg.HeavySnowfallCM = def.HeavySnowfallCM
	}
	if cfg.WeightTemperature+cfg.WeightSnowfall+cfg.WeightFreshness == 0 {
		cfg.WeightTemperature = def.WeightTemperature
		cfg.WeightSnowfall = def.WeightSnowfall
		cfg.WeightFreshness = def.WeightFreshness
	}
	if cfg.OptimalTempC == 0 && cfg.IceFormationTempC == 0 {
		cfg.OptimalTempC = def.OptimalTempC
	}
	return &Scorer{cfg: cfg, logger: logger, now: time.Now}
}

// Assess produces the verdict for one snapshot.
func (s *Scorer) Assess(snap types.ConditionSnapshot) types.QualityVerdict {
	tempScore, tempOK := s.temperatureScore(snap)
	freshScore := s.freshnessScore(snap)
	snowScore, snowOK := s.snowfallScore(snap)

	score := s.combine(tempScore, tempOK, snowScore, snowOK, freshScore)
	quality := TierForScore(score)

	verdict := types.QualityVerdict{
		SiteID:               snap.SiteID,
		Quality:              quality,
		QualityName:          quality.String(),
		Score:                score,
		FreshSnowCM:          s.freshSnowEstimate(snap, tempScore, freshScore),
		ForecastSnowfall24CM: snap.ForecastSnowfall24CM,
		Confidence:           s.confidence(snap, tempOK, snowOK),
	}
	verdict.ConfidenceName = verdict.Confidence.String()
	return verdict
}

// temperatureScore peaks at the optimal temperature and decays to zero as the
// reading approaches ice formation, with a further penalty for hours already
// spent above ice-formation thresholds.
func (s *Scorer) temperatureScore(snap types.ConditionSnapshot) (float64, bool) {
	if snap.CurrentTempC == nil {
		return 0, false
	}
	temp := *snap.CurrentTempC

	var score float64
	switch {
	case temp <= s.cfg.OptimalTempC:
		// Colder than optimal stays nearly ideal, easing off gently for
		// extreme cold.
		score = 1.0 - math.Min(0.2, (s.cfg.OptimalTempC-temp)/50.0)
	case temp >= s.cfg.IceFormationTempC:
		score = 0
	default:
		score = (s.cfg.IceFormationTempC - temp) / (s.cfg.IceFormationTempC - s.cfg.OptimalTempC)
	}

	// More hours above an ice-formation threshold means a more degraded
	// surface regardless of the instantaneous reading.
	if len(snap.HoursAboveIce) > 0 {
		worst := 0.0
		for _, hours := range snap.HoursAboveIce {
			frac := float64(hours) / 24.0
			if frac > worst {
				worst = frac
			}
		}
		if worst > 1 {
			worst = 1
		}
		score *= 1 - 0.5*worst
	}
	if snap.Warming {
		score *= 0.9
	}
	return clamp01(score), true
}

// freshnessScore is near 1.0 for a just-taken reading and decays toward zero
// as the observation's age approaches the validity horizon.
func (s *Scorer) freshnessScore(snap types.ConditionSnapshot) float64 {
	if snap.ObservedAt.IsZero() {
		return 0
	}
	age := s.now().Sub(snap.ObservedAt).Hours()
	if age < 0 {
		age = 0
	}
	if age >= s.cfg.ValidityHours {
		return 0
	}
	return clamp01(1 - age/s.cfg.ValidityHours)
}

// snowfallScore rises from 0 toward 1.0 with trailing snowfall, saturating at
// the heavy-snowfall threshold. Recent windows count more than older ones.
func (s *Scorer) snowfallScore(snap types.ConditionSnapshot) (float64, bool) {
	if snap.Snowfall24CM == nil && snap.Snowfall48CM == nil && snap.Snowfall72CM == nil {
		return 0, false
	}
	weighted := 0.0
	if snap.Snowfall24CM != nil {
		weighted += *snap.Snowfall24CM * 0.5
	}
	if snap.Snowfall48CM != nil {
		weighted += *snap.Snowfall48CM * 0.3
	}
	if snap.Snowfall72CM != nil {
		weighted += *snap.Snowfall72CM * 0.2
	}
	return clamp01(weighted / s.cfg.HeavySnowfallCM), true
}

// combine applies the configured weights, renormalizing over the sub-scores
// that could actually be computed so a missing input is not scored as zero.
func (s *Scorer) combine(tempScore float64, tempOK bool, snowScore float64, snowOK bool, freshScore float64) float64 {
	totalWeight := s.cfg.WeightFreshness
	sum := freshScore * s.cfg.WeightFreshness
	if tempOK {
		totalWeight += s.cfg.WeightTemperature
		sum += tempScore * s.cfg.WeightTemperature
	}
	if snowOK {
		totalWeight += s.cfg.WeightSnowfall
		sum += snowScore * s.cfg.WeightSnowfall
	}
	if totalWeight == 0 {
		return 0
	}
	return clamp01(sum / totalWeight)
}

// freshSnowEstimate discounts the reconciled accumulation when preservation
// looks degraded, never exceeding the raw observed accumulation.
func (s *Scorer) freshSnowEstimate(snap types.ConditionSnapshot, tempScore, freshScore float64) float64 {
	raw := snap.FreshSnowCM
	if raw <= 0 && snap.Snowfall72CM != nil {
		// No reconciled summary available; fall back to the raw window.
		raw = *snap.Snowfall72CM
	}
	if raw <= 0 {
		return 0
	}
	preservation := 0.5 + 0.5*math.Min(tempScore, math.Max(freshScore, 0.2))
	estimate := raw * preservation
	if estimate > raw {
		estimate = raw
	}
	return estimate
}

// confidence starts from the upstream source tag, downgrades for missing
// fields and stale observations, and upgrades a complete fresh reading from
// a directly-reported source.
func (s *Scorer) confidence(snap types.ConditionSnapshot, tempOK, snowOK bool) types.ConfidenceLevel {
	// Hard requirements: without temperature and snowfall there is nothing to
	// be confident about.
	if !tempOK || !snowOK {
		return types.ConfidenceVeryLow
	}
	if snap.ObservedAt.IsZero() {
		return types.ConfidenceVeryLow
	}

	var conf types.ConfidenceLevel
	switch snap.Source {
	case types.SourceReported:
		conf = types.ConfidenceHigh
	case types.SourceBlended:
		conf = types.ConfidenceMedium
	default:
		conf = types.ConfidenceMedium
	}

	completeness := s.completeness(snap)
	switch {
	case completeness < 0.5:
		conf = conf.Downgrade(2)
	case completeness < 0.75:
		conf = conf.Downgrade(1)
	}

	age := s.now().Sub(snap.ObservedAt).Hours()
	switch {
	case age >= s.cfg.ValidityHours:
		conf = conf.Downgrade(2)
	case age >= s.cfg.ValidityHours/2:
		conf = conf.Downgrade(1)
	case age <= 3 && completeness >= 0.95 && snap.Source == types.SourceReported:
		conf = conf.Upgrade(1)
	}
	return conf
}

// completeness scores the soft optional fields; missing optionals only lower
// confidence in aggregate, not individually.
func (s *Scorer) completeness(snap types.ConditionSnapshot) float64 {
	optional := []bool{
		snap.HumidityPct != nil,
		snap.WindSpeedKMH != nil,
		snap.Snowfall48CM != nil,
		snap.Snowfall72CM != nil,
		snap.SnowDepthCM != nil,
		snap.MinTempC != nil && snap.MaxTempC != nil,
	}
	present := 0
	for _, ok := range optional {
		if ok {
			present++
		}
	}
	return float64(present) / float64(len(optional))
}

// TierForScore maps a combined [0,1] score to its quality tier. Shared with
// the location aggregator so both ends of the pipeline agree.
func TierForScore(score float64) types.QualityLevel {
	switch {
	case score >= constants.TierExcellent:
		return types.QualityExcellent
	case score >= constants.TierGood:
		return types.QualityGood
	case score >= constants.TierFair:
		return types.QualityFair
	case score >= constants.TierPoor:
		return types.QualityPoor
	case score >= constants.TierBad:
		return types.QualityBad
	default:
		return types.QualityHorrible
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
