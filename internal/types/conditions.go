package types

// QualityLevel is the closed set of snow quality tiers, ordered worst to best.
// Unknown sorts below everything and is reserved for locations with no data.
type QualityLevel int

const (
	QualityUnknown QualityLevel = iota
	QualityHorrible
	QualityBad
	QualityPoor
	QualityFair
	QualityGood
	QualityExcellent
)

var qualityNames = map[QualityLevel]string{
	QualityUnknown:   "unknown",
	QualityHorrible:  "horrible",
	QualityBad:       "bad",
	QualityPoor:      "poor",
	QualityFair:      "fair",
	QualityGood:      "good",
	QualityExcellent: "excellent",
}

func (q QualityLevel) String() string {
	if name, ok := qualityNames[q]; ok {
		return name
	}
	return "unknown"
}

// Rank returns the numeric rank used for cross-site averaging. Unknown has no
// rank and contributes nothing to an average.
func (q QualityLevel) Rank() float64 {
	return float64(q)
}

// ConfidenceLevel is the closed set of verdict confidence grades, ordered
// lowest to highest.
type ConfidenceLevel int

const (
	ConfidenceVeryLow ConfidenceLevel = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
	ConfidenceVeryHigh
)

var confidenceNames = map[ConfidenceLevel]string{
	ConfidenceVeryLow:  "very_low",
	ConfidenceLow:      "low",
	ConfidenceMedium:   "medium",
	ConfidenceHigh:     "high",
	ConfidenceVeryHigh: "very_high",
}

func (c ConfidenceLevel) String() string {
	if name, ok := confidenceNames[c]; ok {
		return name
	}
	return "very_low"
}

// Downgrade lowers the confidence by n grades, clamping at the bottom.
func (c ConfidenceLevel) Downgrade(n int) ConfidenceLevel {
	out := c - ConfidenceLevel(n)
	if out < ConfidenceVeryLow {
		return ConfidenceVeryLow
	}
	return out
}

// Upgrade raises the confidence by n grades, clamping at the top.
func (c ConfidenceLevel) Upgrade(n int) ConfidenceLevel {
	out := c + ConfidenceLevel(n)
	if out > ConfidenceVeryHigh {
		return ConfidenceVeryHigh
	}
	return out
}
