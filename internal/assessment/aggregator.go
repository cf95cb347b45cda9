package assessment

import (
	"time"

	"github.com/powdertrack/snowengine/internal/types"
	"gonum.org/v1/gonum/stat"
)

// SiteWeight pairs a site's verdict with its aggregation weight. Upper
// mountain sites dominate the skiable experience, so mid/top sites carry
// more weight than base sites.
type SiteWeight struct {
	Verdict types.QualityVerdict
	Weight  float64
}

// DefaultSiteWeights maps conventional site identifiers to aggregation
// weights. Unrecognized sites fall back to 1.0.
var DefaultSiteWeights = map[string]float64{
	"base": 1.0,
	"mid":  1.5,
	"top":  2.0,
}

// WeightForSite returns the aggregation weight for a site identifier.
func WeightForSite(siteID string) float64 {
	if w, ok := DefaultSiteWeights[siteID]; ok {
		return w
	}
	return 1.0
}

// Aggregate combines per-site verdicts into one location verdict.
//
// A single horrible site forces the location to horrible: a site that is
// actively melting out is not compensated for by a good upper site. Otherwise
// the weighted mean of the sites' quality ranks is mapped back through the
// shared tier thresholds. Zero sites with data yields unknown.
func Aggregate(locationID string, sites []SiteWeight) types.LocationVerdict {
	verdict := types.LocationVerdict{
		LocationID: locationID,
		AssessedAt: time.Now().UTC(),
	}

	var ranks, weights []float64
	for _, sw := range sites {
		verdict.Sites = append(verdict.Sites, sw.Verdict)
		if sw.Verdict.Quality == types.QualityUnknown {
			continue
		}
		if sw.Verdict.Quality == types.QualityHorrible {
			verdict.Overall = types.QualityHorrible
			verdict.OverallName = verdict.Overall.String()
			return verdict
		}
		w := sw.Weight
		if w <= 0 {
			w = 1.0
		}
		ranks = append(ranks, normalizedRank(sw.Verdict.Quality))
		weights = append(weights, w)
	}

	if len(ranks) == 0 {
		verdict.Overall = types.QualityUnknown
		verdict.OverallName = verdict.Overall.String()
		return verdict
	}

	var mean float64
	if len(ranks) == 1 {
		// Single representative site: the plain rank, explicitly the
		// inferior fallback.
		mean = ranks[0]
	} else {
		mean = stat.Mean(ranks, weights)
	}

	verdict.Overall = TierForScore(mean)
	verdict.OverallName = verdict.Overall.String()
	return verdict
}

// normalizedRank maps a quality tier onto the same [0,1] scale the tier
// thresholds are defined over, so the weighted rank mean can be mapped back
// through TierForScore.
func normalizedRank(q types.QualityLevel) float64 {
	return (q.Rank() - types.QualityHorrible.Rank()) /
		(types.QualityExcellent.Rank() - types.QualityHorrible.Rank())
}
