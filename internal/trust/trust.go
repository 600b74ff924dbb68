// internal/trust/trust.go
package trust

import (
	"math"
	"time"

	"github.com/javajoker/venuetrust/internal/analysis"
)

const (
	MinWeight       = 0.1
	adPenaltyFactor = 0.8
	positiveRating  = 4.0
)

// ReviewInput is one review as seen by the aggregation. Analysis is the
// latest persisted analysis, or nil when none exists yet.
type ReviewInput struct {
	Rating        float64
	External      bool
	Content       string
	IsDisclosedAd bool
	CreatedAt     time.Time
	Analysis      *analysis.Result
	AnalyzedAt    *time.Time
}

// StoreInput carries the store-level metadata the aggregation falls back to.
type StoreInput struct {
	ExternalRating      *float64
	ExternalReviewCount int
}

// Summary is the trust-weighted aggregate of a store's reviews.
type Summary struct {
	WeightedRating         *float64   `json:"weighted_rating"`
	AppAverageRating       *float64   `json:"app_average_rating"`
	AdSuspectRatio         float64    `json:"ad_suspect_ratio"`
	TrustScore             float64    `json:"trust_score"`
	PositiveRatio          float64    `json:"positive_ratio"`
	ReviewCount            int        `json:"review_count"`
	AppReviewCount         int        `json:"app_review_count"`
	ExternalReviewCount    int        `json:"external_review_count"`
	LastAnalyzedAt         *time.Time `json:"last_analyzed_at"`
	LatestExternalReviewAt *time.Time `json:"latest_external_review_at"`
	LatestReviewAt         *time.Time `json:"latest_review_at"`
}

// Weight is the contribution of one review to the weighted rating. It never
// drops below MinWeight.
func Weight(trustScore, combinedAd float64) float64 {
	w := analysis.Clamp01(trustScore) * (1 - analysis.Clamp01(combinedAd)*adPenaltyFactor)
	if w < MinWeight {
		return MinWeight
	}
	return w
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clampRating(v float64) float64 {
	return math.Min(5, math.Max(1, v))
}

func laterOf(cur *time.Time, t time.Time) *time.Time {
	if cur == nil || t.After(*cur) {
		return &t
	}
	return cur
}

// Aggregate folds a store's reviews into a Summary. Reviews without an
// analysis are scored by the heuristic on the fly.
func Aggregate(store StoreInput, reviews []ReviewInput) Summary {
	var s Summary
	if len(reviews) == 0 {
		if store.ExternalRating != nil {
			r := Round(clampRating(*store.ExternalRating), 2)
			s.WeightedRating = &r
		}
		s.ExternalReviewCount = max(store.ExternalReviewCount, 0)
		s.ReviewCount = s.ExternalReviewCount
		return s
	}

	var (
		weightSum, weightedSum, positiveWeight float64
		combinedSum, trustSum                  float64
		appSum                                 float64
		observedExternal                       int
	)
	for _, rv := range reviews {
		in := analysis.Input{Rating: rv.Rating, Content: rv.Content, IsDisclosedAd: rv.IsDisclosedAd, External: rv.External}
		res := rv.Analysis
		if res == nil {
			res = analysis.Heuristic{}.Evaluate(in)
		}
		res = analysis.Normalize(res, in)

		combined := analysis.CombinedAdProbability(res.AdRisk, res.UndisclosedAdRisk)
		w := Weight(res.TrustScore, combined)

		weightSum += w
		weightedSum += rv.Rating * w
		if rv.Rating >= positiveRating {
			positiveWeight += w
		}
		combinedSum += combined
		trustSum += res.TrustScore

		if rv.External {
			observedExternal++
			s.LatestExternalReviewAt = laterOf(s.LatestExternalReviewAt, rv.CreatedAt)
		} else {
			s.AppReviewCount++
			appSum += rv.Rating
		}
		s.LatestReviewAt = laterOf(s.LatestReviewAt, rv.CreatedAt)
		if rv.Analysis != nil && rv.AnalyzedAt != nil {
			s.LastAnalyzedAt = laterOf(s.LastAnalyzedAt, *rv.AnalyzedAt)
		}
	}

	n := float64(len(reviews))
	weighted := Round(clampRating(weightedSum/weightSum), 2)
	s.WeightedRating = &weighted
	s.AdSuspectRatio = Round(analysis.Clamp01(combinedSum/n), 4)
	s.TrustScore = Round(analysis.Clamp01(trustSum/n), 4)
	s.PositiveRatio = Round(analysis.Clamp01(positiveWeight/weightSum), 4)
	if s.AppReviewCount > 0 {
		avg := Round(appSum/float64(s.AppReviewCount), 2)
		s.AppAverageRating = &avg
	}
	s.ExternalReviewCount = max(observedExternal, store.ExternalReviewCount)
	s.ReviewCount = s.AppReviewCount + s.ExternalReviewCount
	return s
}
