// internal/trust/rating.go
package trust

import (
	"math"
	"time"
)

const (
	LabelCertain       = "certain"
	LabelTrustworthy   = "trustworthy"
	LabelReferenceOnly = "reference-only"
	LabelSuspect       = "suspect"
	LabelUnreliable    = "unreliable"
)

// RatingTrust is the meta-confidence in a venue's aggregate rating. It is
// derived on every read and never persisted.
type RatingTrust struct {
	Rating      *float64 `json:"rating"`
	ReviewCount int      `json:"review_count"`
	SampleSize  float64  `json:"sample_size"`
	Stability   float64  `json:"stability"`
	Freshness   float64  `json:"freshness"`
	Total       int      `json:"total"`
	Label       string   `json:"label"`
}

var freshnessSteps = []struct {
	days  float64
	score float64
}{
	{1, 25}, {3, 22}, {7, 19}, {14, 14}, {30, 9},
}

const staleFreshness = 4

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func sampleSizeScore(n int) float64 {
	if n < 0 {
		n = 0
	}
	return clamp(math.Log10(float64(n)+1)/math.Log10(501)*50, 0, 50)
}

func stabilityScore(rating *float64, n int) float64 {
	if rating == nil {
		return 25
	}
	highRating := clamp((*rating-4.2)/0.8, 0, 1)
	lowSample := clamp((40-float64(n))/40, 0, 1)
	return clamp(25-highRating*lowSample*19, 4, 25)
}

func freshnessScore(lastSignal *time.Time, now time.Time) float64 {
	if lastSignal == nil {
		return staleFreshness
	}
	days := now.Sub(*lastSignal).Hours() / 24
	for _, step := range freshnessSteps {
		if days <= step.days {
			return step.score
		}
	}
	return staleFreshness
}

func labelFor(total int) string {
	switch {
	case total >= 85:
		return LabelCertain
	case total >= 70:
		return LabelTrustworthy
	case total >= 55:
		return LabelReferenceOnly
	case total >= 40:
		return LabelSuspect
	default:
		return LabelUnreliable
	}
}

// ScoreRating computes the rating trust score for a rating backed by n
// reviews whose most recent signal was at lastSignal.
func ScoreRating(rating *float64, n int, lastSignal *time.Time, now time.Time) RatingTrust {
	rt := RatingTrust{
		Rating:      rating,
		ReviewCount: n,
		SampleSize:  Round(sampleSizeScore(n), 2),
		Stability:   Round(stabilityScore(rating, n), 2),
		Freshness:   freshnessScore(lastSignal, now),
	}
	rt.Total = int(math.Round(sampleSizeScore(n) + stabilityScore(rating, n) + rt.Freshness))
	rt.Label = labelFor(rt.Total)
	return rt
}

// ScoreStore derives the rating trust inputs from a store's external rating
// and its summary: the external rating wins over the weighted rating, and
// the last signal is the newest of external review, any review and analysis.
func ScoreStore(externalRating *float64, s Summary, now time.Time) RatingTrust {
	rating := externalRating
	if rating == nil {
		rating = s.WeightedRating
	}

	var last *time.Time
	for _, t := range []*time.Time{s.LatestExternalReviewAt, s.LatestReviewAt, s.LastAnalyzedAt} {
		if t != nil {
			last = laterOf(last, *t)
		}
	}
	return ScoreRating(rating, s.ReviewCount, last, now)
}
