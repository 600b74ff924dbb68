package trust

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/venuetrust/internal/analysis"
)

func ptr[T any](v T) *T { return &v }

func TestWeightFloor(t *testing.T) {
	assert.Equal(t, MinWeight, Weight(0, 1))
	assert.Equal(t, MinWeight, Weight(0.2, 0.8))
	assert.InDelta(t, 0.9, Weight(0.9, 0), 1e-12)
}

func TestCombinedAdProbabilityMonotone(t *testing.T) {
	for a := 0.0; a <= 1.0; a += 0.1 {
		for u := 0.0; u <= 0.9; u += 0.1 {
			assert.LessOrEqual(t, analysis.CombinedAdProbability(a, u), analysis.CombinedAdProbability(a, u+0.1)+1e-12)
			assert.LessOrEqual(t, analysis.CombinedAdProbability(u, a), analysis.CombinedAdProbability(u+0.1, a)+1e-12)
		}
	}
}

func TestAggregateTwoReviewExample(t *testing.T) {
	reviews := []ReviewInput{
		{Rating: 5, Analysis: &analysis.Result{TrustScore: 0.9}},
		{Rating: 1, Analysis: &analysis.Result{TrustScore: 0.2, AdRisk: 0.8}},
	}

	s := Aggregate(StoreInput{}, reviews)

	require.NotNil(t, s.WeightedRating)
	assert.Equal(t, 4.6, *s.WeightedRating)
	assert.Equal(t, 0.4, s.AdSuspectRatio)
	assert.Equal(t, 0.55, s.TrustScore)
	assert.Equal(t, 0.9, s.PositiveRatio)
	assert.Equal(t, 2, s.AppReviewCount)
	assert.Equal(t, 2, s.ReviewCount)
	require.NotNil(t, s.AppAverageRating)
	assert.Equal(t, 3.0, *s.AppAverageRating)
}

func TestAggregateWithoutReviews(t *testing.T) {
	s := Aggregate(StoreInput{ExternalRating: ptr(4.37), ExternalReviewCount: 120}, nil)
	require.NotNil(t, s.WeightedRating)
	assert.Equal(t, 4.37, *s.WeightedRating)
	assert.Equal(t, 120, s.ReviewCount)
	assert.Nil(t, s.AppAverageRating)

	empty := Aggregate(StoreInput{}, nil)
	assert.Nil(t, empty.WeightedRating)
	assert.Zero(t, empty.ReviewCount)
}

func TestAggregateCountsAndTimestamps(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	analyzed := t0.Add(2 * time.Hour)
	reviews := []ReviewInput{
		{Rating: 4, External: true, CreatedAt: t0, Content: "Good soup, friendly staff and fair price."},
		{Rating: 3, External: true, CreatedAt: t0.Add(time.Hour), Content: "Average."},
		{Rating: 4.5, CreatedAt: t0.Add(-time.Hour), Analysis: &analysis.Result{TrustScore: 0.8}, AnalyzedAt: &analyzed},
	}

	s := Aggregate(StoreInput{ExternalReviewCount: 50}, reviews)

	assert.Equal(t, 1, s.AppReviewCount)
	assert.Equal(t, 50, s.ExternalReviewCount)
	assert.Equal(t, 51, s.ReviewCount)
	require.NotNil(t, s.LatestExternalReviewAt)
	assert.Equal(t, t0.Add(time.Hour), *s.LatestExternalReviewAt)
	require.NotNil(t, s.LastAnalyzedAt)
	assert.Equal(t, analyzed, *s.LastAnalyzedAt)

	fewer := Aggregate(StoreInput{ExternalReviewCount: 1}, reviews)
	assert.Equal(t, 2, fewer.ExternalReviewCount)
}

func TestAggregateBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		var reviews []ReviewInput
		for j := 0; j < 1+rng.Intn(8); j++ {
			reviews = append(reviews, ReviewInput{
				Rating:   0.5 + float64(rng.Intn(10))*0.5,
				External: rng.Intn(2) == 0,
				Analysis: &analysis.Result{
					AdRisk:            rng.Float64()*1.4 - 0.2,
					UndisclosedAdRisk: rng.Float64(),
					TrustScore:        rng.Float64()*1.4 - 0.2,
				},
			})
		}
		s := Aggregate(StoreInput{}, reviews)
		require.NotNil(t, s.WeightedRating)
		assert.GreaterOrEqual(t, *s.WeightedRating, 1.0)
		assert.LessOrEqual(t, *s.WeightedRating, 5.0)
		for _, v := range []float64{s.AdSuspectRatio, s.TrustScore, s.PositiveRatio} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestScoreRatingThinHighRating(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rt := ScoreRating(ptr(4.95), 15, nil, now)

	assert.Less(t, rt.Stability, 15.0)
	assert.Equal(t, 4.0, rt.Freshness)
	assert.Contains(t, []string{LabelSuspect, LabelUnreliable}, rt.Label)
}

func TestScoreRatingLargeFreshSample(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rt := ScoreRating(ptr(4.4), 500, ptr(now.Add(-12*time.Hour)), now)

	assert.Equal(t, 50.0, rt.SampleSize)
	assert.Equal(t, 25.0, rt.Stability)
	assert.Equal(t, 25.0, rt.Freshness)
	assert.Equal(t, 100, rt.Total)
	assert.Equal(t, LabelCertain, rt.Label)
}

func TestFreshnessSteps(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cases := map[float64]float64{0.5: 25, 2: 22, 5: 19, 10: 14, 20: 9, 45: 4}
	for days, want := range cases {
		last := now.Add(-time.Duration(days * 24 * float64(time.Hour)))
		assert.Equal(t, want, freshnessScore(&last, now), "days=%v", days)
	}
}

func TestScoreStorePrefersExternalRating(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s := Summary{WeightedRating: ptr(3.1), ReviewCount: 80, LatestReviewAt: ptr(now.Add(-48 * time.Hour))}

	rt := ScoreStore(ptr(4.1), s, now)
	require.NotNil(t, rt.Rating)
	assert.Equal(t, 4.1, *rt.Rating)
	assert.Equal(t, 22.0, rt.Freshness)

	rt = ScoreStore(nil, s, now)
	assert.Equal(t, 3.1, *rt.Rating)
}
