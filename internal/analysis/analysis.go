// internal/analysis/analysis.go
package analysis

import (
	"context"
	"errors"
	"math"
	"strings"
	"unicode/utf8"
)

// ErrNotConfigured is returned by providers that have no credentials. The
// chain treats it like any other failure and moves on.
var ErrNotConfigured = errors.New("analysis provider not configured")

// ErrEmptyResponse is returned when a provider answered without content.
var ErrEmptyResponse = errors.New("analysis provider returned empty response")

// Input is the review text and metadata sent to a provider.
type Input struct {
	Rating        float64
	Content       string
	IsDisclosedAd bool
	External      bool
}

// Result is the fixed analysis schema. All scores are in [0,1].
type Result struct {
	Provider          string   `json:"provider"`
	Model             string   `json:"model"`
	Version           string   `json:"version"`
	AdRisk            float64  `json:"ad_risk"`
	UndisclosedAdRisk float64  `json:"undisclosed_ad_risk"`
	LowQualityRisk    float64  `json:"low_quality_risk"`
	TrustScore        float64  `json:"trust_score"`
	Confidence        float64  `json:"confidence"`
	Signals           []string `json:"signals"`
	Reason            string   `json:"reason"`
}

// Analyzer scores one review.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, in Input) (*Result, error)
}

const maxReasonRunes = 280

// Clamp01 bounds v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CombinedAdProbability is the independent-event union of disclosed and
// undisclosed ad risk: 1 - (1-ad)(1-undisclosed).
func CombinedAdProbability(adRisk, undisclosedAdRisk float64) float64 {
	return 1 - (1-Clamp01(adRisk))*(1-Clamp01(undisclosedAdRisk))
}

func valid(r *Result) bool {
	if r == nil {
		return false
	}
	for _, v := range []float64{r.AdRisk, r.UndisclosedAdRisk, r.LowQualityRisk, r.TrustScore, r.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Normalize clamps scores, zeroes undisclosed risk for external reviews,
// de-duplicates signals and bounds the reason length.
func Normalize(r *Result, in Input) *Result {
	out := *r
	out.AdRisk = Clamp01(r.AdRisk)
	out.UndisclosedAdRisk = Clamp01(r.UndisclosedAdRisk)
	out.LowQualityRisk = Clamp01(r.LowQualityRisk)
	out.TrustScore = Clamp01(r.TrustScore)
	out.Confidence = Clamp01(r.Confidence)
	if in.External {
		out.UndisclosedAdRisk = 0
	}

	seen := make(map[string]bool, len(r.Signals))
	out.Signals = make([]string, 0, len(r.Signals))
	for _, s := range r.Signals {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out.Signals = append(out.Signals, s)
	}

	out.Reason = strings.TrimSpace(r.Reason)
	if utf8.RuneCountInString(out.Reason) > maxReasonRunes {
		out.Reason = string([]rune(out.Reason)[:maxReasonRunes])
	}
	return &out
}
