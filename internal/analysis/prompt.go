// internal/analysis/prompt.go
package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You audit restaurant and cafe reviews for advertising and low quality.
Score the review and answer with ONLY a JSON object:
{"ad_risk":0-1,"undisclosed_ad_risk":0-1,"low_quality_risk":0-1,"trust_score":0-1,"confidence":0-1,
 "signals":["short_snake_case_tags"],"reason":"one short sentence"}
ad_risk: the review reads like an advertisement. undisclosed_ad_risk: it is an ad that does not say so.
low_quality_risk: spam, too short, or rating contradicts the text. trust_score: how much the review
should count toward the venue rating.`

func buildPrompt(in Input) string {
	source := "in-app"
	if in.External {
		source = "external"
	}
	return fmt.Sprintf("Source: %s\nRating: %.1f\nSelf-disclosed ad: %t\nReview:\n%s",
		source, in.Rating, in.IsDisclosedAd, strings.TrimSpace(in.Content))
}

type providerResponse struct {
	AdRisk            *float64 `json:"ad_risk"`
	UndisclosedAdRisk *float64 `json:"undisclosed_ad_risk"`
	LowQualityRisk    *float64 `json:"low_quality_risk"`
	TrustScore        *float64 `json:"trust_score"`
	Confidence        *float64 `json:"confidence"`
	Signals           []string `json:"signals"`
	Reason            string   `json:"reason"`
}

// parseResponse extracts the first JSON object from a model answer. Missing
// score fields make the response unusable.
func parseResponse(content string) (*Result, error) {
	raw, ok := extractJSONObject(content)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response: %w", ErrEmptyResponse)
	}

	var pr providerResponse
	if err := json.Unmarshal([]byte(raw), &pr); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if pr.AdRisk == nil || pr.LowQualityRisk == nil || pr.TrustScore == nil {
		return nil, fmt.Errorf("response missing required scores: %w", ErrEmptyResponse)
	}

	r := &Result{
		AdRisk:         *pr.AdRisk,
		LowQualityRisk: *pr.LowQualityRisk,
		TrustScore:     *pr.TrustScore,
		Confidence:     0.5,
		Signals:        pr.Signals,
		Reason:         pr.Reason,
	}
	if pr.UndisclosedAdRisk != nil {
		r.UndisclosedAdRisk = *pr.UndisclosedAdRisk
	}
	if pr.Confidence != nil {
		r.Confidence = *pr.Confidence
	}
	return r, nil
}

// extractJSONObject returns the first balanced {...} block, honoring strings.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case c == '{' && !inString:
			depth++
		case c == '}' && !inString:
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				return candidate, json.Valid([]byte(candidate))
			}
		}
	}
	return "", false
}
