// internal/analysis/heuristic.go
package analysis

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	HeuristicProvider = "heuristic"
	HeuristicModel    = "rules"
	HeuristicVersion  = "heuristic-v1"
)

var (
	adKeywords = []string{
		"협찬", "광고", "체험단", "원고료", "소정의", "제공받", "지원받",
		"sponsored", "#ad", "advertisement", "paid partnership", "gifted", "promotion",
	}
	ctaKeywords = []string{
		"링크", "클릭", "문의", "예약하세요", "방문해보세요", "방문해 보세요", "할인코드", "쿠폰",
		"dm 주세요", "dm으로", "dm me", "check out", "click", "use code", "book now", "follow us", "visit us",
	}
	negativeWords = []string{
		"별로", "최악", "실망", "불친절", "맛없", "비추", "다신", "더러", "느려",
		"bad", "terrible", "worst", "disappointed", "rude", "awful", "dirty", "never again", "overpriced",
	}
	positiveWords = []string{
		"맛있", "최고", "친절", "추천", "만족", "훌륭", "좋았",
		"great", "excellent", "amazing", "delicious", "love", "best", "friendly", "recommend",
	}
	detailWords = []string{
		"메뉴", "가격", "직원", "웨이팅", "주차", "분위기", "인테리어", "국물", "식감",
		"menu", "price", "staff", "portion", "waited", "parking", "texture", "atmosphere", "ordered",
	}

	linkRe    = regexp.MustCompile(`(?i)https?://|www\.|bit\.ly/|\.com/|\.kr/`)
	hashtagRe = regexp.MustCompile(`#[^\s#]+`)
)

// Heuristic is the deterministic, offline evaluator. It never fails and is
// the last entry of every chain.
type Heuristic struct{}

func (Heuristic) Name() string { return HeuristicProvider }

func (h Heuristic) Analyze(_ context.Context, in Input) (*Result, error) {
	return h.Evaluate(in), nil
}

func containsAny(text string, words []string) bool {
	return countHits(text, words) > 0
}

func countHits(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

// longestRun returns the longest run of identical non-space runes.
func longestRun(text string) int {
	best, cur := 0, 0
	var prev rune = -1
	for _, r := range text {
		if unicode.IsSpace(r) {
			prev, cur = -1, 0
			continue
		}
		if r == prev {
			cur++
		} else {
			prev, cur = r, 1
		}
		if cur > best {
			best = cur
		}
	}
	return best
}

// Evaluate applies the rule set to one review.
func (Heuristic) Evaluate(in Input) *Result {
	text := strings.ToLower(strings.TrimSpace(in.Content))
	var signals []string
	var reasons []string

	adRisk := 0.06
	if in.IsDisclosedAd {
		adRisk += 0.45
		signals = append(signals, "disclosed_ad")
		reasons = append(reasons, "self-disclosed advertisement")
	}
	if containsAny(text, adKeywords) {
		adRisk += 0.22
		signals = append(signals, "ad_keyword")
		reasons = append(reasons, "advertising keywords")
	}
	if containsAny(text, ctaKeywords) {
		adRisk += 0.18
		signals = append(signals, "call_to_action")
		reasons = append(reasons, "call-to-action phrasing")
	}
	if linkRe.MatchString(text) {
		adRisk += 0.16
		signals = append(signals, "external_link")
		reasons = append(reasons, "embedded link")
	}
	if len(hashtagRe.FindAllString(text, -1)) >= 5 {
		adRisk += 0.10
		signals = append(signals, "hashtag_spam")
		reasons = append(reasons, "hashtag stuffing")
	}
	adRisk = Clamp01(adRisk)

	undisclosed := 0.0
	if !in.External && !in.IsDisclosedAd {
		undisclosed = Clamp01((adRisk - 0.06) * 0.6)
	}

	lowQuality := 0.10
	if utf8.RuneCountInString(text) < 20 {
		lowQuality += 0.35
		signals = append(signals, "too_short")
		reasons = append(reasons, "very short text")
	}
	if longestRun(text) >= 5 {
		lowQuality += 0.25
		signals = append(signals, "repeated_chars")
		reasons = append(reasons, "repeated characters")
	}
	if (in.Rating >= 4 && containsAny(text, negativeWords)) || (in.Rating > 0 && in.Rating <= 2 && containsAny(text, positiveWords)) {
		lowQuality += 0.20
		signals = append(signals, "rating_sentiment_mismatch")
		reasons = append(reasons, "rating contradicts text")
	}
	if hits := countHits(text, detailWords); hits > 0 {
		relief := 0.06 * float64(hits)
		if relief > 0.18 {
			relief = 0.18
		}
		lowQuality -= relief
		signals = append(signals, "concrete_detail")
	}
	lowQuality = Clamp01(lowQuality)

	combined := CombinedAdProbability(adRisk, undisclosed)
	trust := Clamp01(0.75 - combined*0.35 - lowQuality*0.45)

	reason := "no notable risk signals"
	if len(reasons) > 0 {
		reason = "heuristic: " + strings.Join(reasons, ", ")
	}

	return &Result{
		Provider:          HeuristicProvider,
		Model:             HeuristicModel,
		Version:           HeuristicVersion,
		AdRisk:            adRisk,
		UndisclosedAdRisk: undisclosed,
		LowQualityRisk:    lowQuality,
		TrustScore:        trust,
		Confidence:        Clamp01(min(0.45+0.05*float64(len(signals)), 0.8)),
		Signals:           signals,
		Reason:            reason,
	}
}
