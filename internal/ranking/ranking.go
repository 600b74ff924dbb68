// internal/ranking/ranking.go
package ranking

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/javajoker/venuetrust/internal/normalize"
)

const (
	CategoryCafe       = "cafe"
	CategoryRestaurant = "restaurant"

	LabelStable                = "stable"
	LabelPossibleOverstatement = "possible overstatement"
	LabelOrdinary              = "ordinary"
	LabelInsufficientSample    = "insufficient sample"

	// PeerRadiusMeters bounds the neighbourhood a venue is ranked in.
	PeerRadiusMeters = 1000.0
	// MinLocalPeers is the local set size (subject included) below which the
	// nearby-search fallback runs.
	MinLocalPeers = 3
)

var (
	ErrNoLocation = errors.New("store has no coordinates")
	ErrNoRating   = errors.New("store has no rating")
)

var (
	cafeKeywords = []string{
		"카페", "커피", "베이커리", "디저트", "브런치", "제과", "티룸",
		"cafe", "café", "coffee", "espresso", "roasters", "bakery", "dessert", "tea house", "patisserie",
	}
	restaurantKeywords = []string{
		"식당", "레스토랑", "국밥", "치킨", "분식", "고기", "냉면", "삼겹살", "횟집", "반점", "갈비", "한식", "주점",
		"restaurant", "kitchen", "bistro", "grill", "dining", "pizza", "sushi", "bbq", "noodle", "steak", "burger",
	}
)

func countHits(name string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(name, w) {
			n++
		}
	}
	return n
}

// InferCategory classifies a venue by name. Ties resolve to restaurant.
func InferCategory(name string) string {
	lower := strings.ToLower(name)
	if countHits(lower, cafeKeywords) > countHits(lower, restaurantKeywords) {
		return CategoryCafe
	}
	return CategoryRestaurant
}

// ReliabilityLabel buckets a rating by how well its sample backs it.
func ReliabilityLabel(rating *float64, n int) string {
	switch {
	case rating == nil || n <= 0:
		return LabelInsufficientSample
	case n >= 300:
		return LabelStable
	case *rating >= 4.9 && n < 40:
		return LabelPossibleOverstatement
	case *rating >= 4.7 && n < 15:
		return LabelPossibleOverstatement
	case n >= 120:
		return LabelStable
	case n < 10:
		return LabelInsufficientSample
	default:
		return LabelOrdinary
	}
}

// Candidate is a venue taking part in a ranking. Venues found only through
// the nearby search have ID 0.
type Candidate struct {
	ID          uint64   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Address     string   `json:"address,omitempty"`
	PlaceID     string   `json:"place_id,omitempty"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Rating      *float64 `json:"rating"`
	ReviewCount int      `json:"review_count"`
	External    bool     `json:"external"`
}

// Result is the subject's position among its peers.
type Result struct {
	SubjectID      uint64      `json:"subject_id"`
	Category       string      `json:"category"`
	Label          string      `json:"label"`
	Rank           int         `json:"rank"`
	Total          int         `json:"total"`
	TopPercent     int         `json:"top_percent"`
	Peers          []Candidate `json:"peers"`
	FallbackUsed   bool        `json:"fallback_used"`
	FallbackPlaces []Candidate `json:"-"`
}

// Eligible reports whether c belongs to the same peer set as the subject.
func Eligible(subject, c Candidate, category, label string) bool {
	if c.Rating == nil {
		return false
	}
	if normalize.DistanceMeters(subject.Latitude, subject.Longitude, c.Latitude, c.Longitude) > PeerRadiusMeters {
		return false
	}
	return InferCategory(c.Name) == category && ReliabilityLabel(c.Rating, c.ReviewCount) == label
}

// Rank orders the subject among eligible candidates. The subject itself is
// always part of the set and wins identity conflicts.
func Rank(subject Candidate, candidates []Candidate) (*Result, error) {
	if subject.Rating == nil {
		return nil, ErrNoRating
	}

	category := InferCategory(subject.Name)
	label := ReliabilityLabel(subject.Rating, subject.ReviewCount)

	seenPlace := map[string]bool{}
	seenKey := map[string]bool{}
	remember := func(c Candidate) {
		if c.PlaceID != "" {
			seenPlace[c.PlaceID] = true
		}
		if key := normalize.IdentityKey(c.Name, c.Address); key != "" {
			seenKey[key] = true
		}
	}

	peers := []Candidate{subject}
	remember(subject)
	for _, c := range candidates {
		if subject.ID != 0 && c.ID == subject.ID {
			continue
		}
		if !Eligible(subject, c, category, label) {
			continue
		}
		if c.PlaceID != "" && seenPlace[c.PlaceID] {
			continue
		}
		if key := normalize.IdentityKey(c.Name, c.Address); key != "" && seenKey[key] {
			continue
		}
		remember(c)
		peers = append(peers, c)
	}

	sort.SliceStable(peers, func(i, j int) bool {
		a, b := peers[i], peers[j]
		if *a.Rating != *b.Rating {
			return *a.Rating > *b.Rating
		}
		if a.ReviewCount != b.ReviewCount {
			return a.ReviewCount > b.ReviewCount
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Name < b.Name
	})

	res := &Result{SubjectID: subject.ID, Category: category, Label: label, Total: len(peers), Peers: peers}
	for i, p := range peers {
		if p.ID == subject.ID && p.Name == subject.Name {
			res.Rank = i + 1
			break
		}
	}
	res.TopPercent = int(math.Round(float64(res.Rank) / float64(res.Total) * 100))
	return res, nil
}
