// internal/places/places.go
package places

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/venuetrust/internal/normalize"
)

// CategoryFoodAndDrink is the strict-search filter covering restaurants and cafes.
const CategoryFoodAndDrink = "food"

// MaxLatestReviews caps LatestReviews requests.
const MaxLatestReviews = 5

// Place is a venue as reported by the place-search provider.
type Place struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Category    string   `json:"category,omitempty"`
	Rating      *float64 `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Photos      []string `json:"photos,omitempty"`
}

// HasLocation reports whether both coordinates are present.
func (p Place) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Review is an externally sourced review.
type Review struct {
	Key         string    `json:"key"`
	Author      string    `json:"author"`
	Rating      float64   `json:"rating"`
	Text        string    `json:"text"`
	PublishedAt time.Time `json:"published_at"`
}

// NearbyQuery describes a radius search around a point.
type NearbyQuery struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	Category     string
}

// Provider is the place-search collaborator.
type Provider interface {
	TextSearch(ctx context.Context, query, category string) ([]Place, error)
	LatestReviews(ctx context.Context, placeID string, limit int) ([]Review, error)
	Nearby(ctx context.Context, q NearbyQuery) ([]Place, error)
}

// Finder resolves a venue to a provider place.
type Finder struct {
	provider Provider
}

func NewFinder(provider Provider) *Finder {
	return &Finder{provider: provider}
}

// FindPlace runs a strict category-filtered text search and, when that
// yields nothing, a loose unfiltered one. Loose results are accepted only on
// a name match. It returns nil when neither finds a candidate.
func (f *Finder) FindPlace(ctx context.Context, name, address string) (*Place, error) {
	query := strings.TrimSpace(strings.TrimSpace(name) + " " + strings.TrimSpace(address))
	if query == "" {
		return nil, nil
	}

	strict, err := f.provider.TextSearch(ctx, query, CategoryFoodAndDrink)
	if err != nil {
		logrus.WithError(err).WithField("query", query).Warn("Strict place search failed, trying loose search")
	}
	if best := pickBest(strict, name); best != nil {
		return best, nil
	}

	loose, err := f.provider.TextSearch(ctx, query, "")
	if err != nil {
		return nil, err
	}
	return matchName(loose, name), nil
}

// pickBest prefers a candidate whose normalized name matches, else the first.
func pickBest(candidates []Place, name string) *Place {
	if len(candidates) == 0 {
		return nil
	}
	if best := matchName(candidates, name); best != nil {
		return best
	}
	return &candidates[0]
}

// matchName returns the first candidate whose name key or compact name
// equals the wanted name's.
func matchName(candidates []Place, name string) *Place {
	key, compact := normalize.NameKey(name), normalize.CompactName(name)
	if key == "" {
		return nil
	}
	for i := range candidates {
		if normalize.NameKey(candidates[i].Name) == key || normalize.CompactName(candidates[i].Name) == compact {
			return &candidates[i]
		}
	}
	return nil
}

// LatestReviews returns at most MaxLatestReviews recent reviews for a place.
func (f *Finder) LatestReviews(ctx context.Context, placeID string, limit int) ([]Review, error) {
	if placeID == "" {
		return nil, nil
	}
	if limit <= 0 || limit > MaxLatestReviews {
		limit = MaxLatestReviews
	}
	reviews, err := f.provider.LatestReviews(ctx, placeID, limit)
	if err != nil {
		return nil, err
	}
	if len(reviews) > limit {
		reviews = reviews[:limit]
	}
	return reviews, nil
}

// Nearby forwards a radius search to the provider.
func (f *Finder) Nearby(ctx context.Context, q NearbyQuery) ([]Place, error) {
	return f.provider.Nearby(ctx, q)
}
