// internal/services/peer_service.go
package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/venuetrust/internal/database"
	"github.com/javajoker/venuetrust/internal/places"
	"github.com/javajoker/venuetrust/internal/ranking"
)

// NearbySearcher finds places around a point.
type NearbySearcher interface {
	Nearby(ctx context.Context, q places.NearbyQuery) ([]places.Place, error)
}

type PeerService struct {
	db        *gorm.DB
	stores    *StoreService
	summaries *SummaryService
	nearby    NearbySearcher
}

// NewPeerService builds the peer ranking service. nearby may be nil, in
// which case rankings use stored venues only.
func NewPeerService(db *gorm.DB, stores *StoreService, summaries *SummaryService, nearby NearbySearcher) *PeerService {
	return &PeerService{db: db, stores: stores, summaries: summaries, nearby: nearby}
}

type peerRow struct {
	ID                  uint64
	Name                string
	Address             *string
	PlaceID             *string
	Latitude            float64
	Longitude           float64
	ExternalRating      *float64
	ExternalReviewCount int
	WeightedRating      *float64
	SummaryReviewCount  *int
}

func (r peerRow) candidate() ranking.Candidate {
	c := ranking.Candidate{
		ID:          r.ID,
		Name:        r.Name,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Rating:      r.ExternalRating,
		ReviewCount: r.ExternalReviewCount,
	}
	if r.Address != nil {
		c.Address = *r.Address
	}
	if r.PlaceID != nil {
		c.PlaceID = *r.PlaceID
	}
	if c.Rating == nil {
		c.Rating = r.WeightedRating
	}
	if r.SummaryReviewCount != nil {
		c.ReviewCount = max(c.ReviewCount, *r.SummaryReviewCount)
	}
	return c
}

// localCandidates loads stored venues around the subject with their summary
// ratings. Without a summaries table only external ratings are used.
func (s *PeerService) localCandidates(ctx context.Context, lat, lon float64) ([]ranking.Candidate, error) {
	var rows []peerRow
	err := withinBox(s.db.WithContext(ctx), lat, lon, ranking.PeerRadiusMeters).
		Select("stores.id, stores.name, stores.address, stores.place_id, stores.latitude, stores.longitude, " +
			"stores.external_rating, stores.external_review_count, " +
			"store_summaries.weighted_rating, store_summaries.review_count AS summary_review_count").
		Joins("LEFT JOIN store_summaries ON store_summaries.store_id = stores.id").
		Scan(&rows).Error
	if err != nil && database.IsSchemaMissing(err) {
		logrus.WithError(err).Warn("Summaries unavailable for peer ranking")
		rows = nil
		err = withinBox(s.db.WithContext(ctx), lat, lon, ranking.PeerRadiusMeters).
			Select("id, name, address, place_id, latitude, longitude, external_rating, external_review_count").
			Scan(&rows).Error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load peers: %w", err)
	}

	candidates := make([]ranking.Candidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, r.candidate())
	}
	return candidates, nil
}

func placeCandidate(p places.Place) (ranking.Candidate, bool) {
	if !p.HasLocation() || p.Name == "" {
		return ranking.Candidate{}, false
	}
	return ranking.Candidate{
		Name:        p.Name,
		Address:     p.Address,
		PlaceID:     p.ID,
		Latitude:    *p.Latitude,
		Longitude:   *p.Longitude,
		Rating:      p.Rating,
		ReviewCount: p.ReviewCount,
		External:    true,
	}, true
}

// CandidatePlace converts a search-only candidate back into a place.
func CandidatePlace(c ranking.Candidate) places.Place {
	lat, lon := c.Latitude, c.Longitude
	return places.Place{
		ID:          c.PlaceID,
		Name:        c.Name,
		Address:     c.Address,
		Rating:      c.Rating,
		ReviewCount: c.ReviewCount,
		Latitude:    &lat,
		Longitude:   &lon,
	}
}

// Peers ranks a store among nearby venues of the same category and
// reliability label. Small local peer sets are topped up with one nearby
// search.
func (s *PeerService) Peers(ctx context.Context, storeID uint64) (*ranking.Result, error) {
	store, err := s.stores.GetStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if !store.HasLocation() {
		return nil, ranking.ErrNoLocation
	}

	subject := ranking.Candidate{
		ID:          store.ID,
		Name:        store.Name,
		Address:     store.AddressText(),
		PlaceID:     store.PlaceIDText(),
		Latitude:    *store.Latitude,
		Longitude:   *store.Longitude,
		Rating:      store.ExternalRating,
		ReviewCount: store.ExternalReviewCount,
	}
	summary, err := s.summaries.GetSummary(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if subject.Rating == nil {
		subject.Rating = summary.WeightedRating
	}
	subject.ReviewCount = max(subject.ReviewCount, summary.ReviewCount)

	local, err := s.localCandidates(ctx, subject.Latitude, subject.Longitude)
	if err != nil {
		return nil, err
	}

	result, err := ranking.Rank(subject, local)
	if err != nil {
		return nil, err
	}
	if result.Total >= ranking.MinLocalPeers || s.nearby == nil {
		return result, nil
	}

	log := logrus.WithField("store_id", storeID)
	found, err := s.nearby.Nearby(ctx, places.NearbyQuery{
		Latitude:     subject.Latitude,
		Longitude:    subject.Longitude,
		RadiusMeters: ranking.PeerRadiusMeters,
		Category:     result.Category,
	})
	if err != nil {
		log.WithError(err).Warn("Nearby search failed, using stored peers only")
		return result, nil
	}

	combined := local
	for _, p := range found {
		if c, ok := placeCandidate(p); ok {
			combined = append(combined, c)
		}
	}
	merged, err := ranking.Rank(subject, combined)
	if err != nil {
		return result, nil
	}
	merged.FallbackUsed = true
	for _, p := range merged.Peers {
		if p.External {
			merged.FallbackPlaces = append(merged.FallbackPlaces, p)
		}
	}
	log.WithFields(logrus.Fields{
		"local_total":  result.Total,
		"merged_total": merged.Total,
	}).Debug("Peer ranking used nearby search")
	return merged, nil
}
