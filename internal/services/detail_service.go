// internal/services/detail_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/venuetrust/internal/cache"
	"github.com/javajoker/venuetrust/internal/models"
	"github.com/javajoker/venuetrust/internal/places"
	"github.com/javajoker/venuetrust/internal/ranking"
	"github.com/javajoker/venuetrust/internal/trust"
)

// DetailReviewLimit is the number of in-app reviews shown on a detail read.
const DetailReviewLimit = 20

// PlaceFinder resolves a store against the place-search provider.
type PlaceFinder interface {
	FindPlace(ctx context.Context, name, address string) (*places.Place, error)
	LatestReviews(ctx context.Context, placeID string, limit int) ([]places.Review, error)
}

type DetailService struct {
	db        *gorm.DB
	stores    *StoreService
	reviews   *ReviewService
	summaries *SummaryService
	peers     *PeerService
	finder    PlaceFinder
	snapshots *cache.Snapshots
	spawn     func(func())
	now       func() time.Time
}

type DetailOption func(*DetailService)

// WithDetailSpawn replaces the goroutine launcher of background work.
func WithDetailSpawn(spawn func(func())) DetailOption {
	return func(s *DetailService) { s.spawn = spawn }
}

// NewDetailService wires the detail composition. finder may be nil when no
// place provider is configured.
func NewDetailService(db *gorm.DB, stores *StoreService, reviews *ReviewService, summaries *SummaryService,
	peers *PeerService, finder PlaceFinder, snapshots *cache.Snapshots, opts ...DetailOption) *DetailService {
	s := &DetailService{
		db:        db,
		stores:    stores,
		reviews:   reviews,
		summaries: summaries,
		peers:     peers,
		finder:    finder,
		snapshots: snapshots,
		spawn:     func(f func()) { go f() },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreDetail is the composed detail view. Everything but the in-app
// overlay is served from the snapshot.
type StoreDetail struct {
	Store            *models.Store      `json:"store"`
	Place            *places.Place      `json:"place,omitempty"`
	Photos           []string           `json:"photos"`
	ExternalReviews  []places.Review    `json:"external_reviews"`
	Summary          *trust.Summary     `json:"summary"`
	RatingTrust      *trust.RatingTrust `json:"rating_trust"`
	Peers            *ranking.Result    `json:"peers,omitempty"`
	PeersUnavailable string             `json:"peers_unavailable,omitempty"`
	GeneratedAt      time.Time          `json:"generated_at"`
	AppReviews       []models.Review    `json:"app_reviews"`
	AppAverageRating *float64           `json:"app_average_rating"`
	AppReviewCount   int                `json:"app_review_count"`
}

type DetailResult struct {
	Detail  *StoreDetail
	Outcome cache.Outcome
	ETag    string
}

// pending is the work a fresh composition leaves for the background.
type pending struct {
	place          *places.Place
	reviews        []places.Review
	fallbackPlaces []ranking.Candidate
}

func (s *DetailService) compose(ctx context.Context, store *models.Store, work *pending) ([]byte, error) {
	log := logrus.WithField("store_id", store.ID)
	detail := &StoreDetail{Store: store, Photos: []string{}, ExternalReviews: []places.Review{}, GeneratedAt: s.now()}

	if s.finder != nil {
		place, err := s.finder.FindPlace(ctx, store.Name, store.AddressText())
		if err != nil {
			log.WithError(err).Warn("Place lookup failed")
		}
		if place != nil {
			detail.Place = place
			work.place = place
			if len(place.Photos) > 0 {
				detail.Photos = place.Photos
			}
		}

		placeID := store.PlaceIDText()
		if placeID == "" && place != nil {
			placeID = place.ID
		}
		if placeID != "" {
			latest, err := s.finder.LatestReviews(ctx, placeID, places.MaxLatestReviews)
			if err != nil {
				log.WithError(err).Warn("Latest external reviews unavailable")
			} else if len(latest) > 0 {
				detail.ExternalReviews = latest
				work.reviews = latest
			}
		}
	}

	summary, err := s.summaries.Recompute(ctx, store.ID)
	if err != nil {
		return nil, err
	}
	detail.Summary = summary

	externalRating := store.ExternalRating
	if externalRating == nil && detail.Place != nil {
		externalRating = detail.Place.Rating
	}
	rt := trust.ScoreStore(externalRating, *summary, s.now())
	detail.RatingTrust = &rt

	peers, err := s.peers.Peers(ctx, store.ID)
	switch {
	case err == nil:
		detail.Peers = peers
		work.fallbackPlaces = peers.FallbackPlaces
	case errors.Is(err, ranking.ErrNoLocation), errors.Is(err, ranking.ErrNoRating):
		detail.PeersUnavailable = err.Error()
	default:
		log.WithError(err).Warn("Peer ranking failed")
		detail.PeersUnavailable = "peer ranking unavailable"
	}

	return json.Marshal(detail)
}

// GetDetail serves the store detail through the snapshot cache and overlays
// the live in-app reviews and average.
func (s *DetailService) GetDetail(ctx context.Context, storeID uint64, refresh bool) (*DetailResult, error) {
	store, err := s.stores.GetStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	work := &pending{}
	entry, outcome, err := s.snapshots.Get(ctx, storeID, refresh, func(ctx context.Context) ([]byte, error) {
		return s.compose(ctx, store, work)
	})
	if err != nil {
		return nil, err
	}

	var detail StoreDetail
	if err := json.Unmarshal(entry.Payload, &detail); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.overlay(ctx, storeID, &detail); err != nil {
		return nil, err
	}

	if outcome != cache.OutcomeHit {
		s.background(ctx, storeID, work)
	}

	return &DetailResult{Detail: &detail, Outcome: outcome, ETag: entry.Digest}, nil
}

func (s *DetailService) overlay(ctx context.Context, storeID uint64, detail *StoreDetail) error {
	latest, err := s.reviews.LatestInApp(ctx, storeID, DetailReviewLimit)
	if err != nil {
		return err
	}
	if latest == nil {
		latest = []models.Review{}
	}
	detail.AppReviews = latest

	_, summary, err := s.summaries.Compute(ctx, storeID)
	if err != nil {
		return err
	}
	detail.AppAverageRating = summary.AppAverageRating
	detail.AppReviewCount = summary.AppReviewCount
	return nil
}

// background imports what the composition fetched. Failures are logged only.
func (s *DetailService) background(ctx context.Context, storeID uint64, work *pending) {
	if work.place == nil && len(work.reviews) == 0 && len(work.fallbackPlaces) == 0 {
		return
	}
	bg := context.WithoutCancel(ctx)
	s.spawn(func() {
		log := logrus.WithField("store_id", storeID)

		if work.place != nil {
			if err := s.stores.RefreshExternal(bg, storeID, work.place); err != nil {
				log.WithError(err).Warn("Failed to refresh external metadata")
			}
		}

		if len(work.reviews) > 0 {
			if err := s.cacheExternalReviews(bg, storeID, work.reviews); err != nil {
				log.WithError(err).Warn("Failed to cache external reviews")
			}
			n, err := s.reviews.ImportExternal(bg, storeID, work.reviews)
			if err != nil {
				log.WithError(err).Warn("Failed to import external reviews")
			} else if n > 0 {
				log.WithField("imported", n).Info("External reviews imported")
			}
		}

		if len(work.fallbackPlaces) > 0 {
			found := make([]places.Place, 0, len(work.fallbackPlaces))
			for _, c := range work.fallbackPlaces {
				found = append(found, CandidatePlace(c))
			}
			if n := s.stores.ImportPlaces(bg, found); n > 0 {
				log.WithField("created", n).Info("Nearby places imported")
			}
		}
	})
}

func (s *DetailService) cacheExternalReviews(ctx context.Context, storeID uint64, reviews []places.Review) error {
	payload, err := json.Marshal(reviews)
	if err != nil {
		return err
	}
	row := &models.ExternalReviewCache{StoreID: storeID, Payload: datatypes.JSON(payload), FetchedAt: s.now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_id"}},
		UpdateAll: true,
	}).Create(row).Error
}
