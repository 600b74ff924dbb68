// internal/services/store_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/venuetrust/internal/models"
	"github.com/javajoker/venuetrust/internal/normalize"
	"github.com/javajoker/venuetrust/internal/places"
	"github.com/javajoker/venuetrust/internal/utils"
)

// DefaultGeoMatchMeters is the proximity under which two same-named venues
// are considered one.
const DefaultGeoMatchMeters = 80.0

// MatchRule names the duplicate check that matched an existing store.
type MatchRule string

const (
	MatchPlaceID      MatchRule = "place_id"
	MatchExact        MatchRule = "exact_name_address"
	MatchIdentityKey  MatchRule = "identity_key"
	MatchGeoProximity MatchRule = "geo_proximity"
)

type StoreService struct {
	db             *gorm.DB
	geoMatchMeters float64
}

type CreateStoreRequest struct {
	Name                string             `json:"name" validate:"required,not_blank,max=200"`
	Address             *string            `json:"address,omitempty" validate:"omitempty,max=500"`
	Latitude            *float64           `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude           *float64           `json:"longitude,omitempty" validate:"omitempty,longitude"`
	PlaceID             *string            `json:"place_id,omitempty" validate:"omitempty,max=128"`
	ExternalRating      *float64           `json:"external_rating,omitempty" validate:"omitempty,min=0,max=5"`
	ExternalReviewCount int                `json:"external_review_count" validate:"min=0"`
	Source              models.StoreSource `json:"source,omitempty" validate:"omitempty,oneof=manual search import"`
}

type CreateStoreResult struct {
	Store     *models.Store `json:"store"`
	Created   bool          `json:"created"`
	MatchedBy MatchRule     `json:"matched_by,omitempty"`
}

func NewStoreService(db *gorm.DB, geoMatchMeters float64) *StoreService {
	if geoMatchMeters <= 0 {
		geoMatchMeters = DefaultGeoMatchMeters
	}
	return &StoreService{db: db, geoMatchMeters: geoMatchMeters}
}

func (s *StoreService) GetStore(ctx context.Context, id uint64) (*models.Store, error) {
	var store models.Store
	if err := s.db.WithContext(ctx).First(&store, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &store, nil
}

func validateCreate(req *CreateStoreRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStore, err)
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude must be set together", ErrInvalidStore)
	}
	return nil
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

// CreateStore adds a venue unless an existing store matches it. Checks run
// in order and the first hit wins: place id, exact name and address,
// normalized identity key, then same compact name within geoMatchMeters.
// A hit is backfilled with any location or external metadata it lacks.
func (s *StoreService) CreateStore(ctx context.Context, req *CreateStoreRequest) (*CreateStoreResult, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Address = trimmed(req.Address)
	req.PlaceID = trimmed(req.PlaceID)

	existing, rule, err := s.findDuplicate(ctx, req)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.backfill(ctx, existing, req); err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"store_id": existing.ID,
			"rule":     rule,
		}).Info("Store creation matched existing store")
		return &CreateStoreResult{Store: existing, Created: false, MatchedBy: rule}, nil
	}

	source := req.Source
	if source == "" {
		source = models.StoreSourceManual
	}
	store := &models.Store{
		Name:                req.Name,
		Address:             req.Address,
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		PlaceID:             req.PlaceID,
		ExternalRating:      req.ExternalRating,
		ExternalReviewCount: req.ExternalReviewCount,
		Source:              source,
	}
	if err := s.db.WithContext(ctx).Create(store).Error; err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	return &CreateStoreResult{Store: store, Created: true}, nil
}

func (s *StoreService) findDuplicate(ctx context.Context, req *CreateStoreRequest) (*models.Store, MatchRule, error) {
	db := s.db.WithContext(ctx)

	first := func(query *gorm.DB) (*models.Store, error) {
		var store models.Store
		err := query.Order("id ASC").First(&store).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("duplicate lookup: %w", err)
		}
		return &store, nil
	}

	if req.PlaceID != nil {
		if store, err := first(db.Where("place_id = ?", *req.PlaceID)); err != nil || store != nil {
			return store, MatchPlaceID, err
		}
	}

	if req.Address != nil {
		if store, err := first(db.Where("name = ? AND address = ?", req.Name, *req.Address)); err != nil || store != nil {
			return store, MatchExact, err
		}
	}

	if key := normalize.IdentityKey(req.Name, addressOf(req.Address)); key != "" {
		if store, err := first(db.Where("identity_key = ?", key)); err != nil || store != nil {
			return store, MatchIdentityKey, err
		}
	}

	if req.Latitude != nil && req.Longitude != nil {
		store, err := s.nearestSameName(ctx, req.Name, *req.Latitude, *req.Longitude)
		if err != nil || store != nil {
			return store, MatchGeoProximity, err
		}
	}

	return nil, "", nil
}

func addressOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *StoreService) nearestSameName(ctx context.Context, name string, lat, lon float64) (*models.Store, error) {
	token := normalize.CompactName(name)
	if token == "" {
		return nil, nil
	}

	var nearby []models.Store
	if err := withinBox(s.db.WithContext(ctx), lat, lon, s.geoMatchMeters).Find(&nearby).Error; err != nil {
		return nil, fmt.Errorf("geo duplicate lookup: %w", err)
	}

	var best *models.Store
	bestDist := math.MaxFloat64
	for i := range nearby {
		c := &nearby[i]
		if normalize.CompactName(c.Name) != token {
			continue
		}
		d := normalize.DistanceMeters(lat, lon, *c.Latitude, *c.Longitude)
		if d <= s.geoMatchMeters && d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, nil
}

// withinBox restricts a stores query to the bounding box of a radius.
func withinBox(db *gorm.DB, lat, lon, radiusMeters float64) *gorm.DB {
	dLat, dLon := normalize.BoundingBox(lat, radiusMeters)
	return db.Model(&models.Store{}).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Where("latitude BETWEEN ? AND ?", lat-dLat, lat+dLat).
		Where("longitude BETWEEN ? AND ?", lon-dLon, lon+dLon)
}

// backfill copies location and external metadata the store lacks.
func (s *StoreService) backfill(ctx context.Context, store *models.Store, req *CreateStoreRequest) error {
	changed := false
	if !store.HasLocation() && req.Latitude != nil && req.Longitude != nil {
		store.Latitude, store.Longitude = req.Latitude, req.Longitude
		changed = true
	}
	if store.PlaceID == nil && req.PlaceID != nil {
		store.PlaceID = req.PlaceID
		changed = true
	}
	if store.ExternalRating == nil && req.ExternalRating != nil {
		store.ExternalRating = req.ExternalRating
		changed = true
	}
	if req.ExternalReviewCount > store.ExternalReviewCount {
		store.ExternalReviewCount = req.ExternalReviewCount
		changed = true
	}
	if !changed {
		return nil
	}
	if err := s.db.WithContext(ctx).Save(store).Error; err != nil {
		return fmt.Errorf("failed to backfill store: %w", err)
	}
	return nil
}

// RefreshExternal updates a store's provider metadata from a resolved place.
// Missing coordinates and place id are filled; rating and review count follow
// the provider. A place carrying a different id than the store's is ignored.
func (s *StoreService) RefreshExternal(ctx context.Context, storeID uint64, place *places.Place) error {
	store, err := s.GetStore(ctx, storeID)
	if err != nil {
		return err
	}
	if store.PlaceID != nil && place.ID != "" && *store.PlaceID != place.ID {
		logrus.WithFields(logrus.Fields{
			"store_id": storeID,
			"place_id": place.ID,
		}).Warn("Resolved place does not match store place id, skipping refresh")
		return nil
	}

	if store.PlaceID == nil && place.ID != "" {
		id := place.ID
		store.PlaceID = &id
	}
	if !store.HasLocation() && place.HasLocation() {
		store.Latitude, store.Longitude = place.Latitude, place.Longitude
	}
	if place.Rating != nil {
		store.ExternalRating = place.Rating
	}
	if place.ReviewCount > store.ExternalReviewCount {
		store.ExternalReviewCount = place.ReviewCount
	}

	if err := s.db.WithContext(ctx).Save(store).Error; err != nil {
		return fmt.Errorf("failed to refresh store metadata: %w", err)
	}
	return nil
}

// ImportPlaces creates stores for places found by a search. Duplicate
// prevention applies to each; failures are logged and skipped.
func (s *StoreService) ImportPlaces(ctx context.Context, found []places.Place) int {
	created := 0
	for _, p := range found {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		req := &CreateStoreRequest{
			Name:                p.Name,
			Latitude:            p.Latitude,
			Longitude:           p.Longitude,
			ExternalRating:      p.Rating,
			ExternalReviewCount: p.ReviewCount,
			Source:              models.StoreSourceSearch,
		}
		if p.Address != "" {
			addr := p.Address
			req.Address = &addr
		}
		if p.ID != "" {
			id := p.ID
			req.PlaceID = &id
		}

		res, err := s.CreateStore(ctx, req)
		if err != nil {
			logrus.WithError(err).WithField("place_id", p.ID).Warn("Failed to import nearby place")
			continue
		}
		if res.Created {
			created++
		}
	}
	return created
}
