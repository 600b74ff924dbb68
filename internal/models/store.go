// internal/models/store.go
package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/javajoker/venuetrust/internal/normalize"
)

type Store struct {
	BaseModel
	Name                string      `json:"name" gorm:"size:200;not null;index"`
	Address             *string     `json:"address" gorm:"size:500"`
	Latitude            *float64    `json:"latitude"`
	Longitude           *float64    `json:"longitude"`
	PlaceID             *string     `json:"place_id" gorm:"size:128;index"`
	ExternalRating      *float64    `json:"external_rating"`
	ExternalReviewCount int         `json:"external_review_count" gorm:"default:0"`
	Source              StoreSource `json:"source" gorm:"type:varchar(20);default:'manual'"`
	IdentityKey         string      `json:"-" gorm:"size:500;index"`
}

// BeforeSave keeps the normalized identity key in step with name and address.
func (s *Store) BeforeSave(tx *gorm.DB) error {
	s.IdentityKey = normalize.IdentityKey(s.Name, s.AddressText())
	return nil
}

// HasLocation reports whether both coordinates are set.
func (s *Store) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// AddressText returns the address or "".
func (s *Store) AddressText() string {
	if s.Address == nil {
		return ""
	}
	return *s.Address
}

// PlaceIDText returns the external place id or "".
func (s *Store) PlaceIDText() string {
	if s.PlaceID == nil {
		return ""
	}
	return *s.PlaceID
}

// StoreSummary is the materialized trust aggregate, one row per store.
type StoreSummary struct {
	StoreID                uint64     `json:"store_id" gorm:"primaryKey;autoIncrement:false"`
	WeightedRating         *float64   `json:"weighted_rating"`
	AppAverageRating       *float64   `json:"app_average_rating"`
	AdSuspectRatio         float64    `json:"ad_suspect_ratio" gorm:"default:0"`
	TrustScore             float64    `json:"trust_score" gorm:"default:0"`
	PositiveRatio          float64    `json:"positive_ratio" gorm:"default:0"`
	ReviewCount            int        `json:"review_count" gorm:"default:0"`
	AppReviewCount         int        `json:"app_review_count" gorm:"default:0"`
	ExternalReviewCount    int        `json:"external_review_count" gorm:"default:0"`
	LastAnalyzedAt         *time.Time `json:"last_analyzed_at"`
	LatestExternalReviewAt *time.Time `json:"latest_external_review_at"`
	LatestReviewAt         *time.Time `json:"latest_review_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func (StoreSummary) TableName() string { return "store_summaries" }

// Favorite associates a user with a store.
type Favorite struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	StoreID   uint64    `json:"store_id" gorm:"not null;index"`
	UserRef   string    `json:"user_ref" gorm:"size:128;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (Favorite) TableName() string { return "store_favorites" }
