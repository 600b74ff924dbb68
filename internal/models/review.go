// internal/models/review.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Review struct {
	ID            uint64       `json:"id" gorm:"primaryKey;autoIncrement"`
	StoreID       uint64       `json:"store_id" gorm:"not null;index"`
	Source        ReviewSource `json:"source" gorm:"type:varchar(20);not null;index"`
	Rating        float64      `json:"rating" gorm:"not null"`
	Content       string       `json:"content" gorm:"type:text"`
	AuthorName    *string      `json:"author_name" gorm:"size:100"`
	IsDisclosedAd bool         `json:"is_disclosed_ad" gorm:"default:false"`
	ExternalKey   *string      `json:"external_key,omitempty" gorm:"size:255;uniqueIndex"`
	CreatedAt     time.Time    `json:"created_at" gorm:"index"`
}

func (r *Review) IsExternal() bool {
	return r.Source == ReviewSourceExternal
}

// ReviewAnalysis is one provider verdict. History is kept; the newest row
// per review is authoritative.
type ReviewAnalysis struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ReviewID          uint64     `json:"review_id" gorm:"not null;index"`
	StoreID           uint64     `json:"store_id" gorm:"not null;index"`
	Provider          string     `json:"provider" gorm:"size:50;not null"`
	Model             string     `json:"model" gorm:"size:100"`
	Version           string     `json:"version" gorm:"size:50"`
	AdRisk            float64    `json:"ad_risk"`
	UndisclosedAdRisk float64    `json:"undisclosed_ad_risk"`
	LowQualityRisk    float64    `json:"low_quality_risk"`
	TrustScore        float64    `json:"trust_score"`
	Confidence        float64    `json:"confidence"`
	Signals           StringList `json:"signals"`
	Reason            string     `json:"reason" gorm:"size:300"`
	CreatedAt         time.Time  `json:"created_at" gorm:"index"`
}

func (ReviewAnalysis) TableName() string { return "review_analyses" }

func (a *ReviewAnalysis) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
