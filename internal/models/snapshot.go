// internal/models/snapshot.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// StoreSnapshot is the cached detail composite of one store.
type StoreSnapshot struct {
	StoreID   uint64         `json:"store_id" gorm:"primaryKey;autoIncrement:false"`
	Payload   datatypes.JSON `json:"payload"`
	Digest    string         `json:"digest" gorm:"size:64"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at" gorm:"index"`
}

// ExternalReviewCache holds the last fetched external reviews of a store.
type ExternalReviewCache struct {
	StoreID   uint64         `json:"store_id" gorm:"primaryKey;autoIncrement:false"`
	Payload   datatypes.JSON `json:"payload"`
	FetchedAt time.Time      `json:"fetched_at"`
}
