// internal/cache/gorm_store.go
package cache

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/venuetrust/internal/models"
)

// GormStore keeps snapshots in the store_snapshots table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, storeID uint64) (*Entry, error) {
	var row models.StoreSnapshot
	err := s.db.WithContext(ctx).Where("store_id = ?", storeID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	return &Entry{
		StoreID:   row.StoreID,
		Payload:   []byte(row.Payload),
		Digest:    row.Digest,
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func (s *GormStore) Put(ctx context.Context, e *Entry) error {
	row := models.StoreSnapshot{
		StoreID:   e.StoreID,
		Payload:   datatypes.JSON(e.Payload),
		Digest:    e.Digest,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "digest", "created_at", "expires_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, storeID uint64) error {
	if err := s.db.WithContext(ctx).Where("store_id = ?", storeID).Delete(&models.StoreSnapshot{}).Error; err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
