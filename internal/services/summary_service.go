// internal/services/summary_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/venuetrust/internal/analysis"
	"github.com/javajoker/venuetrust/internal/database"
	"github.com/javajoker/venuetrust/internal/models"
	"github.com/javajoker/venuetrust/internal/trust"
)

const summaryTable = "store_summaries"

type SummaryService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSummaryService(db *gorm.DB) *SummaryService {
	return &SummaryService{db: db, now: time.Now}
}

// Compute folds the store's reviews and their latest analyses into a summary
// without persisting it.
func (s *SummaryService) Compute(ctx context.Context, storeID uint64) (*models.Store, *trust.Summary, error) {
	db := s.db.WithContext(ctx)

	var store models.Store
	if err := db.First(&store, storeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrStoreNotFound
		}
		return nil, nil, fmt.Errorf("database error: %w", err)
	}

	var reviews []models.Review
	if err := db.Where("store_id = ?", storeID).Order("id ASC").Find(&reviews).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load reviews: %w", err)
	}

	latest, err := s.latestAnalyses(ctx, storeID)
	if err != nil {
		return nil, nil, err
	}

	inputs := make([]trust.ReviewInput, 0, len(reviews))
	for _, r := range reviews {
		in := trust.ReviewInput{
			Rating:        r.Rating,
			External:      r.IsExternal(),
			Content:       r.Content,
			IsDisclosedAd: r.IsDisclosedAd,
			CreatedAt:     r.CreatedAt,
		}
		if a, ok := latest[r.ID]; ok {
			in.Analysis = analysisResult(a)
			at := a.CreatedAt
			in.AnalyzedAt = &at
		}
		inputs = append(inputs, in)
	}

	summary := trust.Aggregate(trust.StoreInput{
		ExternalRating:      store.ExternalRating,
		ExternalReviewCount: store.ExternalReviewCount,
	}, inputs)
	return &store, &summary, nil
}

// latestAnalyses returns the newest analysis per review of a store. A
// missing analyses table degrades to heuristic scoring.
func (s *SummaryService) latestAnalyses(ctx context.Context, storeID uint64) (map[uint64]*models.ReviewAnalysis, error) {
	var rows []models.ReviewAnalysis
	err := s.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		if database.IsSchemaMissing(err) {
			logrus.WithError(err).Warn("Review analyses unavailable, scoring heuristically")
			return map[uint64]*models.ReviewAnalysis{}, nil
		}
		return nil, fmt.Errorf("failed to load analyses: %w", err)
	}

	latest := make(map[uint64]*models.ReviewAnalysis, len(rows))
	for i := range rows {
		if _, ok := latest[rows[i].ReviewID]; !ok {
			latest[rows[i].ReviewID] = &rows[i]
		}
	}
	return latest, nil
}

func analysisResult(a *models.ReviewAnalysis) *analysis.Result {
	return &analysis.Result{
		Provider:          a.Provider,
		Model:             a.Model,
		Version:           a.Version,
		AdRisk:            a.AdRisk,
		UndisclosedAdRisk: a.UndisclosedAdRisk,
		LowQualityRisk:    a.LowQualityRisk,
		TrustScore:        a.TrustScore,
		Confidence:        a.Confidence,
		Signals:           []string(a.Signals),
		Reason:            a.Reason,
	}
}

func summaryRow(storeID uint64, sum *trust.Summary, now time.Time) *models.StoreSummary {
	return &models.StoreSummary{
		StoreID:                storeID,
		WeightedRating:         sum.WeightedRating,
		AppAverageRating:       sum.AppAverageRating,
		AdSuspectRatio:         sum.AdSuspectRatio,
		TrustScore:             sum.TrustScore,
		PositiveRatio:          sum.PositiveRatio,
		ReviewCount:            sum.ReviewCount,
		AppReviewCount:         sum.AppReviewCount,
		ExternalReviewCount:    sum.ExternalReviewCount,
		LastAnalyzedAt:         sum.LastAnalyzedAt,
		LatestExternalReviewAt: sum.LatestExternalReviewAt,
		LatestReviewAt:         sum.LatestReviewAt,
		UpdatedAt:              now,
	}
}

func summaryFromRow(row *models.StoreSummary) *trust.Summary {
	return &trust.Summary{
		WeightedRating:         row.WeightedRating,
		AppAverageRating:       row.AppAverageRating,
		AdSuspectRatio:         row.AdSuspectRatio,
		TrustScore:             row.TrustScore,
		PositiveRatio:          row.PositiveRatio,
		ReviewCount:            row.ReviewCount,
		AppReviewCount:         row.AppReviewCount,
		ExternalReviewCount:    row.ExternalReviewCount,
		LastAnalyzedAt:         row.LastAnalyzedAt,
		LatestExternalReviewAt: row.LatestExternalReviewAt,
		LatestReviewAt:         row.LatestReviewAt,
	}
}

// Recompute computes the summary and upserts it. When the summaries table is
// not provisioned the result is returned without being stored.
func (s *SummaryService) Recompute(ctx context.Context, storeID uint64) (*trust.Summary, error) {
	_, summary, err := s.Compute(ctx, storeID)
	if err != nil {
		return nil, err
	}

	log := logrus.WithField("store_id", storeID)
	if c := database.ProbeTable(s.db.WithContext(ctx), summaryTable); !c.Supported {
		log.WithField("reason", c.Reason).Warn("Skipping summary persistence")
		return summary, nil
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_id"}},
		UpdateAll: true,
	}).Create(summaryRow(storeID, summary, s.now())).Error
	if err != nil {
		if database.IsSchemaMissing(err) {
			log.WithError(err).Warn("Skipping summary persistence")
			return summary, nil
		}
		return nil, fmt.Errorf("failed to store summary: %w", err)
	}
	return summary, nil
}

// GetSummary returns the stored summary, computing it when absent.
func (s *SummaryService) GetSummary(ctx context.Context, storeID uint64) (*trust.Summary, error) {
	var row models.StoreSummary
	err := s.db.WithContext(ctx).Where("store_id = ?", storeID).First(&row).Error
	switch {
	case err == nil:
		return summaryFromRow(&row), nil
	case errors.Is(err, gorm.ErrRecordNotFound), database.IsSchemaMissing(err):
		return s.Recompute(ctx, storeID)
	default:
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}
}

// RatingTrust scores how credible the store's aggregate rating is.
func (s *SummaryService) RatingTrust(ctx context.Context, storeID uint64) (*trust.RatingTrust, error) {
	var store models.Store
	if err := s.db.WithContext(ctx).First(&store, storeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	summary, err := s.GetSummary(ctx, storeID)
	if err != nil {
		return nil, err
	}
	rt := trust.ScoreStore(store.ExternalRating, *summary, s.now())
	return &rt, nil
}
