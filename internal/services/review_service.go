// internal/services/review_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/venuetrust/internal/analysis"
	"github.com/javajoker/venuetrust/internal/database"
	"github.com/javajoker/venuetrust/internal/models"
	"github.com/javajoker/venuetrust/internal/places"
	"github.com/javajoker/venuetrust/internal/trust"
	"github.com/javajoker/venuetrust/internal/utils"
)

// ReviewAnalyzer scores a review and never fails. *analysis.Chain is the
// production implementation.
type ReviewAnalyzer interface {
	Analyze(ctx context.Context, in analysis.Input) *analysis.Result
}

// externalKeySpace namespaces generated keys of external reviews that came
// without a provider key.
var externalKeySpace = uuid.MustParse("6f1c3d2e-8a47-4b0e-9c55-3e2f7d9a1b60")

type ReviewService struct {
	db        *gorm.DB
	analyzer  ReviewAnalyzer
	summaries *SummaryService
	timeout   time.Duration
}

type SubmitReviewRequest struct {
	Rating        float64 `json:"rating" validate:"required,min=0.5,max=5,half_step"`
	Content       string  `json:"content" validate:"required,not_blank,max=2000"`
	AuthorName    *string `json:"author_name,omitempty" validate:"omitempty,max=100"`
	IsDisclosedAd bool    `json:"is_disclosed_ad"`
}

type SubmitReviewResult struct {
	Review   *models.Review         `json:"review"`
	Analysis *models.ReviewAnalysis `json:"analysis"`
	Summary  *trust.Summary         `json:"summary,omitempty"`
}

type ReanalyzeResult struct {
	StoreID  uint64      `json:"store_id"`
	Analyzed int         `json:"analyzed"`
	Failed   int         `json:"failed"`
	Errors   []ItemError `json:"errors,omitempty"`
}

func NewReviewService(db *gorm.DB, analyzer ReviewAnalyzer, summaries *SummaryService, timeout time.Duration) *ReviewService {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ReviewService{db: db, analyzer: analyzer, summaries: summaries, timeout: timeout}
}

func (s *ReviewService) analyze(ctx context.Context, r *models.Review) *analysis.Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.analyzer.Analyze(ctx, analysis.Input{
		Rating:        r.Rating,
		Content:       r.Content,
		IsDisclosedAd: r.IsDisclosedAd,
		External:      r.IsExternal(),
	})
}

func analysisRow(r *models.Review, res *analysis.Result) *models.ReviewAnalysis {
	return &models.ReviewAnalysis{
		ReviewID:          r.ID,
		StoreID:           r.StoreID,
		Provider:          res.Provider,
		Model:             res.Model,
		Version:           res.Version,
		AdRisk:            res.AdRisk,
		UndisclosedAdRisk: res.UndisclosedAdRisk,
		LowQualityRisk:    res.LowQualityRisk,
		TrustScore:        res.TrustScore,
		Confidence:        res.Confidence,
		Signals:           models.StringList(res.Signals),
		Reason:            res.Reason,
	}
}

func (s *ReviewService) storeExists(ctx context.Context, storeID uint64) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Store{}).Where("id = ?", storeID).Count(&count).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if count == 0 {
		return ErrStoreNotFound
	}
	return nil
}

// SubmitReview stores an in-app review with its analysis and refreshes the
// store summary.
func (s *ReviewService) SubmitReview(ctx context.Context, storeID uint64, req *SubmitReviewRequest) (*SubmitReviewResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReview, err)
	}
	if err := s.storeExists(ctx, storeID); err != nil {
		return nil, err
	}

	review := &models.Review{
		StoreID:       storeID,
		Source:        models.ReviewSourceInApp,
		Rating:        req.Rating,
		Content:       strings.TrimSpace(req.Content),
		AuthorName:    trimmed(req.AuthorName),
		IsDisclosedAd: req.IsDisclosedAd,
	}
	res := s.analyze(ctx, review)

	var row *models.ReviewAnalysis
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Create(review).Error; err != nil {
			return fmt.Errorf("failed to create review: %w", err)
		}
		row = analysisRow(review, res)
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("failed to store analysis: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"store_id":  storeID,
		"review_id": review.ID,
		"provider":  res.Provider,
	}).Info("Review submitted")

	summary, err := s.summaries.Recompute(ctx, storeID)
	if err != nil {
		logrus.WithError(err).WithField("store_id", storeID).Warn("Failed to refresh summary after review")
	}

	return &SubmitReviewResult{Review: review, Analysis: row, Summary: summary}, nil
}

// ListReviews returns a page of a store's reviews, optionally filtered by
// source.
func (s *ReviewService) ListReviews(ctx context.Context, storeID uint64, params utils.PaginationParams) ([]models.Review, int64, error) {
	if err := s.storeExists(ctx, storeID); err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).Model(&models.Review{}).Where("store_id = ?", storeID)
	if params.Source != "" {
		query = query.Where("source = ?", params.Source)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	var reviews []models.Review
	query = utils.ApplySort(query, params, []string{"created_at", "rating"})
	if err := utils.ApplyPagination(query, params).Find(&reviews).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, total, nil
}

// LatestInApp returns the newest in-app reviews of a store.
func (s *ReviewService) LatestInApp(ctx context.Context, storeID uint64, limit int) ([]models.Review, error) {
	var reviews []models.Review
	err := s.db.WithContext(ctx).
		Where("store_id = ? AND source = ?", storeID, models.ReviewSourceInApp).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	return reviews, nil
}

// externalRating maps a provider rating onto the integer 1-5 scale.
func externalRating(v float64) float64 {
	return math.Min(5, math.Max(1, math.Round(v)))
}

// ExternalKey identifies an external review across imports.
func ExternalKey(r places.Review) string {
	if k := strings.TrimSpace(r.Key); k != "" {
		return k
	}
	seed := strings.Join([]string{r.Author, r.PublishedAt.UTC().Format(time.RFC3339), r.Text}, "|")
	return uuid.NewSHA1(externalKeySpace, []byte(seed)).String()
}

// ImportExternal stores fetched external reviews the store does not have
// yet, analyzes them and refreshes the summary. It returns the number of
// reviews added.
func (s *ReviewService) ImportExternal(ctx context.Context, storeID uint64, fetched []places.Review) (int, error) {
	if len(fetched) == 0 {
		return 0, nil
	}
	if err := s.storeExists(ctx, storeID); err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(fetched))
	for _, r := range fetched {
		keys = append(keys, ExternalKey(r))
	}

	var existing []string
	if err := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("external_key IN ?", keys).
		Pluck("external_key", &existing).Error; err != nil {
		return 0, fmt.Errorf("failed to check external reviews: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, k := range existing {
		seen[k] = true
	}

	imported := 0
	for i, r := range fetched {
		key := keys[i]
		if seen[key] || strings.TrimSpace(r.Text) == "" {
			continue
		}
		seen[key] = true

		review := &models.Review{
			StoreID:     storeID,
			Source:      models.ReviewSourceExternal,
			Rating:      externalRating(r.Rating),
			Content:     strings.TrimSpace(r.Text),
			AuthorName:  trimmed(&r.Author),
			ExternalKey: &key,
		}
		if !r.PublishedAt.IsZero() {
			review.CreatedAt = r.PublishedAt
		}
		res := s.analyze(ctx, review)

		err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
			if err := tx.Create(review).Error; err != nil {
				return err
			}
			return tx.Create(analysisRow(review, res)).Error
		})
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"store_id":     storeID,
				"external_key": key,
			}).Warn("Failed to import external review")
			continue
		}
		imported++
	}

	if imported > 0 {
		if _, err := s.summaries.Recompute(ctx, storeID); err != nil {
			logrus.WithError(err).WithField("store_id", storeID).Warn("Failed to refresh summary after import")
		}
	}
	return imported, nil
}

// Reanalyze runs every review of a store through the analyzer again. Each
// review is handled on its own; failures are reported, not fatal.
func (s *ReviewService) Reanalyze(ctx context.Context, storeID uint64) (*ReanalyzeResult, error) {
	if err := s.storeExists(ctx, storeID); err != nil {
		return nil, err
	}

	var reviews []models.Review
	if err := s.db.WithContext(ctx).Where("store_id = ?", storeID).Order("id ASC").Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}

	result := &ReanalyzeResult{StoreID: storeID}
	for i := range reviews {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		r := &reviews[i]
		res := s.analyze(ctx, r)
		if err := s.db.WithContext(ctx).Create(analysisRow(r, res)).Error; err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{ID: r.ID, Error: err.Error()})
			continue
		}
		result.Analyzed++
	}

	if _, err := s.summaries.Recompute(ctx, storeID); err != nil && !errors.Is(err, ErrStoreNotFound) {
		logrus.WithError(err).WithField("store_id", storeID).Warn("Failed to refresh summary after reanalysis")
	}

	logrus.WithFields(logrus.Fields{
		"store_id": storeID,
		"analyzed": result.Analyzed,
		"failed":   result.Failed,
	}).Info("Store reviews reanalyzed")
	return result, nil
}
