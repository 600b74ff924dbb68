package services

import (
	"time"

	"github.com/javajoker/venuetrust/internal/models"
	"github.com/javajoker/venuetrust/internal/places"
	"github.com/javajoker/venuetrust/internal/trust"
	"github.com/javajoker/venuetrust/internal/utils"
)

func (suite *ServiceTestSuite) TestSubmitReview() {
	store := suite.insertStore(models.Store{Name: "Seoul Kitchen"})

	res, err := suite.reviews.SubmitReview(suite.ctx, store.ID, &SubmitReviewRequest{
		Rating:     4.5,
		Content:    "  된장찌개가 깊은 맛이었고 반찬도 정갈했어요  ",
		AuthorName: strPtr("minji"),
	})
	suite.Require().NoError(err)
	suite.Equal(models.ReviewSourceInApp, res.Review.Source)
	suite.Equal("된장찌개가 깊은 맛이었고 반찬도 정갈했어요", res.Review.Content)
	suite.Equal("heuristic", res.Analysis.Provider)
	suite.Equal(res.Review.ID, res.Analysis.ReviewID)
	suite.Require().NotNil(res.Summary)
	suite.Equal(1, res.Summary.AppReviewCount)
	suite.Equal(4.5, *res.Summary.AppAverageRating)

	var row models.StoreSummary
	suite.Require().NoError(suite.db.First(&row, "store_id = ?", store.ID).Error)
	suite.Equal(1, row.ReviewCount)
}

func (suite *ServiceTestSuite) TestSubmitReviewRejectsInvalidInput() {
	store := suite.insertStore(models.Store{Name: "Seoul Kitchen"})

	for _, req := range []*SubmitReviewRequest{
		{Rating: 4.3, Content: "맛있어요"},
		{Rating: 0, Content: "맛있어요"},
		{Rating: 5.5, Content: "맛있어요"},
		{Rating: 4, Content: "   "},
	} {
		_, err := suite.reviews.SubmitReview(suite.ctx, store.ID, req)
		suite.ErrorIs(err, ErrInvalidReview)
	}
	suite.Zero(suite.countReviews())

	_, err := suite.reviews.SubmitReview(suite.ctx, 404, &SubmitReviewRequest{Rating: 4, Content: "맛있어요"})
	suite.ErrorIs(err, ErrStoreNotFound)
}

func (suite *ServiceTestSuite) TestListReviewsFiltersBySource() {
	store := suite.insertStore(models.Store{Name: "Seoul Kitchen"})
	suite.submit(store.ID, 4, "음식이 빨리 나오고 맛있었어요")
	suite.submit(store.ID, 3, "무난한 맛이었어요. 주차가 불편합니다")
	_, err := suite.reviews.ImportExternal(suite.ctx, store.ID, []places.Review{
		{Key: "ext-1", Author: "kim", Rating: 5, Text: "최고의 국밥집", PublishedAt: time.Now().Add(-time.Hour)},
	})
	suite.Require().NoError(err)

	all, total, err := suite.reviews.ListReviews(suite.ctx, store.ID, utils.PaginationParams{Page: 1, Limit: 2, Sort: "created_at", Order: "desc"})
	suite.Require().NoError(err)
	suite.Equal(int64(3), total)
	suite.Len(all, 2)

	ext, total, err := suite.reviews.ListReviews(suite.ctx, store.ID, utils.PaginationParams{Page: 1, Limit: 20, Order: "desc", Source: "external"})
	suite.Require().NoError(err)
	suite.Equal(int64(1), total)
	suite.Equal("ext-1", *ext[0].ExternalKey)
}

func (suite *ServiceTestSuite) TestImportExternalIsIdempotent() {
	store := suite.insertStore(models.Store{Name: "Seoul Kitchen", ExternalReviewCount: 1})
	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fetched := []places.Review{
		{Key: "ext-1", Author: "kim", Rating: 3.6, Text: "괜찮았어요", PublishedAt: published},
		{Author: "lee", Rating: 0.2, Text: "별로였습니다", PublishedAt: published},
		{Author: "park", Rating: 4, Text: "   "},
	}

	n, err := suite.reviews.ImportExternal(suite.ctx, store.ID, fetched)
	suite.Require().NoError(err)
	suite.Equal(2, n)

	n, err = suite.reviews.ImportExternal(suite.ctx, store.ID, fetched)
	suite.Require().NoError(err)
	suite.Zero(n)

	var reviews []models.Review
	suite.Require().NoError(suite.db.Order("id ASC").Find(&reviews).Error)
	suite.Require().Len(reviews, 2)
	suite.Equal(4.0, reviews[0].Rating)
	suite.Equal(1.0, reviews[1].Rating)
	suite.True(reviews[0].IsExternal())
	suite.Equal(ExternalKey(fetched[1]), *reviews[1].ExternalKey)
	suite.True(reviews[0].CreatedAt.Equal(published))

	summary, err := suite.summaries.GetSummary(suite.ctx, store.ID)
	suite.Require().NoError(err)
	suite.Equal(2, summary.ExternalReviewCount)
	suite.Nil(summary.AppAverageRating)
	suite.Require().NotNil(summary.LatestExternalReviewAt)
	suite.True(summary.LatestExternalReviewAt.Equal(published))
}

func (suite *ServiceTestSuite) TestReanalyze() {
	store := suite.insertStore(models.Store{Name: "Seoul Kitchen"})
	suite.submit(store.ID, 4, "음식이 빨리 나오고 맛있었어요")
	suite.submit(store.ID, 2, "최고예요 강추")

	res, err := suite.reviews.Reanalyze(suite.ctx, store.ID)
	suite.Require().NoError(err)
	suite.Equal(2, res.Analyzed)
	suite.Zero(res.Failed)

	var analyses int64
	suite.Require().NoError(suite.db.Model(&models.ReviewAnalysis{}).Count(&analyses).Error)
	suite.Equal(int64(4), analyses)

	_, err = suite.reviews.Reanalyze(suite.ctx, 404)
	suite.ErrorIs(err, ErrStoreNotFound)
}

func (suite *ServiceTestSuite) TestSummaryUsesLatestAnalysis() {
	store := suite.insertStore(models.Store{Name: "Seoul Kitchen"})
	suite.submit(store.ID, 5, "음식이 빨리 나오고 맛있었어요")

	var review models.Review
	suite.Require().NoError(suite.db.First(&review).Error)
	suite.Require().NoError(suite.db.Create(&models.ReviewAnalysis{
		ReviewID:   review.ID,
		StoreID:    store.ID,
		Provider:   "openai",
		AdRisk:     1,
		TrustScore: 0,
		CreatedAt:  time.Now().Add(time.Hour),
	}).Error)

	summary, err := suite.summaries.Recompute(suite.ctx, store.ID)
	suite.Require().NoError(err)
	suite.Equal(1.0, summary.AdSuspectRatio)
	suite.Zero(summary.TrustScore)
	suite.Equal(5.0, *summary.WeightedRating)
}

func (suite *ServiceTestSuite) TestSummaryWithoutTable() {
	store := suite.insertStore(models.Store{Name: "Seoul Kitchen", ExternalRating: floatPtr(4.2), ExternalReviewCount: 30})
	suite.Require().NoError(suite.db.Migrator().DropTable(&models.StoreSummary{}))

	summary, err := suite.summaries.GetSummary(suite.ctx, store.ID)
	suite.Require().NoError(err)
	suite.Equal(4.2, *summary.WeightedRating)
	suite.Equal(30, summary.ReviewCount)
}

func (suite *ServiceTestSuite) TestRatingTrustOverstatedStore() {
	store := suite.insertStore(models.Store{Name: "Seoul Kitchen", ExternalRating: floatPtr(4.95), ExternalReviewCount: 15})

	rt, err := suite.summaries.RatingTrust(suite.ctx, store.ID)
	suite.Require().NoError(err)
	suite.Contains([]string{trust.LabelSuspect, trust.LabelUnreliable}, rt.Label)

	_, err = suite.summaries.RatingTrust(suite.ctx, 404)
	suite.ErrorIs(err, ErrStoreNotFound)
}
