package services

import (
	"github.com/javajoker/venuetrust/internal/models"
)

func (suite *ServiceTestSuite) seedSeoulKitchenPair() (withoutLocation, withLocation *models.Store) {
	withoutLocation = suite.insertStore(models.Store{
		Name:                "Seoul Kitchen",
		Address:             strPtr("서울 강남구 테헤란로 123"),
		ExternalReviewCount: 10,
		ExternalRating:      floatPtr(4.1),
	})
	withLocation = suite.insertStore(models.Store{
		Name:      "seoul kitchen",
		Address:   strPtr("강남구 테헤란로 123 1층"),
		Latitude:  floatPtr(37.5),
		Longitude: floatPtr(127.0),
	})
	return withoutLocation, withLocation
}

func (suite *ServiceTestSuite) TestSelectCanonicalOrder() {
	stores := []models.Store{
		{BaseModel: models.BaseModel{ID: 1}, ExternalReviewCount: 900},
		{BaseModel: models.BaseModel{ID: 2}, PlaceID: strPtr("p")},
		{BaseModel: models.BaseModel{ID: 3}, Latitude: floatPtr(1), Longitude: floatPtr(2), ExternalReviewCount: 5},
		{BaseModel: models.BaseModel{ID: 4}, Latitude: floatPtr(1), Longitude: floatPtr(2), ExternalReviewCount: 5, ExternalRating: floatPtr(4.0)},
		{BaseModel: models.BaseModel{ID: 5}, Latitude: floatPtr(1), Longitude: floatPtr(2), ExternalReviewCount: 5, ExternalRating: floatPtr(4.0)},
	}

	canonical, sources := SelectCanonical(stores)
	suite.Equal(uint64(4), canonical.ID)
	suite.Equal([]uint64{5, 3, 2, 1}, sources)
}

func (suite *ServiceTestSuite) TestDedupCollapsesSeoulKitchen() {
	a, b := suite.seedSeoulKitchenPair()
	suite.insertStore(models.Store{Name: "Busan Grill", Address: strPtr("서울 강남구 테헤란로 500")})

	suite.submit(a.ID, 4.5, "친절하고 음식이 정말 맛있었어요. 김치찌개 추천합니다")
	suite.submit(a.ID, 3.0, "보통이에요. 가격 대비 양이 조금 적었습니다")
	suite.submit(b.ID, 5.0, "점심 메뉴가 다양하고 직원분들이 친절했어요")
	suite.Require().NoError(suite.db.Create(&models.Favorite{StoreID: a.ID, UserRef: "user-1"}).Error)
	before := suite.countReviews()

	res, err := suite.dedup.Run(suite.ctx, DedupRequest{})
	suite.Require().NoError(err)
	suite.Equal(1, res.GroupsFound)
	suite.Equal(1, res.GroupsMerged)
	suite.Equal(1, res.StoresRemoved)
	suite.Equal(int64(2), res.ReviewsMoved)
	suite.Empty(res.Errors)
	suite.Empty(res.Skipped)

	suite.Equal(before, suite.countReviews())
	suite.Equal(before, suite.countReviews("store_id = ?", b.ID))

	_, err = suite.stores.GetStore(suite.ctx, a.ID)
	suite.ErrorIs(err, ErrStoreNotFound)

	canonical, err := suite.stores.GetStore(suite.ctx, b.ID)
	suite.Require().NoError(err)
	suite.Equal(10, canonical.ExternalReviewCount)
	suite.Equal(4.1, *canonical.ExternalRating)

	var fav models.Favorite
	suite.Require().NoError(suite.db.First(&fav).Error)
	suite.Equal(b.ID, fav.StoreID)

	var analyses int64
	suite.Require().NoError(suite.db.Model(&models.ReviewAnalysis{}).Where("store_id = ?", b.ID).Count(&analyses).Error)
	suite.Equal(int64(3), analyses)

	summary, err := suite.summaries.GetSummary(suite.ctx, b.ID)
	suite.Require().NoError(err)
	suite.Equal(3, summary.AppReviewCount)
	suite.Equal(13, summary.ReviewCount)

	again, err := suite.dedup.Run(suite.ctx, DedupRequest{})
	suite.Require().NoError(err)
	suite.Zero(again.GroupsFound)
}

func (suite *ServiceTestSuite) TestDedupDryRun() {
	a, b := suite.seedSeoulKitchenPair()

	res, err := suite.dedup.Run(suite.ctx, DedupRequest{DryRun: true})
	suite.Require().NoError(err)
	suite.True(res.DryRun)
	suite.Equal(1, res.GroupsFound)
	suite.Zero(res.GroupsMerged)
	suite.Require().Len(res.Groups, 1)
	suite.Equal(b.ID, res.Groups[0].Canonical.ID)
	suite.Equal([]uint64{a.ID}, res.Groups[0].SourceIDs)

	_, err = suite.stores.GetStore(suite.ctx, a.ID)
	suite.NoError(err)
}

func (suite *ServiceTestSuite) TestDedupSkipsMissingTable() {
	a, b := suite.seedSeoulKitchenPair()
	suite.submit(a.ID, 4.0, "분위기 좋고 파스타가 맛있었습니다. 재방문 의사 있어요")
	suite.Require().NoError(suite.db.Migrator().DropTable(&models.Favorite{}))

	res, err := suite.dedup.Run(suite.ctx, DedupRequest{})
	suite.Require().NoError(err)
	suite.Equal(1, res.GroupsMerged)
	suite.Require().Len(res.Skipped, 1)
	suite.Equal("store_favorites.store_id", res.Skipped[0].Step)
	suite.Equal(b.ID, res.Skipped[0].CanonicalID)
	suite.Equal(int64(1), suite.countReviews("store_id = ?", b.ID))
}

func (suite *ServiceTestSuite) TestDedupMaxGroupsAndTotals() {
	names := []string{"Seoul Kitchen", "Busan Grill", "Daegu Noodle"}
	for i, name := range names {
		addr := []string{"강남구 테헤란로 1", "강남구 역삼로 2", "강남구 논현로 3"}[i]
		for j := 0; j < 2; j++ {
			st := suite.insertStore(models.Store{Name: name, Address: strPtr(addr)})
			suite.submit(st.ID, 4.0, "메뉴 설명이 자세하고 직원분들이 친절했어요")
		}
	}
	total := suite.countReviews()

	res, err := suite.dedup.Run(suite.ctx, DedupRequest{MaxGroups: 2})
	suite.Require().NoError(err)
	suite.Equal(2, res.GroupsFound)
	suite.Equal(2, res.StoresRemoved)

	res, err = suite.dedup.Run(suite.ctx, DedupRequest{})
	suite.Require().NoError(err)
	suite.Equal(1, res.GroupsMerged)

	var stores int64
	suite.Require().NoError(suite.db.Model(&models.Store{}).Count(&stores).Error)
	suite.Equal(int64(3), stores)
	suite.Equal(total, suite.countReviews())
}

func (suite *ServiceTestSuite) TestFindGroupsIgnoresMissingAddress() {
	suite.insertStore(models.Store{Name: "Seoul Kitchen"})
	suite.insertStore(models.Store{Name: "Seoul Kitchen"})

	groups, err := suite.dedup.FindGroups(suite.ctx, 0)
	suite.Require().NoError(err)
	suite.Empty(groups)
}
