package services

import (
	"context"
	"time"

	"github.com/javajoker/venuetrust/internal/cache"
	"github.com/javajoker/venuetrust/internal/models"
	"github.com/javajoker/venuetrust/internal/places"
	"github.com/javajoker/venuetrust/internal/ranking"
)

func (suite *ServiceTestSuite) TestDetailComposesAndCaches() {
	store := suite.insertStore(models.Store{Name: "Seoul Kitchen", Address: strPtr("서울 강남구 테헤란로 123")})
	suite.places.place = &places.Place{
		ID: "p-seoul", Name: "Seoul Kitchen", Rating: floatPtr(4.4), ReviewCount: 120,
		Photos: []string{"https://img.example/1.jpg"},
	}
	suite.places.reviews = []places.Review{
		{Key: "ext-1", Author: "kim", Rating: 5, Text: "국물이 진하고 맛있어요", PublishedAt: time.Now().Add(-2 * time.Hour)},
		{Key: "ext-2", Author: "lee", Rating: 4, Text: "웨이팅이 조금 있어요", PublishedAt: time.Now().Add(-3 * time.Hour)},
	}

	first, err := suite.detail.GetDetail(suite.ctx, store.ID, false)
	suite.Require().NoError(err)
	suite.Equal(cache.OutcomeMiss, first.Outcome)
	suite.NotEmpty(first.ETag)
	suite.Equal([]string{"https://img.example/1.jpg"}, first.Detail.Photos)
	suite.Len(first.Detail.ExternalReviews, 2)
	suite.Equal(ranking.ErrNoLocation.Error(), first.Detail.PeersUnavailable)
	suite.Require().NotNil(first.Detail.RatingTrust)
	suite.Equal(4.4, *first.Detail.RatingTrust.Rating)
	suite.Empty(first.Detail.AppReviews)

	// background work ran: metadata refreshed, reviews imported and cached
	refreshed, err := suite.stores.GetStore(suite.ctx, store.ID)
	suite.Require().NoError(err)
	suite.Equal("p-seoul", refreshed.PlaceIDText())
	suite.Equal(120, refreshed.ExternalReviewCount)
	suite.Equal(int64(2), suite.countReviews("store_id = ? AND source = ?", store.ID, models.ReviewSourceExternal))
	var cached models.ExternalReviewCache
	suite.Require().NoError(suite.db.First(&cached, "store_id = ?", store.ID).Error)

	suite.submit(store.ID, 3.5, "양이 많고 가격이 합리적이에요")

	second, err := suite.detail.GetDetail(suite.ctx, store.ID, false)
	suite.Require().NoError(err)
	suite.Equal(cache.OutcomeHit, second.Outcome)
	suite.Equal(first.ETag, second.ETag)
	suite.Equal(1, suite.places.findCalls)
	suite.Require().Len(second.Detail.AppReviews, 1)
	suite.Equal(3.5, second.Detail.AppReviews[0].Rating)
	suite.Equal(3.5, *second.Detail.AppAverageRating)
	suite.Equal(1, second.Detail.AppReviewCount)

	third, err := suite.detail.GetDetail(suite.ctx, store.ID, true)
	suite.Require().NoError(err)
	suite.Equal(cache.OutcomeRefreshed, third.Outcome)
	suite.Equal(2, suite.places.findCalls)
	suite.NotEqual(first.ETag, third.ETag)
	suite.Equal(int64(2), suite.countReviews("store_id = ? AND source = ?", store.ID, models.ReviewSourceExternal))
}

func (suite *ServiceTestSuite) TestDetailImportsFallbackPlaces() {
	subject := suite.seedPeerNeighbourhood()
	suite.places.nearby = []places.Place{
		{ID: "p-daegu", Name: "Daegu Kitchen", Address: "강남구 역삼로 7", Rating: floatPtr(4.8), ReviewCount: 70, Latitude: floatPtr(37.5018), Longitude: floatPtr(127.0)},
	}

	res, err := suite.detail.GetDetail(suite.ctx, subject.ID, false)
	suite.Require().NoError(err)
	suite.Require().NotNil(res.Detail.Peers)
	suite.True(res.Detail.Peers.FallbackUsed)

	var imported models.Store
	suite.Require().NoError(suite.db.Where("place_id = ?", "p-daegu").First(&imported).Error)
	suite.Equal(models.StoreSourceSearch, imported.Source)
	suite.True(imported.HasLocation())
}

func (suite *ServiceTestSuite) TestDetailUnknownStore() {
	_, err := suite.detail.GetDetail(suite.ctx, 404, false)
	suite.ErrorIs(err, ErrStoreNotFound)
}

// looseOnlyProvider answers only unfiltered text searches.
type looseOnlyProvider struct {
	loose []places.Place
}

func (p *looseOnlyProvider) TextSearch(_ context.Context, _, category string) ([]places.Place, error) {
	if category != "" {
		return nil, nil
	}
	return p.loose, nil
}

func (p *looseOnlyProvider) LatestReviews(context.Context, string, int) ([]places.Review, error) {
	return nil, nil
}

func (p *looseOnlyProvider) Nearby(context.Context, places.NearbyQuery) ([]places.Place, error) {
	return nil, nil
}

func (suite *ServiceTestSuite) TestDetailKeepsIdentityOnLooseMismatch() {
	finder := places.NewFinder(&looseOnlyProvider{loose: []places.Place{
		{ID: "p-busan", Name: "Busan Grill", Rating: floatPtr(3.1), ReviewCount: 400},
	}})
	snapshots := cache.NewSnapshots(cache.NewGormStore(suite.db), cache.WithSpawn(syncSpawn))
	detail := NewDetailService(suite.db, suite.stores, suite.reviews, suite.summaries, suite.peers,
		finder, snapshots, WithDetailSpawn(syncSpawn))

	store := suite.insertStore(models.Store{Name: "Seoul Kitchen", Address: strPtr("서울 강남구 테헤란로 123")})

	result, err := detail.GetDetail(suite.ctx, store.ID, false)
	suite.Require().NoError(err)
	suite.Nil(result.Detail.Place)

	got, err := suite.stores.GetStore(suite.ctx, store.ID)
	suite.Require().NoError(err)
	suite.Nil(got.PlaceID)
	suite.Nil(got.ExternalRating)
	suite.Zero(got.ExternalReviewCount)

	created, err := suite.stores.CreateStore(suite.ctx, &CreateStoreRequest{Name: "Busan Grill", PlaceID: strPtr("p-busan")})
	suite.Require().NoError(err)
	suite.True(created.Created)
	suite.NotEqual(store.ID, created.Store.ID)
}
