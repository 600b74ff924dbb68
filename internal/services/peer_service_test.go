package services

import (
	"errors"

	"github.com/javajoker/venuetrust/internal/models"
	"github.com/javajoker/venuetrust/internal/places"
	"github.com/javajoker/venuetrust/internal/ranking"
)

func (suite *ServiceTestSuite) seedPeerNeighbourhood() *models.Store {
	subject := suite.insertStore(models.Store{
		Name: "Seoul Kitchen", Latitude: floatPtr(37.5), Longitude: floatPtr(127.0),
		ExternalRating: floatPtr(4.5), ExternalReviewCount: 50,
	})
	suite.insertStore(models.Store{
		Name: "Busan Kitchen", Latitude: floatPtr(37.5009), Longitude: floatPtr(127.0),
		ExternalRating: floatPtr(4.2), ExternalReviewCount: 60,
	})
	// too far away
	suite.insertStore(models.Store{
		Name: "Jeju Kitchen", Latitude: floatPtr(37.52), Longitude: floatPtr(127.0),
		ExternalRating: floatPtr(4.9), ExternalReviewCount: 80,
	})
	return subject
}

func (suite *ServiceTestSuite) TestPeersUseNearbySearchForSmallSets() {
	subject := suite.seedPeerNeighbourhood()
	suite.places.nearby = []places.Place{
		{ID: "p-daegu", Name: "Daegu Kitchen", Rating: floatPtr(4.8), ReviewCount: 70, Latitude: floatPtr(37.5018), Longitude: floatPtr(127.0)},
		{ID: "p-gwangju", Name: "Gwangju Grill", Rating: floatPtr(4.0), ReviewCount: 30, Latitude: floatPtr(37.5027), Longitude: floatPtr(127.0)},
		{ID: "p-coffee", Name: "Blue Bottle Coffee", Rating: floatPtr(4.6), ReviewCount: 80, Latitude: floatPtr(37.5001), Longitude: floatPtr(127.0)},
		{ID: "p-nowhere", Name: "Nowhere Kitchen", Rating: floatPtr(4.4)},
	}

	res, err := suite.peers.Peers(suite.ctx, subject.ID)
	suite.Require().NoError(err)
	suite.Equal(1, suite.places.nearbyCalls)
	suite.True(res.FallbackUsed)
	suite.Equal(ranking.CategoryRestaurant, res.Category)
	suite.Equal(ranking.LabelOrdinary, res.Label)
	suite.Equal(4, res.Total)
	suite.Equal(2, res.Rank)
	suite.Equal(50, res.TopPercent)
	suite.Equal("Daegu Kitchen", res.Peers[0].Name)
	suite.Len(res.FallbackPlaces, 2)
}

func (suite *ServiceTestSuite) TestPeersKeepStoredRankingWhenSearchFails() {
	subject := suite.seedPeerNeighbourhood()
	suite.places.nearbyErr = errors.New("provider down")

	res, err := suite.peers.Peers(suite.ctx, subject.ID)
	suite.Require().NoError(err)
	suite.False(res.FallbackUsed)
	suite.Equal(2, res.Total)
	suite.Equal(1, res.Rank)
	suite.Equal(50, res.TopPercent)
}

func (suite *ServiceTestSuite) TestPeersSkipSearchForLargeSets() {
	subject := suite.seedPeerNeighbourhood()
	suite.insertStore(models.Store{
		Name: "Incheon Bistro", Latitude: floatPtr(37.4995), Longitude: floatPtr(127.001),
		ExternalRating: floatPtr(4.6), ExternalReviewCount: 45,
	})

	res, err := suite.peers.Peers(suite.ctx, subject.ID)
	suite.Require().NoError(err)
	suite.Zero(suite.places.nearbyCalls)
	suite.Equal(3, res.Total)
	suite.Equal(2, res.Rank)
}

func (suite *ServiceTestSuite) TestPeersUseWeightedRatingWithoutExternalRating() {
	subject := suite.insertStore(models.Store{Name: "Seoul Kitchen", Latitude: floatPtr(37.5), Longitude: floatPtr(127.0)})
	suite.submit(subject.ID, 4.5, "음식이 빨리 나오고 맛있었어요")

	res, err := suite.peers.Peers(suite.ctx, subject.ID)
	suite.Require().NoError(err)
	suite.Equal(ranking.LabelInsufficientSample, res.Label)
	suite.Equal(1, res.Rank)
}

func (suite *ServiceTestSuite) TestPeersRequireLocationAndRating() {
	noLocation := suite.insertStore(models.Store{Name: "Seoul Kitchen", ExternalRating: floatPtr(4.0)})
	_, err := suite.peers.Peers(suite.ctx, noLocation.ID)
	suite.ErrorIs(err, ranking.ErrNoLocation)

	noRating := suite.insertStore(models.Store{Name: "Busan Kitchen", Latitude: floatPtr(37.5), Longitude: floatPtr(127.0)})
	_, err = suite.peers.Peers(suite.ctx, noRating.ID)
	suite.ErrorIs(err, ranking.ErrNoRating)
}
