package services

import (
	"errors"

	"github.com/javajoker/venuetrust/internal/models"
	"github.com/javajoker/venuetrust/internal/places"
)

func (suite *ServiceTestSuite) TestCreateStoreMatchesPlaceID() {
	existing := suite.insertStore(models.Store{Name: "Seoul Kitchen", PlaceID: strPtr("p-1")})

	res, err := suite.stores.CreateStore(suite.ctx, &CreateStoreRequest{
		Name:      "Totally Different",
		PlaceID:   strPtr("p-1"),
		Latitude:  floatPtr(37.5),
		Longitude: floatPtr(127.0),
	})
	suite.Require().NoError(err)
	suite.False(res.Created)
	suite.Equal(MatchPlaceID, res.MatchedBy)
	suite.Equal(existing.ID, res.Store.ID)

	reloaded, err := suite.stores.GetStore(suite.ctx, existing.ID)
	suite.Require().NoError(err)
	suite.True(reloaded.HasLocation(), "coordinates backfilled on the hit")
	suite.InDelta(37.5, *reloaded.Latitude, 1e-9)
}

func (suite *ServiceTestSuite) TestCreateStoreMatchesExactNameAndAddress() {
	existing := suite.insertStore(models.Store{Name: "Seoul Kitchen", Address: strPtr("Somewhere 1")})

	res, err := suite.stores.CreateStore(suite.ctx, &CreateStoreRequest{Name: " Seoul Kitchen ", Address: strPtr("Somewhere 1")})
	suite.Require().NoError(err)
	suite.False(res.Created)
	suite.Equal(MatchExact, res.MatchedBy)
	suite.Equal(existing.ID, res.Store.ID)
}

func (suite *ServiceTestSuite) TestCreateStoreMatchesIdentityKey() {
	existing := suite.insertStore(models.Store{Name: "Seoul Kitchen", Address: strPtr("서울 강남구 테헤란로 123 2층")})

	res, err := suite.stores.CreateStore(suite.ctx, &CreateStoreRequest{
		Name:                "SEOUL KITCHEN",
		Address:             strPtr("강남구 테헤란로 123"),
		ExternalReviewCount: 40,
	})
	suite.Require().NoError(err)
	suite.False(res.Created)
	suite.Equal(MatchIdentityKey, res.MatchedBy)
	suite.Equal(existing.ID, res.Store.ID)
	suite.Equal(40, res.Store.ExternalReviewCount)
}

func (suite *ServiceTestSuite) TestCreateStoreMatchesGeoProximity() {
	existing := suite.insertStore(models.Store{Name: "Seoul Kitchen", Latitude: floatPtr(37.5), Longitude: floatPtr(127.0)})

	// ~55 m north, spacing differs
	res, err := suite.stores.CreateStore(suite.ctx, &CreateStoreRequest{
		Name:      "SeoulKitchen",
		Latitude:  floatPtr(37.5005),
		Longitude: floatPtr(127.0),
	})
	suite.Require().NoError(err)
	suite.False(res.Created)
	suite.Equal(MatchGeoProximity, res.MatchedBy)
	suite.Equal(existing.ID, res.Store.ID)

	// ~111 m north is a different venue
	res, err = suite.stores.CreateStore(suite.ctx, &CreateStoreRequest{
		Name:      "Seoul Kitchen",
		Latitude:  floatPtr(37.501),
		Longitude: floatPtr(127.0),
	})
	suite.Require().NoError(err)
	suite.True(res.Created)
	suite.Equal(models.StoreSourceManual, res.Store.Source)
}

func (suite *ServiceTestSuite) TestCreateStoreValidation() {
	cases := []*CreateStoreRequest{
		{Name: "   "},
		{Name: "Seoul Kitchen", Latitude: floatPtr(37.5)},
		{Name: "Seoul Kitchen", Latitude: floatPtr(91), Longitude: floatPtr(0)},
		{Name: "Seoul Kitchen", ExternalRating: floatPtr(5.5)},
		{Name: "Seoul Kitchen", ExternalReviewCount: -1},
		{Name: "Seoul Kitchen", Source: "crawler"},
	}
	for _, req := range cases {
		_, err := suite.stores.CreateStore(suite.ctx, req)
		suite.True(errors.Is(err, ErrInvalidStore), "%+v", req)
	}

	var n int64
	suite.Require().NoError(suite.db.Model(&models.Store{}).Count(&n).Error)
	suite.Zero(n)
}

func (suite *ServiceTestSuite) TestGetStoreNotFound() {
	_, err := suite.stores.GetStore(suite.ctx, 999)
	suite.ErrorIs(err, ErrStoreNotFound)
}

func (suite *ServiceTestSuite) TestRefreshExternal() {
	store := suite.insertStore(models.Store{Name: "Seoul Kitchen", ExternalReviewCount: 10})

	err := suite.stores.RefreshExternal(suite.ctx, store.ID, &places.Place{
		ID:          "p-9",
		Rating:      floatPtr(4.4),
		ReviewCount: 120,
		Latitude:    floatPtr(37.5),
		Longitude:   floatPtr(127.0),
	})
	suite.Require().NoError(err)

	got, err := suite.stores.GetStore(suite.ctx, store.ID)
	suite.Require().NoError(err)
	suite.Equal("p-9", got.PlaceIDText())
	suite.Equal(4.4, *got.ExternalRating)
	suite.Equal(120, got.ExternalReviewCount)
	suite.True(got.HasLocation())
}

func (suite *ServiceTestSuite) TestRefreshExternalIgnoresOtherPlace() {
	store := suite.insertStore(models.Store{Name: "Seoul Kitchen", PlaceID: strPtr("p-seoul"), ExternalReviewCount: 10})

	err := suite.stores.RefreshExternal(suite.ctx, store.ID, &places.Place{
		ID: "p-busan", Name: "Busan Grill", Rating: floatPtr(3.1), ReviewCount: 400,
	})
	suite.Require().NoError(err)

	got, err := suite.stores.GetStore(suite.ctx, store.ID)
	suite.Require().NoError(err)
	suite.Equal("p-seoul", got.PlaceIDText())
	suite.Nil(got.ExternalRating)
	suite.Equal(10, got.ExternalReviewCount)
}

func (suite *ServiceTestSuite) TestImportPlacesRunsDuplicatePrevention() {
	suite.insertStore(models.Store{Name: "Seoul Kitchen", PlaceID: strPtr("p-1")})

	created := suite.stores.ImportPlaces(suite.ctx, []places.Place{
		{ID: "p-1", Name: "Seoul Kitchen"},
		{ID: "p-2", Name: "Busan Grill", Latitude: floatPtr(37.5), Longitude: floatPtr(127.0)},
		{ID: "p-3", Name: ""},
	})
	suite.Equal(1, created)

	var imported models.Store
	suite.Require().NoError(suite.db.Where("place_id = ?", "p-2").First(&imported).Error)
	suite.Equal(models.StoreSourceSearch, imported.Source)
}
