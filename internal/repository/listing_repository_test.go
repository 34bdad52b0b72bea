package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/classifieds/backend/internal/database"
	"github.com/classifieds/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type ListingRepositorySuite struct {
	suite.Suite
	db   *gorm.DB
	repo ListingRepository
	ctx  context.Context
}

func (s *ListingRepositorySuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return baseTime },
	})
	require.NoError(s.T(), err)
	// Each pooled connection would otherwise get its own empty in-memory database
	sqlDB, err := db.DB()
	require.NoError(s.T(), err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(s.T(), database.MigrateDB(db))

	s.db = db
	s.repo = NewListingRepository(db)
	s.ctx = context.Background()
}

func (s *ListingRepositorySuite) TearDownTest() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (s *ListingRepositorySuite) insert(l models.Listing) models.Listing {
	if l.Title == "" {
		l.Title = "Listing " + l.ID
	}
	if l.UserID == "" {
		l.UserID = "seller-1"
	}
	if l.Status == "" {
		l.Status = models.ListingStatusActive
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = baseTime
	}
	l.UpdatedAt = l.CreatedAt
	require.NoError(s.T(), s.repo.Create(s.ctx, &l))
	return l
}

func ids(listings []models.Listing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}

func (s *ListingRepositorySuite) TestLocationMatchesNestedAndLegacy() {
	s.insert(models.Listing{ID: "a", Location: models.ListingLocation{CountryCode: "DE", City: "Berlin"}})
	s.insert(models.Listing{ID: "b", LegacyCountry: "de", LegacyCity: "berlin"})
	s.insert(models.Listing{ID: "c", Location: models.ListingLocation{CountryCode: "AT", City: "Vienna"}})

	got, err := s.repo.ListOrganic(s.ctx, ListingQuery{Filter: ListingFilter{Country: "de", City: "berlin"}, Sort: SortNewest, Limit: 10})
	s.Require().NoError(err)
	s.ElementsMatch([]string{"a", "b"}, ids(got))

	count, err := s.repo.Count(s.ctx, ListingFilter{Country: "at"})
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *ListingRepositorySuite) TestOnlyActiveListings() {
	s.insert(models.Listing{ID: "live"})
	s.insert(models.Listing{ID: "sold", Status: models.ListingStatusSold})
	s.insert(models.Listing{ID: "off", Status: models.ListingStatusInactive})

	got, err := s.repo.ListOrganic(s.ctx, ListingQuery{Sort: SortNewest, Limit: 10})
	s.Require().NoError(err)
	s.Equal([]string{"live"}, ids(got))
}

func (s *ListingRepositorySuite) TestCategorySellerAndSearch() {
	s.insert(models.Listing{ID: "1", Category: "electronics", Subcategory: "phones", Title: "Pixel phone", UserID: "u1"})
	s.insert(models.Listing{ID: "2", Category: "Electronics", Subcategory: "laptops", Title: "ThinkPad", Description: "fast laptop", UserID: "u2"})
	s.insert(models.Listing{ID: "3", Category: "furniture", Title: "Oak table 100%", UserID: "u1"})

	got, err := s.repo.ListOrganic(s.ctx, ListingQuery{Filter: ListingFilter{Category: "electronics"}, Sort: SortNewest, Limit: 10})
	s.Require().NoError(err)
	s.ElementsMatch([]string{"1", "2"}, ids(got))

	got, err = s.repo.ListOrganic(s.ctx, ListingQuery{Filter: ListingFilter{Subcategory: "laptops"}, Sort: SortNewest, Limit: 10})
	s.Require().NoError(err)
	s.Equal([]string{"2"}, ids(got))

	got, err = s.repo.ListOrganic(s.ctx, ListingQuery{Filter: ListingFilter{SellerID: "u1"}, Sort: SortNewest, Limit: 10})
	s.Require().NoError(err)
	s.ElementsMatch([]string{"1", "3"}, ids(got))

	got, err = s.repo.ListOrganic(s.ctx, ListingQuery{Filter: ListingFilter{Search: "laptop"}, Sort: SortNewest, Limit: 10})
	s.Require().NoError(err)
	s.Equal([]string{"2"}, ids(got))

	got, err = s.repo.ListOrganic(s.ctx, ListingQuery{Filter: ListingFilter{Search: "100%"}, Sort: SortNewest, Limit: 10})
	s.Require().NoError(err)
	s.Equal([]string{"3"}, ids(got))
}

func (s *ListingRepositorySuite) TestKeysetPaginationPerSort() {
	for i := 0; i < 6; i++ {
		s.insert(models.Listing{
			ID:         fmt.Sprintf("id-%d", i),
			Price:      float64(10 * (i % 3)),
			ViewsCount: i % 2,
			CreatedAt:  baseTime.Add(time.Duration(i%4) * time.Minute),
		})
	}

	for _, mode := range []SortMode{SortNewest, SortOldest, SortPriceLow, SortPriceHigh, SortPopular} {
		all, err := s.repo.ListOrganic(s.ctx, ListingQuery{Sort: mode, Limit: 100})
		s.Require().NoError(err)
		s.Require().Len(all, 6)

		var walked []string
		var after *Keyset
		for page := 0; page < 10; page++ {
			rows, err := s.repo.ListOrganic(s.ctx, ListingQuery{Sort: mode, After: after, Limit: 2})
			s.Require().NoError(err)
			if len(rows) == 0 {
				break
			}
			walked = append(walked, ids(rows)...)
			k := mode.KeysetOf(&rows[len(rows)-1])
			after = &k
		}
		s.Equal(ids(all), walked, "sort %s", mode)
	}
}

func (s *ListingRepositorySuite) TestExcludeIDs() {
	s.insert(models.Listing{ID: "x"})
	s.insert(models.Listing{ID: "y"})

	got, err := s.repo.ListOrganic(s.ctx, ListingQuery{Sort: SortNewest, ExcludeIDs: []string{"x"}, Limit: 10})
	s.Require().NoError(err)
	s.Equal([]string{"y"}, ids(got))
}

func (s *ListingRepositorySuite) TestListBoostedSkipsExpired() {
	live := baseTime.Add(2 * time.Hour)
	later := baseTime.Add(5 * time.Hour)
	expired := baseTime.Add(-time.Hour)

	s.insert(models.Listing{ID: "b1", IsBoosted: true, BoostExpiresAt: &live})
	s.insert(models.Listing{ID: "b2", IsBoosted: true, BoostExpiresAt: &later})
	s.insert(models.Listing{ID: "old", IsBoosted: true, BoostExpiresAt: &expired})
	s.insert(models.Listing{ID: "flag-off", IsBoosted: false, BoostExpiresAt: &later})
	s.insert(models.Listing{ID: "sold", IsBoosted: true, BoostExpiresAt: &later, Status: models.ListingStatusSold})

	got, err := s.repo.ListBoosted(s.ctx, ListingFilter{}, baseTime, 5)
	s.Require().NoError(err)
	s.Equal([]string{"b2", "b1"}, ids(got))

	got, err = s.repo.ListBoosted(s.ctx, ListingFilter{}, baseTime, 1)
	s.Require().NoError(err)
	s.Equal([]string{"b2"}, ids(got))

	got, err = s.repo.ListBoosted(s.ctx, ListingFilter{}, baseTime, 0)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *ListingRepositorySuite) TestStatsAndDeleteAll() {
	stats, err := s.repo.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(0), stats.ActiveCount)
	s.Nil(stats.LastUpdated)

	s.insert(models.Listing{ID: "1", CreatedAt: baseTime})
	s.insert(models.Listing{ID: "2", CreatedAt: baseTime.Add(time.Hour)})
	s.insert(models.Listing{ID: "3", CreatedAt: baseTime.Add(2 * time.Hour), Status: models.ListingStatusSold})

	stats, err = s.repo.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), stats.ActiveCount)
	s.Require().NotNil(stats.LastUpdated)

	n, err := s.repo.DeleteAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), n)
}

func (s *ListingRepositorySuite) TestInvalidInput() {
	_, err := s.repo.ListOrganic(s.ctx, ListingQuery{Sort: SortNewest})
	s.ErrorIs(err, ErrInvalidInput)
	s.ErrorIs(s.repo.Create(s.ctx, nil), ErrInvalidInput)
	s.NoError(s.repo.CreateBatch(s.ctx, nil))
}

func TestListingRepositorySuite(t *testing.T) {
	suite.Run(t, new(ListingRepositorySuite))
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, SortPriceLow, ParseSort("price_low"))
	assert.Equal(t, SortPopular, ParseSort(" POPULAR "))
	assert.Equal(t, SortNewest, ParseSort(""))
	assert.Equal(t, SortNewest, ParseSort("random; DROP TABLE listings"))
	assert.True(t, SortOldest.Valid())
	assert.False(t, SortMode("bogus").Valid())
	assert.Equal(t, "created_at DESC, id DESC", SortMode("bogus").OrderClause())
}
