package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/classifieds/backend/internal/cache"
	"github.com/classifieds/backend/internal/database"
	"github.com/classifieds/backend/internal/feed"
	"github.com/classifieds/backend/internal/metrics"
	"github.com/classifieds/backend/internal/models"
	"github.com/classifieds/backend/internal/repository"
	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var now = time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)

type FeedHandlersSuite struct {
	suite.Suite
	db       *gorm.DB
	repo     repository.ListingRepository
	store    *cache.MemoryStore
	handlers *Handlers
	router   *gin.Engine
}

func (s *FeedHandlersSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return now },
	})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(database.MigrateDB(db))

	s.db = db
	s.repo = repository.NewListingRepository(db)
	s.store = cache.NewMemoryStore()

	service := feed.NewService(s.repo, feed.NewCursorCodec("test-secret"), feed.WithClock(func() time.Time { return now }))
	s.handlers = NewHandlers(service, feed.NewShaper(nil))
	s.handlers.SetCache(s.store, time.Minute)
	s.handlers.SetDatabase(db)
	s.router = s.newRouter(s.handlers)
}

func (s *FeedHandlersSuite) TearDownTest() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (s *FeedHandlersSuite) newRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.GET("/health", h.HealthCheck)
	h.RegisterFeedRoutes(router.Group("/api/v1"))
	return router
}

func (s *FeedHandlersSuite) add(id string, mutate func(*models.Listing)) {
	l := models.Listing{
		ID:        id,
		Title:     "Listing " + id,
		Price:     100,
		Currency:  "EUR",
		Category:  "electronics",
		UserID:    "seller-1",
		Status:    models.ListingStatusActive,
		CreatedAt: now.Add(-time.Hour),
	}
	if mutate != nil {
		mutate(&l)
	}
	l.UpdatedAt = l.CreatedAt
	s.Require().NoError(s.repo.Create(context.Background(), &l))
}

func (s *FeedHandlersSuite) get(url string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *FeedHandlersSuite) decode(w *httptest.ResponseRecorder) feed.Response {
	var resp feed.Response
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func ids(items []feed.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func (s *FeedHandlersSuite) TestPriceLowExample() {
	s.add("p30", func(l *models.Listing) { l.Price = 30 })
	s.add("p10", func(l *models.Listing) { l.Price = 10 })
	s.add("p20", func(l *models.Listing) { l.Price = 20 })

	w := s.get("/api/v1/feed/listings?category=electronics&sort=price_low&limit=2", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	first := s.decode(w)
	s.Equal([]string{"p10", "p20"}, ids(first.Items))
	s.True(first.HasMore)
	s.Require().NotNil(first.NextCursor)
	s.Equal(int64(3), first.TotalApprox)
	s.Equal("3", w.Header().Get("X-Total-Approx"))

	w = s.get("/api/v1/feed/listings?category=electronics&sort=price_low&limit=2&cursor="+*first.NextCursor, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	second := s.decode(w)
	s.Equal([]string{"p30"}, ids(second.Items))
	s.False(second.HasMore)
	s.Nil(second.NextCursor)
}

func (s *FeedHandlersSuite) TestHitAndMissBodiesAreIdentical() {
	s.add("a", nil)
	s.add("b", func(l *models.Listing) { l.CreatedAt = now.Add(-2 * time.Hour) })

	miss := s.get("/api/v1/feed/listings?limit=5", nil)
	s.Require().Equal(http.StatusOK, miss.Code)
	s.Equal("MISS", miss.Header().Get("X-Cache"))
	s.Equal(1, s.store.Len())

	// a listing created within the TTL is not visible until expiry
	s.add("c", func(l *models.Listing) { l.CreatedAt = now.Add(-time.Minute) })

	hit := s.get("/api/v1/feed/listings?limit=5", nil)
	s.Require().Equal(http.StatusOK, hit.Code)
	s.Equal("HIT", hit.Header().Get("X-Cache"))
	s.Equal(miss.Body.Bytes(), hit.Body.Bytes())
	s.Equal(miss.Header().Get("ETag"), hit.Header().Get("ETag"))
	s.Equal("2", hit.Header().Get("X-Total-Approx"))
	s.Equal("public, max-age=60", hit.Header().Get("Cache-Control"))
	s.NotEmpty(hit.Header().Get("X-Response-Time"))

	// normalized filters share the cache entry
	same := s.get("/api/v1/feed/listings?limit=5&sort=bogus&country=", nil)
	s.Equal("HIT", same.Header().Get("X-Cache"))
}

func (s *FeedHandlersSuite) TestCursorPagesAreNotCached() {
	for _, id := range []string{"a", "b", "c"} {
		s.add(id, nil)
	}

	first := s.decode(s.get("/api/v1/feed/listings?limit=1", nil))
	s.Require().NotNil(first.NextCursor)

	url := "/api/v1/feed/listings?limit=1&cursor=" + *first.NextCursor
	s.Equal("MISS", s.get(url, nil).Header().Get("X-Cache"))
	s.Equal("MISS", s.get(url, nil).Header().Get("X-Cache"))
	s.Equal(1, s.store.Len())
}

func (s *FeedHandlersSuite) TestNotModified() {
	s.add("a", nil)

	w := s.get("/api/v1/feed/listings", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	s.Require().NotEmpty(etag)

	// cache hit
	w = s.get("/api/v1/feed/listings", map[string]string{"If-None-Match": etag})
	s.Equal(http.StatusNotModified, w.Code)
	s.Empty(w.Body.Bytes())
	s.Equal(etag, w.Header().Get("ETag"))
	s.Equal("HIT", w.Header().Get("X-Cache"))

	// without a cache the comparison still happens before the page is built
	s.handlers.SetCache(nil, 0)
	w = s.get("/api/v1/feed/listings", map[string]string{"If-None-Match": `W/"other", ` + etag})
	s.Equal(http.StatusNotModified, w.Code)
	s.Equal("MISS", w.Header().Get("X-Cache"))

	w = s.get("/api/v1/feed/listings", map[string]string{"If-None-Match": `"stale"`})
	s.Equal(http.StatusOK, w.Code)
}

func (s *FeedHandlersSuite) TestBoostedListingsLeadFirstPage() {
	s.add("organic", nil)
	until := now.Add(time.Hour)
	s.add("boosted", func(l *models.Listing) {
		l.IsBoosted = true
		l.BoostExpiresAt = &until
		l.CreatedAt = now.Add(-48 * time.Hour)
	})

	resp := s.decode(s.get("/api/v1/feed/listings?limit=1", nil))
	s.Equal([]string{"boosted", "organic"}, ids(resp.Items))
	s.True(resp.Items[0].IsBoosted)
	s.False(resp.HasMore)
	s.Nil(resp.NextCursor)
}

func (s *FeedHandlersSuite) TestLimitValidation() {
	for _, limit := range []string{"0", "51", "-3", "abc"} {
		w := s.get("/api/v1/feed/listings?limit="+limit, nil)
		s.Equal(http.StatusUnprocessableEntity, w.Code, "limit=%s", limit)

		var body map[string]string
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
		s.Equal("VALIDATION_ERROR", body["code"])
	}

	s.Equal(http.StatusOK, s.get("/api/v1/feed/listings?limit=50", nil).Code)
}

func (s *FeedHandlersSuite) TestStoreFailuresAreMisses() {
	s.add("a", nil)
	s.handlers.SetCache(failingStore{}, time.Minute)

	for i := 0; i < 2; i++ {
		w := s.get("/api/v1/feed/listings", nil)
		s.Require().Equal(http.StatusOK, w.Code)
		s.Equal("MISS", w.Header().Get("X-Cache"))
		s.Equal([]string{"a"}, ids(s.decode(w).Items))
	}
}

func (s *FeedHandlersSuite) TestCachedMeta() {
	s.add("a", nil)
	s.add("sold", func(l *models.Listing) { l.Status = models.ListingStatusSold })

	w := s.get("/api/v1/feed/listings/cached-meta", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var meta feed.Meta
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &meta))
	s.Equal(int64(1), meta.ActiveCount)
	s.Require().NotNil(meta.LastUpdated)
	s.Equal(feed.FormatTime(now.Add(-time.Hour)), *meta.LastUpdated)
	s.Equal(feed.FormatTime(now), meta.ServerTime)
}

func (s *FeedHandlersSuite) TestHealthCheck() {
	w := s.get("/health", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("healthy", body["status"])
	s.Equal("memory", body["cache"])

	s.handlers.SetDatabase(nil)
	s.handlers.SetCache(nil, 0)
	w = s.get("/health", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("none", body["cache"])
	s.Equal("unavailable", body["database"])
}

func (s *FeedHandlersSuite) errorCount(errorType, endpoint string) float64 {
	var pb dto.Metric
	s.Require().NoError(metrics.Get().ErrorsTotal.WithLabelValues(errorType, endpoint).Write(&pb))
	return pb.GetCounter().GetValue()
}

func (s *FeedHandlersSuite) TestDatabaseFailureReturnsInternalError() {
	before := s.errorCount("feed_page", "/api/v1/feed/listings")
	sqlDB, err := s.db.DB()
	s.Require().NoError(err)
	s.Require().NoError(sqlDB.Close())

	w := s.get("/api/v1/feed/listings", nil)
	s.Equal(http.StatusInternalServerError, w.Code)
	s.Contains(w.Body.String(), `"code":"INTERNAL_ERROR"`)
	s.Equal(before+1, s.errorCount("feed_page", "/api/v1/feed/listings"))

	w = s.get("/api/v1/feed/listings/cached-meta", nil)
	s.Equal(http.StatusInternalServerError, w.Code)
}

func (s *FeedHandlersSuite) TestDatabaseTimeoutReturnsServiceUnavailable() {
	s.add("a", nil)
	before := s.errorCount("feed_page", "/api/v1/feed/listings")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed/listings", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Contains(w.Body.String(), `"code":"SERVICE_UNAVAILABLE"`)
	s.Equal(before+1, s.errorCount("feed_page", "/api/v1/feed/listings"))
}

func TestFeedHandlersSuite(t *testing.T) {
	suite.Run(t, new(FeedHandlersSuite))
}

type failingStore struct{}

func (failingStore) Name() string { return "failing" }

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}
