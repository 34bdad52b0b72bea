package seed

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/classifieds/backend/internal/cache"
	"github.com/classifieds/backend/internal/feed"
	"github.com/classifieds/backend/internal/logger"
	"github.com/classifieds/backend/internal/models"
	"github.com/classifieds/backend/internal/repository"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// DevListingCount is how many listings SeedDev creates
const DevListingCount = 500

var categories = map[string][]string{
	"electronics": {"phones", "laptops", "audio", "cameras"},
	"vehicles":    {"cars", "motorcycles", "bicycles"},
	"home":        {"furniture", "appliances", "garden"},
	"fashion":     {"shoes", "bags", "watches"},
	"jobs":        {"it", "hospitality"},
}

var currencies = []string{"EUR", "USD", "GBP", "KES"}

// Seeder fills the listings table with fake data
type Seeder struct {
	repo  repository.ListingRepository
	cache cache.Invalidator
	now   func() time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(repo repository.ListingRepository) *Seeder {
	// Seed returns an error only for invalid sources
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{repo: repo, now: time.Now}
}

// SetCache makes every run drop cached feed pages once the table changed
func (s *Seeder) SetCache(inv cache.Invalidator) {
	s.cache = inv
}

// invalidateFeed drops cached first pages; failures are only logged
func (s *Seeder) invalidateFeed(ctx context.Context) {
	if s.cache == nil {
		return
	}
	n, err := s.cache.InvalidatePrefix(ctx, feed.CacheKeyPrefix)
	if err != nil {
		logger.Warn("Failed to invalidate cached feed pages", zap.Error(err))
		return
	}
	logger.Log.Info("Invalidated cached feed pages", zap.Int("count", n))
}

// SeedDev creates a realistic spread of listings: nested and legacy
// locations, URL and inline images, live and expired boosts, inactive rows.
func (s *Seeder) SeedDev(ctx context.Context) error {
	start := time.Now()
	listings := s.Generate(DevListingCount)
	if err := s.repo.CreateBatch(ctx, listings); err != nil {
		return fmt.Errorf("failed to seed listings: %w", err)
	}
	activeBoosts := 0
	for _, l := range listings {
		if l.BoostActive(s.now()) {
			activeBoosts++
		}
	}
	logger.Log.Info("Seeded development listings",
		zap.Int("count", len(listings)),
		zap.Int("active_boosts", activeBoosts),
		logger.WithDuration(time.Since(start)),
	)
	s.invalidateFeed(ctx)
	return nil
}

// SeedTest creates a small fixed data set with known ordering
func (s *Seeder) SeedTest(ctx context.Context) error {
	now := s.now().UTC().Truncate(time.Second)
	live := now.Add(24 * time.Hour)
	expired := now.Add(-24 * time.Hour)

	listing := func(id, title string, price float64, age time.Duration) *models.Listing {
		return &models.Listing{
			ID:        id,
			Title:     title,
			Price:     price,
			Currency:  "EUR",
			Category:  "electronics",
			UserID:    "test-seller",
			Status:    models.ListingStatusActive,
			Location:  models.ListingLocation{CountryCode: "KE", Region: "Nairobi", City: "Nairobi"},
			CreatedAt: now.Add(-age),
			UpdatedAt: now.Add(-age),
		}
	}

	listings := []*models.Listing{
		listing("test-listing-30", "Phone A", 30, time.Hour),
		listing("test-listing-10", "Phone B", 10, 2*time.Hour),
		listing("test-listing-20", "Phone C", 20, 3*time.Hour),
	}

	boosted := listing("test-listing-boosted", "Boosted laptop", 500, 48*time.Hour)
	boosted.IsBoosted = true
	boosted.BoostExpiresAt = &live

	stale := listing("test-listing-expired", "Expired boost", 250, 4*time.Hour)
	stale.IsBoosted = true
	stale.BoostExpiresAt = &expired

	legacy := listing("test-listing-legacy", "Legacy location bike", 90, 5*time.Hour)
	legacy.Category = "vehicles"
	legacy.Location = models.ListingLocation{}
	legacy.LegacyCountry = "ke"
	legacy.LegacyCity = "Mombasa"

	sold := listing("test-listing-sold", "Sold camera", 45, 30*time.Minute)
	sold.Status = models.ListingStatusSold

	listings = append(listings, boosted, stale, legacy, sold)
	if err := s.repo.CreateBatch(ctx, listings); err != nil {
		return fmt.Errorf("failed to seed test listings: %w", err)
	}
	logger.Log.Info("Seeded test listings", zap.Int("count", len(listings)))
	s.invalidateFeed(ctx)
	return nil
}

// Clean removes every listing
func (s *Seeder) Clean(ctx context.Context) error {
	removed, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean listings: %w", err)
	}
	logger.Log.Info("Removed listings", zap.Int64("count", removed))
	s.invalidateFeed(ctx)
	return nil
}

// Generate builds n random listings without storing them
func (s *Seeder) Generate(n int) []*models.Listing {
	now := s.now().UTC().Truncate(time.Second)
	inline := inlineImage()

	listings := make([]*models.Listing, 0, n)
	for i := 0; i < n; i++ {
		category := gofakeit.RandomString(categoryNames())
		createdAt := gofakeit.DateRange(now.AddDate(0, 0, -30), now).UTC().Truncate(time.Second)

		l := &models.Listing{
			Title:        gofakeit.ProductName(),
			Description:  gofakeit.HipsterSentence(),
			Price:        float64(gofakeit.IntRange(1, 5000)),
			Currency:     gofakeit.RandomString(currencies),
			Category:     category,
			Subcategory:  gofakeit.RandomString(categories[category]),
			UserID:       gofakeit.UUID(),
			Status:       models.ListingStatusActive,
			IsNegotiable: gofakeit.Bool(),
			ViewsCount:   gofakeit.IntRange(0, 2000),
			CreatedAt:    createdAt,
			UpdatedAt:    createdAt,
		}

		// About a quarter of the rows only carry the legacy flat location
		if gofakeit.IntRange(0, 3) == 0 {
			l.LegacyCountry = strings.ToLower(gofakeit.CountryAbr())
			l.LegacyRegion = gofakeit.State()
			l.LegacyCity = gofakeit.City()
		} else {
			l.Location = models.ListingLocation{
				CountryCode: gofakeit.CountryAbr(),
				Region:      gofakeit.State(),
				City:        gofakeit.City(),
			}
		}

		switch gofakeit.IntRange(0, 9) {
		case 0:
			// no image
		case 1, 2:
			l.Images = models.StringArray{inline}
		default:
			l.Images = models.StringArray{fmt.Sprintf("https://picsum.photos/seed/%s/800/600", gofakeit.Word())}
		}

		switch gofakeit.IntRange(0, 19) {
		case 0, 1:
			until := now.Add(time.Duration(gofakeit.IntRange(1, 72)) * time.Hour)
			l.IsBoosted = true
			l.BoostExpiresAt = &until
		case 2:
			until := now.Add(-time.Duration(gofakeit.IntRange(1, 72)) * time.Hour)
			l.IsBoosted = true
			l.BoostExpiresAt = &until
		case 3:
			l.Status = models.ListingStatusInactive
		case 4:
			l.Status = models.ListingStatusSold
		}

		listings = append(listings, l)
	}
	return listings
}

func categoryNames() []string {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	return names
}

// inlineImage returns a base64 PNG data URI large enough to need a thumbnail
func inlineImage() string {
	img := imaging.New(640, 480, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
