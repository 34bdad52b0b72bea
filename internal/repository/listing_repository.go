package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/classifieds/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// feedColumns is the projection used by every feed query
var feedColumns = []string{
	"id", "title", "price", "currency",
	"location_country_code", "location_region", "location_city",
	"country", "region", "city",
	"category", "subcategory", "images", "user_id", "status",
	"is_negotiable", "is_boosted", "boost_expires_at", "views_count",
	"created_at",
}

// ListingFilter narrows the feed. Empty fields do not filter.
// Location and category values are compared case-insensitively and are
// expected to be lowercase already.
type ListingFilter struct {
	Country     string
	Region      string
	City        string
	Category    string
	Subcategory string
	SellerID    string
	Search      string
}

// Keyset identifies the last row of a previous page
type Keyset struct {
	Key       float64 // price or views for keyed sorts
	CreatedAt time.Time
	ID        string
}

// ListingQuery is one organic feed page request
type ListingQuery struct {
	Filter     ListingFilter
	Sort       SortMode
	After      *Keyset
	ExcludeIDs []string
	Limit      int
}

// FeedStats summarises active listings
type FeedStats struct {
	ActiveCount int64
	LastUpdated *time.Time
}

// ListingRepository handles all database operations for listings
type ListingRepository interface {
	// Feed reads
	ListOrganic(ctx context.Context, q ListingQuery) ([]models.Listing, error)
	ListBoosted(ctx context.Context, f ListingFilter, now time.Time, limit int) ([]models.Listing, error)
	Count(ctx context.Context, f ListingFilter) (int64, error)
	Stats(ctx context.Context) (FeedStats, error)

	// Writes used by seeding and tooling
	Create(ctx context.Context, listing *models.Listing) error
	CreateBatch(ctx context.Context, listings []*models.Listing) error
	DeleteAll(ctx context.Context) (int64, error)
}

// listingRepository implements ListingRepository interface
type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

// ListOrganic returns up to q.Limit active listings after q.After in q.Sort order
func (r *listingRepository) ListOrganic(ctx context.Context, q ListingQuery) ([]models.Listing, error) {
	if q.Limit <= 0 {
		return nil, ErrInvalidInput
	}

	tx := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Select(feedColumns).
		Scopes(r.filterScope(q.Filter))

	if len(q.ExcludeIDs) > 0 {
		tx = tx.Where("id NOT IN ?", q.ExcludeIDs)
	}
	if q.After != nil {
		cond, args := q.Sort.afterPredicate(*q.After)
		tx = tx.Where(cond, args...)
	}

	var listings []models.Listing
	err := tx.Order(q.Sort.OrderClause()).Limit(q.Limit).Find(&listings).Error
	return listings, err
}

// ListBoosted returns active listings whose boost is still running at now
func (r *listingRepository) ListBoosted(ctx context.Context, f ListingFilter, now time.Time, limit int) ([]models.Listing, error) {
	if limit <= 0 {
		return nil, nil
	}

	var listings []models.Listing
	err := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Select(feedColumns).
		Scopes(r.filterScope(f)).
		Where("is_boosted = ? AND boost_expires_at IS NOT NULL AND boost_expires_at > ?", true, now).
		Order("boost_expires_at DESC, id DESC").
		Limit(limit).
		Find(&listings).Error
	return listings, err
}

// Count returns the number of active listings matching f
func (r *listingRepository) Count(ctx context.Context, f ListingFilter) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Scopes(r.filterScope(f)).
		Count(&count).Error
	return count, err
}

// Stats returns the active listing count and the latest update time
func (r *listingRepository) Stats(ctx context.Context) (FeedStats, error) {
	var stats FeedStats

	db := r.db.WithContext(ctx).Model(&models.Listing{}).Where("status = ?", models.ListingStatusActive)
	if err := db.Count(&stats.ActiveCount).Error; err != nil {
		return stats, err
	}
	if stats.ActiveCount == 0 {
		return stats, nil
	}

	var latest models.Listing
	err := r.db.WithContext(ctx).
		Select("updated_at").
		Where("status = ?", models.ListingStatusActive).
		Order("updated_at DESC").
		Limit(1).
		Find(&latest).Error
	if err != nil {
		return stats, err
	}
	if !latest.UpdatedAt.IsZero() {
		t := latest.UpdatedAt.UTC()
		stats.LastUpdated = &t
	}
	return stats, nil
}

// Create inserts a listing
func (r *listingRepository) Create(ctx context.Context, listing *models.Listing) error {
	if listing == nil {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(listing).Error
}

// CreateBatch inserts listings in chunks of 100
func (r *listingRepository) CreateBatch(ctx context.Context, listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(listings, 100).Error
}

// DeleteAll hard deletes every listing
func (r *listingRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Unscoped().
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Listing{})
	return res.RowsAffected, res.Error
}

// filterScope applies the active status and every non-empty filter field
func (r *listingRepository) filterScope(f ListingFilter) func(*gorm.DB) *gorm.DB {
	postgres := r.db.Dialector.Name() == "postgres"

	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("status = ?", models.ListingStatusActive)

		// Structured location first, legacy flat columns as fallback
		if f.Country != "" {
			db = db.Where("(LOWER(location_country_code) = ? OR LOWER(country) = ?)", f.Country, f.Country)
		}
		if f.Region != "" {
			db = db.Where("(LOWER(location_region) = ? OR LOWER(region) = ?)", f.Region, f.Region)
		}
		if f.City != "" {
			db = db.Where("(LOWER(location_city) = ? OR LOWER(city) = ?)", f.City, f.City)
		}

		if f.Category != "" {
			db = db.Where("LOWER(category) = ?", f.Category)
		}
		if f.Subcategory != "" {
			db = db.Where("LOWER(subcategory) = ?", f.Subcategory)
		}
		if f.SellerID != "" {
			db = db.Where("user_id = ?", f.SellerID)
		}

		if f.Search != "" {
			if postgres {
				db = db.Where("to_tsvector('simple', "+models.ListingSearchDocument+") @@ plainto_tsquery('simple', ?)", f.Search)
			} else {
				pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
				db = db.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
			}
		}
		return db
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
