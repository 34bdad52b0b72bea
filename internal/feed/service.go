package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/classifieds/backend/internal/models"
	"github.com/classifieds/backend/internal/repository"
	"github.com/classifieds/backend/internal/telemetry"
)

// DefaultBoostLimit caps the boosted block on the first page
const DefaultBoostLimit = 5

// Page is one assembled feed page before shaping
type Page struct {
	Boosted     []models.Listing
	Organic     []models.Listing
	NextCursor  string
	HasMore     bool
	TotalApprox int64
}

// Meta summarises the active listing set for clients deciding whether to refetch
type Meta struct {
	LastUpdated *string `json:"lastUpdated"`
	ActiveCount int64   `json:"activeCount"`
	ServerTime  string  `json:"serverTime"`
}

// Service computes feed pages
type Service struct {
	repo       repository.ListingRepository
	cursors    *CursorCodec
	boostLimit int
	now        func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithBoostLimit overrides how many boosted listings lead the first page
func WithBoostLimit(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.boostLimit = n
		}
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a feed service
func NewService(repo repository.ListingRepository, cursors *CursorCodec, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		cursors:    cursors,
		boostLimit: DefaultBoostLimit,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock in UTC
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// Page builds the page for p, which must already be normalized.
//
// Boosted listings lead the first page only. They are left out of the
// organic results on every page, so a full traversal never repeats an id,
// and they do not count toward the limit or hasMore.
func (s *Service) Page(ctx context.Context, p Params) (*Page, error) {
	sort := p.SortMode()
	filter := p.Filter()
	filterHash := p.FilterHash()

	cursor, hasCursor := s.cursors.Decode(p.Cursor, sort, filterHash)

	ctx, span := telemetry.TraceFeedPage(ctx, telemetry.FeedPageAttrs{
		Sort:      string(sort),
		Limit:     p.Limit,
		HasCursor: hasCursor,
		Search:    p.Search != "",
	})
	defer span.End()

	boosted, err := s.repo.ListBoosted(ctx, filter, s.Now(), s.boostLimit)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("query boosted listings: %w", err)
	}

	exclude := make([]string, 0, len(boosted))
	for _, l := range boosted {
		exclude = append(exclude, l.ID)
	}

	query := repository.ListingQuery{
		Filter:     filter,
		Sort:       sort,
		ExcludeIDs: exclude,
		Limit:      p.Limit + 1,
	}
	if hasCursor {
		k := cursor.Keyset()
		query.After = &k
	}

	organic, err := s.repo.ListOrganic(ctx, query)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("query organic listings: %w", err)
	}

	page := &Page{}
	if len(organic) > p.Limit {
		page.HasMore = true
		organic = organic[:p.Limit]
	}
	page.Organic = organic

	if !hasCursor {
		page.Boosted = boosted
	}

	if page.HasMore && len(organic) > 0 {
		k := sort.KeysetOf(&organic[len(organic)-1])
		next := Cursor{
			Sort:      sort,
			Key:       k.Key,
			CreatedAt: k.CreatedAt,
			ID:        k.ID,
			Filter:    filterHash,
		}
		page.NextCursor = s.cursors.Encode(next)
	}

	if page.TotalApprox, err = s.repo.Count(ctx, filter); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("count listings: %w", err)
	}

	telemetry.RecordFeedPage(span, len(page.Boosted), len(page.Organic), page.HasMore)
	return page, nil
}

// Meta reports the active listing count and the last time one changed
func (s *Service) Meta(ctx context.Context) (*Meta, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stats: %w", err)
	}

	meta := &Meta{
		ActiveCount: stats.ActiveCount,
		ServerTime:  FormatTime(s.Now()),
	}
	if stats.LastUpdated != nil {
		ts := FormatTime(*stats.LastUpdated)
		meta.LastUpdated = &ts
	}
	return meta, nil
}

// FormatTime renders timestamps the way feed clients expect them
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
