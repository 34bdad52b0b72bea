// Package feed builds the instant listings feed: filtering, keyset
// pagination, boosted injection and response shaping.
package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/classifieds/backend/internal/repository"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50

	// CacheKeyPrefix namespaces feed pages in the response cache
	CacheKeyPrefix = "feed:listings:"
)

// SortMode orders the organic part of the feed
type SortMode = repository.SortMode

// ParseSort maps a query value to a sort mode; unknown values mean newest
func ParseSort(s string) SortMode {
	return repository.ParseSort(s)
}

// Params is a feed request
type Params struct {
	Country     string
	Region      string
	City        string
	Category    string
	Subcategory string
	Sort        string
	Cursor      string
	Limit       int
	SellerID    string
	Search      string
}

// Normalize returns a copy with trimmed, lowercased filters, a known sort
// and a limit within 1..50
func (p Params) Normalize() Params {
	n := Params{
		Country:     lower(p.Country),
		Region:      lower(p.Region),
		City:        lower(p.City),
		Category:    lower(p.Category),
		Subcategory: lower(p.Subcategory),
		Sort:        string(ParseSort(p.Sort)),
		Cursor:      strings.TrimSpace(p.Cursor),
		Limit:       p.Limit,
		SellerID:    strings.TrimSpace(p.SellerID),
		Search:      strings.Join(strings.Fields(p.Search), " "),
	}

	switch {
	case n.Limit == 0:
		n.Limit = DefaultLimit
	case n.Limit < 1:
		n.Limit = 1
	case n.Limit > MaxLimit:
		n.Limit = MaxLimit
	}
	return n
}

// SortMode returns the parsed sort
func (p Params) SortMode() SortMode {
	return ParseSort(p.Sort)
}

// Filter converts the params into a repository filter
func (p Params) Filter() repository.ListingFilter {
	return repository.ListingFilter{
		Country:     p.Country,
		Region:      p.Region,
		City:        p.City,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		SellerID:    p.SellerID,
		Search:      p.Search,
	}
}

// FilterHash fingerprints the filter set a cursor was issued for
func (p Params) FilterHash() string {
	return digest(p.Country, p.Region, p.City, p.Category, p.Subcategory, p.SellerID, p.Search)[:16]
}

// CacheKey identifies the first page for these params. The cursor is not part of it.
func (p Params) CacheKey() string {
	return CacheKeyPrefix + digest(
		p.Country, p.Region, p.City, p.Category, p.Subcategory,
		p.Sort, strconv.Itoa(p.Limit), p.SellerID, p.Search,
	)
}

// ETag is a strong validator derived from every response-affecting param
func (p Params) ETag() string {
	return `"` + digest(
		p.Country, p.Region, p.City, p.Category, p.Subcategory,
		p.Sort, p.Cursor, strconv.Itoa(p.Limit), p.SellerID, p.Search,
	) + `"`
}

// ETagMatches reports whether an If-None-Match header matches etag.
// Handles "*", comma separated lists and weak validators.
func ETagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" || etag == "" {
		return false
	}
	if header == "*" {
		return true
	}

	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == want {
			return true
		}
	}
	return false
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// digest hashes the parts with a separator that cannot occur in query values
func digest(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
