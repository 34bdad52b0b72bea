package repository

import (
	"fmt"
	"strings"

	"github.com/classifieds/backend/internal/models"
)

// SortMode orders feed results
type SortMode string

const (
	SortNewest    SortMode = "newest"
	SortOldest    SortMode = "oldest"
	SortPriceLow  SortMode = "price_low"
	SortPriceHigh SortMode = "price_high"
	SortPopular   SortMode = "popular"
)

// sortClauses whitelists ORDER BY clauses so user input never reaches SQL.
// Every clause ends on id to make the order total.
var sortClauses = map[SortMode]string{
	SortNewest:    "created_at DESC, id DESC",
	SortOldest:    "created_at ASC, id ASC",
	SortPriceLow:  "price ASC, created_at DESC, id DESC",
	SortPriceHigh: "price DESC, created_at DESC, id DESC",
	SortPopular:   "views_count DESC, created_at DESC, id DESC",
}

// ParseSort maps a query value to a sort mode. Unknown values mean newest.
func ParseSort(s string) SortMode {
	mode := SortMode(strings.ToLower(strings.TrimSpace(s)))
	if mode.Valid() {
		return mode
	}
	return SortNewest
}

// Valid reports whether s is a known sort mode
func (s SortMode) Valid() bool {
	_, ok := sortClauses[s]
	return ok
}

// OrderClause returns the whitelisted ORDER BY clause
func (s SortMode) OrderClause() string {
	if clause, ok := sortClauses[s]; ok {
		return clause
	}
	return sortClauses[SortNewest]
}

// KeyOf returns the primary sort key of l for keyed modes, 0 otherwise
func (s SortMode) KeyOf(l *models.Listing) float64 {
	switch s {
	case SortPriceLow, SortPriceHigh:
		return l.Price
	case SortPopular:
		return float64(l.ViewsCount)
	default:
		return 0
	}
}

// KeysetOf returns the keyset position of l under s
func (s SortMode) KeysetOf(l *models.Listing) Keyset {
	return Keyset{Key: s.KeyOf(l), CreatedAt: l.CreatedAt, ID: l.ID}
}

func (s SortMode) keyColumn() string {
	switch s {
	case SortPriceLow, SortPriceHigh:
		return "price"
	case SortPopular:
		return "views_count"
	default:
		return ""
	}
}

// afterPredicate returns the keyset condition selecting rows strictly after k
func (s SortMode) afterPredicate(k Keyset) (string, []interface{}) {
	switch s {
	case SortOldest:
		return "(created_at > ? OR (created_at = ? AND id > ?))",
			[]interface{}{k.CreatedAt, k.CreatedAt, k.ID}

	case SortPriceLow, SortPriceHigh, SortPopular:
		col := s.keyColumn()
		cmp := "<"
		if s == SortPriceLow {
			cmp = ">"
		}
		var key interface{} = k.Key
		if s == SortPopular {
			key = int64(k.Key)
		}
		cond := fmt.Sprintf("(%[1]s %[2]s ? OR (%[1]s = ? AND created_at < ?) OR (%[1]s = ? AND created_at = ? AND id < ?))", col, cmp)
		return cond, []interface{}{key, key, k.CreatedAt, key, k.CreatedAt, k.ID}

	default:
		return "(created_at < ? OR (created_at = ? AND id < ?))",
			[]interface{}{k.CreatedAt, k.CreatedAt, k.ID}
	}
}
