package feed

import (
	"github.com/classifieds/backend/internal/models"
)

// Item is the projection of a listing sent to feed clients
type Item struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	CityName     string  `json:"cityName"`
	CountryCode  string  `json:"countryCode"`
	Category     string  `json:"category"`
	Subcategory  string  `json:"subcategory"`
	ThumbURL     *string `json:"thumbUrl"`
	CreatedAt    string  `json:"createdAt"`
	IsBoosted    bool    `json:"isBoosted"`
	SellerID     string  `json:"sellerId"`
	ViewsCount   int     `json:"viewsCount"`
	IsNegotiable bool    `json:"isNegotiable"`
}

// Response is the feed endpoint body
type Response struct {
	Items       []Item  `json:"items"`
	NextCursor  *string `json:"nextCursor"`
	TotalApprox int64   `json:"totalApprox"`
	ServerTime  string  `json:"serverTime"`
	HasMore     bool    `json:"hasMore"`
}

// Thumbnailer shrinks a listing image for embedding
type Thumbnailer interface {
	Thumbnail(image string) string
}

// Shaper turns pages into client items
type Shaper struct {
	thumbs Thumbnailer
}

// NewShaper creates a shaper; thumbs may be nil to embed images unchanged
func NewShaper(thumbs Thumbnailer) *Shaper {
	return &Shaper{thumbs: thumbs}
}

// Items returns the boosted block followed by the organic results
func (s *Shaper) Items(page *Page) []Item {
	items := make([]Item, 0, len(page.Boosted)+len(page.Organic))
	for i := range page.Boosted {
		items = append(items, s.item(&page.Boosted[i], true))
	}
	for i := range page.Organic {
		items = append(items, s.item(&page.Organic[i], false))
	}
	return items
}

// Response assembles the body for page at serverTime
func (s *Shaper) Response(page *Page, serverTime string) Response {
	resp := Response{
		Items:       s.Items(page),
		TotalApprox: page.TotalApprox,
		ServerTime:  serverTime,
		HasMore:     page.HasMore,
	}
	if page.NextCursor != "" {
		next := page.NextCursor
		resp.NextCursor = &next
	}
	return resp
}

func (s *Shaper) item(l *models.Listing, boosted bool) Item {
	item := Item{
		ID:           l.ID,
		Title:        l.Title,
		Price:        l.Price,
		Currency:     l.Currency,
		CityName:     l.CityName(),
		CountryCode:  l.CountryCode(),
		Category:     l.Category,
		Subcategory:  l.Subcategory,
		CreatedAt:    FormatTime(l.CreatedAt),
		IsBoosted:    boosted,
		SellerID:     l.UserID,
		ViewsCount:   l.ViewsCount,
		IsNegotiable: l.IsNegotiable,
	}

	if img := l.PrimaryImage(); img != "" {
		if s.thumbs != nil {
			img = s.thumbs.Thumbnail(img)
		}
		item.ThumbURL = &img
	}
	return item
}
