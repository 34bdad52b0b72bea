package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Listing statuses
const (
	ListingStatusActive   = "active"
	ListingStatusInactive = "inactive"
	ListingStatusSold     = "sold"
)

// StringArray is a list of strings persisted as a JSON text column.
// JSON keeps the column portable between PostgreSQL and SQLite.
type StringArray []string

// Scan implements the sql.Scanner interface for reading from database
func (a *StringArray) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported StringArray source %T", value)
	}

	if len(raw) == 0 {
		*a = StringArray{}
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(a))
}

// Value implements the driver.Valuer interface for writing to database
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ListingLocation is the structured location attached to newer listings
type ListingLocation struct {
	CountryCode string `gorm:"type:varchar(8)" json:"countryCode"`
	Region      string `json:"region"`
	City        string `json:"city"`
}

// Listing is a classified ad.
// Older rows carry a flat country/region/city triple instead of the
// structured location; both shapes are read through CityName/CountryCode.
type Listing struct {
	ID          string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title       string  `gorm:"not null" json:"title"`
	Description string  `gorm:"type:text" json:"description"`
	Price       float64 `gorm:"not null;default:0" json:"price"`
	Currency    string  `gorm:"type:varchar(8);default:'EUR'" json:"currency"`

	Location ListingLocation `gorm:"embedded;embeddedPrefix:location_" json:"location"`

	LegacyCountry string `gorm:"column:country" json:"country,omitempty"`
	LegacyRegion  string `gorm:"column:region" json:"region,omitempty"`
	LegacyCity    string `gorm:"column:city" json:"city,omitempty"`

	Category    string      `gorm:"index" json:"category"`
	Subcategory string      `json:"subcategory"`
	Images      StringArray `gorm:"type:text" json:"images"`

	UserID       string `gorm:"index;not null" json:"userId"`
	Status       string `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	IsNegotiable bool   `gorm:"default:false" json:"isNegotiable"`

	IsBoosted      bool       `gorm:"default:false" json:"isBoosted"`
	BoostExpiresAt *time.Time `json:"boostExpiresAt,omitempty"`
	ViewsCount     int        `gorm:"default:0" json:"viewsCount"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ListingSearchDocument is the text Postgres full-text search runs over.
// The GIN index and the search predicate must use the same expression.
const ListingSearchDocument = "coalesce(title, '') || ' ' || coalesce(description, '')"

// TableName specifies the table name for Listing
func (Listing) TableName() string {
	return "listings"
}

// BeforeCreate assigns a UUID when the caller did not
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = ListingStatusActive
	}
	return nil
}

// CityName prefers the structured location and falls back to the legacy column
func (l *Listing) CityName() string {
	if l.Location.City != "" {
		return l.Location.City
	}
	return l.LegacyCity
}

// CountryCode prefers the structured location and falls back to the legacy column
func (l *Listing) CountryCode() string {
	if l.Location.CountryCode != "" {
		return strings.ToUpper(l.Location.CountryCode)
	}
	return strings.ToUpper(l.LegacyCountry)
}

// PrimaryImage returns the first image or "" when the listing has none
func (l *Listing) PrimaryImage() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0]
}

// BoostActive reports whether the boost is still running at now
func (l *Listing) BoostActive(now time.Time) bool {
	return l.IsBoosted && l.BoostExpiresAt != nil && l.BoostExpiresAt.After(now)
}
