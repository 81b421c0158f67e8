package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ListingKind string

const (
	KindAccommodation ListingKind = "accommodation"
	KindTour          ListingKind = "tour"
	KindTransport     ListingKind = "transport"
)

func (k ListingKind) Valid() bool {
	switch k {
	case KindAccommodation, KindTour, KindTransport:
		return true
	}
	return false
}

type Listing struct {
	ID          string          `json:"id"`
	SupplierID  string          `json:"supplier_id"`
	Kind        ListingKind     `json:"kind"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	City        string          `json:"city"`
	Country     string          `json:"country"`
	Coords      *Coords         `json:"coords,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Capacity    int             `json:"capacity"`
	Amenities   []string        `json:"amenities,omitempty"`
	Images      []string        `json:"images,omitempty"`
	AvgRating   *float64        `json:"avg_rating,omitempty"`
	ReviewCount int             `json:"review_count"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type ListingInput struct {
	Kind        ListingKind     `json:"kind" validate:"required,oneof=accommodation tour transport"`
	Title       string          `json:"title" validate:"required,min=3,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	City        string          `json:"city" validate:"required,max=120"`
	Country     string          `json:"country" validate:"required,len=2"`
	Lat         *float64        `json:"lat" validate:"omitempty,latitude"`
	Lon         *float64        `json:"lon" validate:"omitempty,longitude"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	Capacity    int             `json:"capacity" validate:"required,min=1,max=10000"`
	Amenities   []string        `json:"amenities" validate:"max=50,dive,max=80"`
	Images      []string        `json:"images" validate:"max=30,dive,url"`
}

type ListingSort string

const (
	SortPriceAsc  ListingSort = "price"
	SortPriceDesc ListingSort = "-price"
	SortRating    ListingSort = "rating"
	SortNewest    ListingSort = "-created_at"
)

type ListingQuery struct {
	Kind      *ListingKind
	City      *string
	Country   *string
	Q         *string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	MinRating *float64
	Guests    int
	From, To  *time.Time
	Sort      ListingSort
	Limit     int
	Offset    int
}

type ListingsPage struct {
	Items  []Listing `json:"items"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}
