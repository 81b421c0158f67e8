package domain

import "time"

type Review struct {
	ID        string    `json:"id" db:"id"`
	ListingID string    `json:"listing_id" db:"listing_id"`
	BookingID string    `json:"booking_id" db:"booking_id"`
	TouristID string    `json:"tourist_id" db:"tourist_id"`
	Rating    int       `json:"rating" db:"rating"`
	Title     *string   `json:"title,omitempty" db:"title"`
	Text      *string   `json:"text,omitempty" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type ReviewInput struct {
	BookingID string  `json:"booking_id" validate:"required,uuid"`
	Rating    int     `json:"rating" validate:"required,min=1,max=5"`
	Title     *string `json:"title" validate:"omitempty,max=200"`
	Text      *string `json:"text" validate:"omitempty,max=5000"`
}

type PageQuery struct {
	Limit  int
	Cursor *string
}

type ReviewsPage struct {
	Items      []Review `json:"items"`
	NextCursor *string  `json:"next_cursor,omitempty"`
}
