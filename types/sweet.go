package types

import "time"

// Sweet is a single catalog item.
type Sweet struct {
	// ID is the unique, opaque identifier of the item (UUID string).
	ID string `json:"id" db:"id"`

	// Name is the display name of the sweet. Must be non-empty.
	Name string `json:"name" db:"name"`

	// Category groups sweets for browsing and search (e.g. "chocolate").
	Category string `json:"category" db:"category"`

	// Price is the unit price. Must be strictly positive.
	Price float64 `json:"price" db:"price"`

	// Quantity is the stock on hand. Never negative.
	Quantity int `json:"quantity" db:"quantity"`

	// ImageKey is the object-storage key of the product image, empty when
	// no image has been uploaded. Not part of the public payload.
	ImageKey string `json:"-" db:"image_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SweetFilter holds the search parameters for the catalog. Zero values mean
// "no constraint" except PriceMax, which callers default explicitly.
type SweetFilter struct {
	Name     string
	Category string
	PriceMin float64
	PriceMax float64
}

// SweetUpdate carries a partial update; nil fields are left untouched.
type SweetUpdate struct {
	Name     *string
	Category *string
	Price    *float64
	Quantity *int
}
