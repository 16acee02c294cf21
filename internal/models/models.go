package models

import "time"

// Product is one parsed Wildberries catalog item. WBID is the id the item has on
// Wildberries itself and is the upsert match key: re-running a search refreshes
// the existing row instead of inserting a duplicate.
type Product struct {
	ID              uint     `json:"id" gorm:"primaryKey"`
	WBID            int64    `json:"wb_id" gorm:"column:wb_id;uniqueIndex;not null"`
	Name            string   `json:"name" gorm:"size:255;not null"`
	Price           float64  `json:"price" gorm:"type:decimal(10,2)"`
	DiscountedPrice *float64 `json:"discounted_price" gorm:"type:decimal(10,2)"`
	Rating          *float64 `json:"rating"`
	ReviewsCount    int      `json:"reviews_count" gorm:"default:0"`
	SearchQuery     string   `json:"query" gorm:"column:query;size:255;index"`
	URL             string   `json:"url" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "wildberries_products"
}

// SearchResult keeps the raw product array of one search response, as returned by
// the upstream API. Write-only: nothing reads it back, it exists for debugging
// field-mapping issues against what upstream actually sent.
type SearchResult struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	SearchQuery string `json:"search_query" gorm:"size:255;index"`
	Products    string `json:"products" gorm:"type:json"` // raw JSON array stored as string

	CreatedAt time.Time `json:"created_at"`
}

func (SearchResult) TableName() string {
	return "wildberries_search_results"
}
