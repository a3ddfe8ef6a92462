package domain

import "github.com/shopspring/decimal"

// Product mirrors the catalog entries served by the backend API.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url,omitempty"`
	IsActive    bool            `json:"is_active"`
	Features    []string        `json:"features,omitempty"`
	Duration    string          `json:"duration,omitempty"`
	Stock       *int            `json:"stock,omitempty"`
}
