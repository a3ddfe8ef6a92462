package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product in a cart. Name, price and presentation fields are
// snapshotted from the catalog at the moment the product is added; they are
// not re-fetched at checkout.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
	Duration  string          `json:"duration,omitempty"`
}

// Subtotal returns unit price times quantity at full precision.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds the lines for one browsing session. Lines keep insertion order,
// unique by ProductID.
type Cart struct {
	SessionID string     `json:"session_id"`
	Lines     []CartLine `json:"lines"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
