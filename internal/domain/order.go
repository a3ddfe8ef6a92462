package domain

import "github.com/shopspring/decimal"

// Customer is the buyer information collected at checkout.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// OrderDraftItem is one line of an order draft, priced as snapshotted in the cart.
type OrderDraftItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

// OrderDraft is the immutable snapshot of a cart plus customer info sent to the
// Order API to open a pending order.
type OrderDraft struct {
	Customer Customer         `json:"customer"`
	Items    []OrderDraftItem `json:"items"`
	Currency string           `json:"currency"`
}

// Total sums unit price times quantity over all items at full precision.
func (d OrderDraft) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// PaymentIntent is returned by the Order API when a pending order is created.
// ClientSecret is opaque and consumed exactly once by the payment gateway.
type PaymentIntent struct {
	ClientSecret string
	OrderID      string
	Amount       decimal.Decimal
}
