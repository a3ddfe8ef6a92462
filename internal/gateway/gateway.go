package gateway

// ConfirmStatus is the gateway's verdict on a card confirmation attempt.
type ConfirmStatus string

const (
	ConfirmSucceeded      ConfirmStatus = "succeeded"
	ConfirmRequiresAction ConfirmStatus = "requires_action"
	ConfirmDeclined       ConfirmStatus = "declined"
)

// CardDetails is the payment method collected by the checkout form.
type CardDetails struct {
	Number   string `json:"number"`
	ExpMonth string `json:"exp_month"`
	ExpYear  string `json:"exp_year"`
	CVC      string `json:"cvc"`
	Holder   string `json:"holder,omitempty"`
}

// ConfirmResult is the outcome of confirming a payment intent. A declined
// card is a result, not a transport error; Message carries the gateway's
// human-readable reason.
type ConfirmResult struct {
	Status          ConfirmStatus
	PaymentIntentID string
	Message         string
}
