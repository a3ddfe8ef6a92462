package domain

type CheckoutStatus string

const (
	CheckoutStatusIdle             CheckoutStatus = "IDLE"
	CheckoutStatusSubmitting       CheckoutStatus = "SUBMITTING"
	CheckoutStatusAwaitingPayment  CheckoutStatus = "AWAITING_PAYMENT_CONFIRMATION"
	CheckoutStatusPaymentCompleted CheckoutStatus = "PAYMENT_COMPLETED"
	CheckoutStatusSucceeded        CheckoutStatus = "SUCCEEDED"
	CheckoutStatusFailed           CheckoutStatus = "FAILED"
)

// validTransitions lists the legal next statuses for each status. A checkout
// that charged the card but has not finalized on the backend stays in
// PAYMENT_COMPLETED until the finalize lands; it never goes back to FAILED,
// since retrying from scratch would charge the customer twice.
var validTransitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusIdle:             {CheckoutStatusSubmitting},
	CheckoutStatusSubmitting:       {CheckoutStatusAwaitingPayment, CheckoutStatusFailed},
	CheckoutStatusAwaitingPayment:  {CheckoutStatusPaymentCompleted, CheckoutStatusFailed},
	CheckoutStatusPaymentCompleted: {CheckoutStatusSucceeded},
	CheckoutStatusSucceeded:        {},
	CheckoutStatusFailed:           {},
}

func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusSucceeded || s == CheckoutStatusFailed
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}
