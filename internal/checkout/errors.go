package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutInProgress = errors.New("a checkout is already in progress for this session")
	ErrIllegalTransition  = errors.New("illegal transition of checkout status")
)

// ValidationError means the customer input was rejected before any network
// call was made. Always safe to retry after fixing the field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// OrderCreationError means the Order API refused or failed to open the
// pending order. Nothing was charged; the cart is intact and the whole
// checkout can be retried.
type OrderCreationError struct {
	Err error
}

func (e *OrderCreationError) Error() string {
	return fmt.Sprintf("could not create order: %v", e.Err)
}

func (e *OrderCreationError) Unwrap() error { return e.Err }

// PaymentDeclinedError carries the gateway's reason for refusing the charge.
// The cart is intact; retrying with another payment method is safe. A
// transport failure during confirmation is reported under this kind too, with
// a message stating the charge outcome is unknown rather than declined.
type PaymentDeclinedError struct {
	Message string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Message)
}

// ConfirmationSyncError means the gateway charged the customer but the Order
// API could not be told. The order is paid-but-unconfirmed; restarting the
// checkout would charge the card a second time, so this is surfaced apart
// from ordinary failures and finalization is retried in the background.
type ConfirmationSyncError struct {
	OrderID         string
	PaymentIntentID string
	Err             error
}

func (e *ConfirmationSyncError) Error() string {
	return fmt.Sprintf("payment for order %s was captured but the order could not be confirmed: %v",
		e.OrderID, e.Err)
}

func (e *ConfirmationSyncError) Unwrap() error { return e.Err }
