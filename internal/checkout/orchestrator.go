package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iCADcl/IDEFWeb/internal/cart"
	"github.com/iCADcl/IDEFWeb/internal/domain"
	"github.com/iCADcl/IDEFWeb/internal/gateway"
	"github.com/iCADcl/IDEFWeb/internal/repository"
)

const currency = "USD"

// OrderAPI is the slice of the backend Order API the orchestrator drives:
// open a pending order, and confirm it once the gateway has charged.
type OrderAPI interface {
	CreatePaymentIntent(ctx context.Context, draft domain.OrderDraft) (*domain.PaymentIntent, error)
	ConfirmOrder(ctx context.Context, orderID, paymentIntentID string) error
}

// PaymentGateway charges the payment intent named by a client secret.
type PaymentGateway interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, card gateway.CardDetails) (*gateway.ConfirmResult, error)
}

// Request is all the input for one checkout run. IdempotencyKey is optional;
// when the caller supplies one, a replay returns the recorded outcome
// instead of re-running the protocol.
type Request struct {
	SessionID      string
	Customer       domain.Customer
	Card           gateway.CardDetails
	IdempotencyKey string
}

// Result is the outcome exposed to the caller on a non-error return.
type Result struct {
	CheckoutID string
	OrderID    string
	Status     domain.CheckoutStatus
}

// Orchestrator sequences the payment protocol: validate, create the payment
// intent, confirm the charge on the gateway, finalize on the backend, then
// clear the cart. At most one checkout runs per session at a time.
type Orchestrator struct {
	mu       sync.Mutex
	inFlight map[string]struct{}

	repo    repository.RepoInterface
	orders  OrderAPI
	gateway PaymentGateway
	log     *zap.Logger
}

func NewOrchestrator(repo repository.RepoInterface, orders OrderAPI, gw PaymentGateway, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		inFlight: make(map[string]struct{}),
		repo:     repo,
		orders:   orders,
		gateway:  gw,
		log:      log,
	}
}

// Checkout runs the full protocol against the given cart store. The cart is
// only cleared after the backend confirmation succeeds; every failure before
// that leaves the cart intact so the user can retry.
func (o *Orchestrator) Checkout(ctx context.Context, store *cart.Store, req Request) (*Result, error) {
	if err := o.begin(req.SessionID); err != nil {
		return nil, err
	}
	defer o.end(req.SessionID)

	// Step 1: validate before any network call.
	if err := validateCustomer(req.Customer); err != nil {
		return nil, err
	}

	lines := store.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Replay detection: a repeated idempotency key returns the recorded
	// outcome instead of running the protocol again.
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	} else if result, found, err := o.replay(ctx, key); err != nil {
		return nil, err
	} else if found {
		return result, nil
	}

	session, err := o.createSession(ctx, key, req, lines)
	if err != nil {
		return nil, err
	}
	status := session.Status

	// Step 2: open the pending order and get the payment intent.
	draft := buildDraft(req.Customer, lines)
	intent, err := o.orders.CreatePaymentIntent(ctx, draft)
	if err != nil {
		o.fail(ctx, session.ID, status)
		return nil, &OrderCreationError{Err: err}
	}

	if err := o.advance(ctx, session, &status, domain.CheckoutStatusAwaitingPayment, func(c context.Context) error {
		return o.repo.SetOrder(c, session.ID, intent.OrderID, domain.CheckoutStatusAwaitingPayment)
	}); err != nil {
		return nil, err
	}
	o.log.Info("payment intent created",
		zap.String("checkout_id", session.ID),
		zap.String("order_id", intent.OrderID),
		zap.String("amount", draft.Total().StringFixed(2)))

	// Step 3: hand the client secret and card to the gateway.
	confirm, err := o.gateway.ConfirmCardPayment(ctx, intent.ClientSecret, req.Card)
	if err != nil {
		// A transport failure leaves the charge outcome unknown; the
		// message must not claim the card was declined.
		o.fail(ctx, session.ID, status)
		return nil, &PaymentDeclinedError{Message: fmt.Sprintf(
			"the payment could not be processed and its outcome is unknown, verify the charge before paying again: %v", err)}
	}
	if confirm.Status != gateway.ConfirmSucceeded {
		o.fail(ctx, session.ID, status)
		return nil, &PaymentDeclinedError{Message: confirm.Message}
	}

	// From here on the customer is charged: every failure, including a
	// failed local update, is a sync problem, never a reason to re-run the
	// protocol. The outbox poller keeps retrying the confirmation.
	syncFailure := func(err error) error {
		return &ConfirmationSyncError{
			OrderID:         intent.OrderID,
			PaymentIntentID: confirm.PaymentIntentID,
			Err:             err,
		}
	}

	if err := o.advance(ctx, session, &status, domain.CheckoutStatusPaymentCompleted, func(c context.Context) error {
		return o.repo.SetPayment(c, session.ID, domain.CheckoutStatusPaymentCompleted, confirm.PaymentIntentID)
	}); err != nil {
		o.log.Error("failed to record payment after charge",
			zap.String("checkout_id", session.ID),
			zap.String("order_id", intent.OrderID),
			zap.String("payment_intent_id", confirm.PaymentIntentID),
			zap.Error(err))
		return nil, syncFailure(err)
	}

	// Step 4: finalize on the backend.
	if err := o.orders.ConfirmOrder(ctx, intent.OrderID, confirm.PaymentIntentID); err != nil {
		o.log.Error("order confirmation failed after charge",
			zap.String("checkout_id", session.ID),
			zap.String("order_id", intent.OrderID),
			zap.String("payment_intent_id", confirm.PaymentIntentID),
			zap.Error(err))
		return nil, syncFailure(err)
	}

	// Step 5: record completion (staging the outbox event) and clear the cart.
	payload, err := completionPayload(session.ID, req.SessionID, intent.OrderID, lines)
	if err != nil {
		return nil, syncFailure(err)
	}
	if !domain.CanTransitionTo(status, domain.CheckoutStatusSucceeded) {
		return nil, syncFailure(ErrIllegalTransition)
	}
	if err := o.repo.CompleteCheckoutSession(ctx, session.ID, payload, domain.CheckoutStatusSucceeded); err != nil {
		return nil, syncFailure(err)
	}

	if err := store.Clear(ctx); err != nil {
		// The order is confirmed; a stale cart blob is a cosmetic problem.
		o.log.Warn("failed to clear cart after checkout",
			zap.String("session_id", req.SessionID), zap.Error(err))
	}

	o.log.Info("checkout succeeded",
		zap.String("checkout_id", session.ID),
		zap.String("order_id", intent.OrderID))

	return &Result{
		CheckoutID: session.ID,
		OrderID:    intent.OrderID,
		Status:     domain.CheckoutStatusSucceeded,
	}, nil
}

func (o *Orchestrator) begin(sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[sessionID]; busy {
		return ErrCheckoutInProgress
	}
	o.inFlight[sessionID] = struct{}{}
	return nil
}

func (o *Orchestrator) end(sessionID string) {
	o.mu.Lock()
	delete(o.inFlight, sessionID)
	o.mu.Unlock()
}

func (o *Orchestrator) replay(ctx context.Context, key string) (*Result, bool, error) {
	existing, err := o.repo.GetSessionByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrIdempotencyKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to check idempotency: %w", err)
	}

	o.log.Info("duplicate checkout request",
		zap.String("idempotency_key", key),
		zap.String("checkout_id", existing.ID),
		zap.String("status", existing.Status.String()))

	result := &Result{CheckoutID: existing.ID, Status: existing.Status}
	if existing.OrderID != nil {
		result.OrderID = *existing.OrderID
	}
	return result, true, nil
}

func (o *Orchestrator) createSession(ctx context.Context, key string, req Request, lines []domain.CartLine) (*repository.CheckoutSession, error) {
	snapshot, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}
	customer, err := json.Marshal(req.Customer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal customer: %w", err)
	}

	session := &repository.CheckoutSession{
		ID:             uuid.NewString(),
		IdempotencyKey: key,
		SessionID:      req.SessionID,
		Status:         domain.CheckoutStatusSubmitting,
		CartSnapshot:   snapshot,
		Customer:       customer,
	}
	if err := o.repo.CreateCheckoutSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session, nil
}

// advance checks the transition is legal, applies the repository update and
// tracks the in-memory status.
func (o *Orchestrator) advance(ctx context.Context, session *repository.CheckoutSession, status *domain.CheckoutStatus, next domain.CheckoutStatus, update func(context.Context) error) error {
	if !domain.CanTransitionTo(*status, next) {
		return ErrIllegalTransition
	}
	if err := update(ctx); err != nil {
		return fmt.Errorf("failed to advance checkout to %s: %w", next, err)
	}
	*status = next
	return nil
}

// fail moves the session to FAILED, logging but not propagating repository
// errors: the caller already has the checkout failure to report.
func (o *Orchestrator) fail(ctx context.Context, checkoutID string, from domain.CheckoutStatus) {
	if !domain.CanTransitionTo(from, domain.CheckoutStatusFailed) {
		return
	}
	if err := o.repo.UpdateCheckoutSessionStatus(ctx, checkoutID, domain.CheckoutStatusFailed); err != nil {
		o.log.Warn("failed to mark checkout session failed",
			zap.String("checkout_id", checkoutID), zap.Error(err))
	}
}

func validateCustomer(c domain.Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "customer_name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.Email) == "" {
		return &ValidationError{Field: "customer_email", Reason: "must not be empty"}
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return &ValidationError{Field: "customer_email", Reason: "must be a well-formed email address"}
	}
	return nil
}

func buildDraft(customer domain.Customer, lines []domain.CartLine) domain.OrderDraft {
	draft := domain.OrderDraft{
		Customer: customer,
		Items:    make([]domain.OrderDraftItem, 0, len(lines)),
		Currency: currency,
	}
	for _, line := range lines {
		draft.Items = append(draft.Items, domain.OrderDraftItem{
			ProductID:   line.ProductID,
			ProductName: line.Name,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
		})
	}
	return draft
}

func completionPayload(checkoutID, sessionID, orderID string, lines []domain.CartLine) ([]byte, error) {
	total := decimalTotal(lines)
	payload := map[string]interface{}{
		"checkout_id":  checkoutID,
		"session_id":   sessionID,
		"order_id":     orderID,
		"items":        lines,
		"total_amount": total.StringFixed(2),
		"currency":     currency,
		"completed_at": time.Now().UTC(),
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout payload: %w", err)
	}
	return payloadJSON, nil
}

func decimalTotal(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
