package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/iCADcl/IDEFWeb/internal/cart"
	"github.com/iCADcl/IDEFWeb/internal/checkout"
	"github.com/iCADcl/IDEFWeb/internal/domain"
	"github.com/iCADcl/IDEFWeb/internal/gateway"
)

type CheckoutHandler struct {
	sessions     *cart.Sessions
	orchestrator *checkout.Orchestrator
	timeout      time.Duration
	log          *zap.Logger
}

func NewCheckoutHandler(sessions *cart.Sessions, orchestrator *checkout.Orchestrator, timeout time.Duration, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		sessions:     sessions,
		orchestrator: orchestrator,
		timeout:      timeout,
		log:          log,
	}
}

type CardDTO struct {
	Number   string `json:"number"`
	ExpMonth string `json:"exp_month"`
	ExpYear  string `json:"exp_year"`
	CVC      string `json:"cvc"`
}

type CheckoutRequestDTO struct {
	CustomerName   string  `json:"customer_name"`
	CustomerEmail  string  `json:"customer_email"`
	CustomerPhone  string  `json:"customer_phone,omitempty"`
	Card           CardDTO `json:"card"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

type CheckoutResponseDTO struct {
	CheckoutID string `json:"checkout_id"`
	OrderID    string `json:"order_id,omitempty"`
	Status     string `json:"status"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no cart session")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	store, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		h.log.Error("failed to open cart session",
			zap.String("request_id", getRequestID(r.Context())),
			zap.String("session_id", sessionID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}

	result, err := h.orchestrator.Checkout(ctx, store, checkout.Request{
		SessionID: sessionID,
		Customer: domain.Customer{
			Name:  req.CustomerName,
			Email: req.CustomerEmail,
			Phone: req.CustomerPhone,
		},
		Card: gateway.CardDetails{
			Number:   req.Card.Number,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
			CVC:      req.Card.CVC,
			Holder:   req.CustomerName,
		},
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.respondCheckoutError(r.Context(), w, err)
		return
	}

	status := http.StatusCreated
	if result.Status != domain.CheckoutStatusSucceeded {
		// Idempotent replay of a run that is not (yet) finished.
		status = http.StatusOK
	}
	respondJSON(w, status, CheckoutResponseDTO{
		CheckoutID: result.CheckoutID,
		OrderID:    result.OrderID,
		Status:     result.Status.String(),
	})
}

func (h *CheckoutHandler) respondCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		validationErr *checkout.ValidationError
		creationErr   *checkout.OrderCreationError
		declinedErr   *checkout.PaymentDeclinedError
		syncErr       *checkout.ConfirmationSyncError
	)

	switch {
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		respondError(w, http.StatusConflict, "checkout_in_progress",
			"a checkout is already being processed for this session")
	case errors.As(err, &creationErr):
		respondError(w, http.StatusBadGateway, "order_creation_failed",
			"could not create the order, no charge was made; please try again")
	case errors.As(err, &declinedErr):
		respondError(w, http.StatusPaymentRequired, "payment_declined", declinedErr.Message)
	case errors.As(err, &syncErr):
		// The charge went through; confirmation is retried in the
		// background. The client must not submit the payment again.
		respondJSON(w, http.StatusAccepted, map[string]string{
			"code":     "confirmation_pending",
			"order_id": syncErr.OrderID,
			"message":  "payment received; order confirmation is being finalized, do not pay again",
		})
	default:
		h.log.Error("checkout failed",
			zap.String("request_id", getRequestID(ctx)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "checkout failed")
	}
}
