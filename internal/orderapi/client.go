package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/iCADcl/IDEFWeb/internal/domain"
)

// Client drives the two order calls of the checkout protocol against the
// backend Order API. Calls go through a circuit breaker so a dead backend
// fails fast instead of queueing checkouts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	log        *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	settings := gobreaker.Settings{
		Name:    "order-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker[[]byte](settings),
		log:        log,
	}
}

type paymentIntentItemDTO struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

type paymentIntentRequestDTO struct {
	CustomerName  string                 `json:"customer_name"`
	CustomerEmail string                 `json:"customer_email"`
	CustomerPhone string                 `json:"customer_phone,omitempty"`
	Items         []paymentIntentItemDTO `json:"items"`
}

type paymentIntentResponseDTO struct {
	ClientSecret string  `json:"client_secret"`
	OrderID      string  `json:"order_id"`
	Amount       float64 `json:"amount"`
}

// CreatePaymentIntent opens a pending order for the draft and returns the
// client secret the gateway needs to charge it.
func (c *Client) CreatePaymentIntent(ctx context.Context, draft domain.OrderDraft) (*domain.PaymentIntent, error) {
	reqBody := paymentIntentRequestDTO{
		CustomerName:  draft.Customer.Name,
		CustomerEmail: draft.Customer.Email,
		CustomerPhone: draft.Customer.Phone,
		Items:         make([]paymentIntentItemDTO, 0, len(draft.Items)),
	}
	for _, item := range draft.Items {
		reqBody.Items = append(reqBody.Items, paymentIntentItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.UnitPrice.InexactFloat64(),
			Quantity:    item.Quantity,
		})
	}

	body, err := c.postJSON(ctx, c.baseURL+"/api/checkout/create-payment-intent", reqBody)
	if err != nil {
		return nil, err
	}

	var resp paymentIntentResponseDTO
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode payment intent response: %w", err)
	}
	if resp.ClientSecret == "" || resp.OrderID == "" {
		return nil, fmt.Errorf("payment intent response missing client_secret or order_id")
	}

	return &domain.PaymentIntent{
		ClientSecret: resp.ClientSecret,
		OrderID:      resp.OrderID,
		Amount:       decimal.NewFromFloat(resp.Amount),
	}, nil
}

// ConfirmOrder tells the Order API the order was paid, passing the gateway's
// payment intent id so the backend can verify the charge.
func (c *Client) ConfirmOrder(ctx context.Context, orderID, paymentIntentID string) error {
	u := fmt.Sprintf("%s/api/checkout/confirm-payment/%s?payment_intent_id=%s",
		c.baseURL, url.PathEscape(orderID), url.QueryEscape(paymentIntentID))

	_, err := c.postJSON(ctx, u, nil)
	return err
}

func (c *Client) postJSON(ctx context.Context, url string, payload interface{}) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var body io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
		if err != nil {
			return nil, fmt.Errorf("build order request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("order api request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read order api response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			c.log.Warn("order api error",
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", data))
			return nil, fmt.Errorf("order api returned status %d", resp.StatusCode)
		}
		return data, nil
	})
}
